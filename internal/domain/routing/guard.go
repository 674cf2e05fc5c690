package routing

// Package routing defines the static route-guard table and the outcome
// vocabulary of the access gate. The table is defined once at startup and
// never mutated at runtime.

import (
	"fmt"

	"github.com/academiq/academiq-api/internal/domain/session"
)

// Outcome is the terminal result of a gate decision for one navigation
// attempt.
type Outcome string

const (
	// OutcomeWait means the session is still resolving; render a neutral
	// loading state and re-evaluate once it settles. No navigation.
	OutcomeWait Outcome = "wait"
	// OutcomeAllow admits the request to the guarded view.
	OutcomeAllow Outcome = "allow"
	// OutcomeRedirectToLogin sends unauthenticated requests to the login
	// page, replacing history so back does not return to the guarded route.
	OutcomeRedirectToLogin Outcome = "redirect_to_login"
	// OutcomeRedirectHome sends the request to the home page.
	OutcomeRedirectHome Outcome = "redirect_home"
	// OutcomeDeny renders an access-denied view carrying the actual role.
	OutcomeDeny Outcome = "deny"
)

// MismatchPolicy fixes, per route, what happens when an authenticated user's
// role does not match the required role. The asymmetry between routes is a
// deliberate policy choice surfaced as configuration.
type MismatchPolicy string

const (
	// MismatchDeny renders the explicit access-denied panel.
	MismatchDeny MismatchPolicy = "deny"
	// MismatchRedirectHome silently redirects to the home page.
	MismatchRedirectHome MismatchPolicy = "redirect_home"
)

// Route is one entry in the guard table. Public routes have no required role.
type Route struct {
	Path     string
	Public   bool
	Required session.Role
	Mismatch MismatchPolicy
}

// Table is the static path → guard mapping.
type Table struct {
	routes map[string]Route
}

// NewTable builds a guard table from routes. Every non-public route must name
// exactly one required role and a mismatch policy.
func NewTable(routes []Route) (*Table, error) {
	m := make(map[string]Route, len(routes))
	for _, rt := range routes {
		if rt.Path == "" {
			return nil, fmt.Errorf("route with empty path")
		}
		if _, dup := m[rt.Path]; dup {
			return nil, fmt.Errorf("duplicate route %q", rt.Path)
		}
		if !rt.Public {
			if _, ok := session.ParseRole(string(rt.Required)); !ok {
				return nil, fmt.Errorf("route %q: invalid required role %q", rt.Path, rt.Required)
			}
			if rt.Mismatch != MismatchDeny && rt.Mismatch != MismatchRedirectHome {
				return nil, fmt.Errorf("route %q: invalid mismatch policy %q", rt.Path, rt.Mismatch)
			}
		}
		m[rt.Path] = rt
	}
	return &Table{routes: m}, nil
}

// Lookup returns the guard entry for path. The second return is false for
// unknown paths, which the gate maps to a home redirect.
func (t *Table) Lookup(path string) (Route, bool) {
	rt, ok := t.routes[path]
	return rt, ok
}

// Paths returns all registered paths.
func (t *Table) Paths() []string {
	out := make([]string, 0, len(t.routes))
	for p := range t.routes {
		out = append(out, p)
	}
	return out
}

// Well-known application paths.
const (
	PathHome            = "/"
	PathRoles           = "/roles"
	PathAuth            = "/auth"
	PathLogin           = "/login"
	PathRegister        = "/register"
	PathStudentPortal   = "/studentportal"
	PathParentDashboard = "/parentdashboard"
	PathAdminDashboard  = "/admindash"
	PathTeacherDash     = "/teacherdash"
)

// DefaultTable returns the application guard table. The student portal keeps
// the explicit denial panel on mismatch; the other dashboards redirect home.
func DefaultTable() *Table {
	t, err := NewTable([]Route{
		{Path: PathHome, Public: true},
		{Path: PathRoles, Public: true},
		{Path: PathAuth, Public: true},
		{Path: PathLogin, Public: true},
		{Path: PathRegister, Public: true},
		{Path: PathStudentPortal, Required: session.RoleStudent, Mismatch: MismatchDeny},
		{Path: PathParentDashboard, Required: session.RoleParent, Mismatch: MismatchRedirectHome},
		{Path: PathAdminDashboard, Required: session.RoleAdmin, Mismatch: MismatchRedirectHome},
		{Path: PathTeacherDash, Required: session.RoleTeacher, Mismatch: MismatchRedirectHome},
	})
	if err != nil {
		// The default table is a compile-time constant in spirit; a failure
		// here is a programming error.
		panic(err)
	}
	return t
}

// DashboardPath returns the landing dashboard for a role.
func DashboardPath(r session.Role) string {
	switch r {
	case session.RoleParent:
		return PathParentDashboard
	case session.RoleTeacher:
		return PathTeacherDash
	case session.RoleAdmin:
		return PathAdminDashboard
	case session.RoleStudent:
		return PathStudentPortal
	default:
		return PathStudentPortal
	}
}
