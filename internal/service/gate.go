package service

import (
	"errors"

	"github.com/academiq/academiq-api/internal/domain/routing"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
)

// Decision is the gate's verdict for one navigation attempt.
type Decision struct {
	Outcome routing.Outcome
	// Target is the redirect destination for redirect outcomes.
	Target string
	// Required is the route's required role, set for guarded routes.
	Required domainsession.Role
	// Actual is the session's resolved role, carried for denial display.
	Actual *domainsession.Role
}

// AccessGateOptions groups configuration for AccessGate.
type AccessGateOptions struct {
	Table *routing.Table
	// NilRoleAsStudent admits an authenticated session with no resolved role
	// to student routes. True reproduces the historical fail-open posture;
	// false is the fail-closed alternative.
	NilRoleAsStudent bool
}

// AccessGate computes a routing outcome for each requested path as a pure,
// total function of (path, snapshot). It holds no mutable state, so the same
// inputs always produce the same decision.
type AccessGate struct {
	table            *routing.Table
	nilRoleAsStudent bool
}

// NewAccessGate constructs an AccessGate over a static guard table.
func NewAccessGate(opts AccessGateOptions) (*AccessGate, error) {
	if opts.Table == nil {
		return nil, errors.New("guard table is required")
	}
	return &AccessGate{table: opts.Table, nilRoleAsStudent: opts.NilRoleAsStudent}, nil
}

// Decide implements the decision algorithm:
//
//  1. Loading snapshot: Wait. No navigation may be derived from it.
//  2. Unknown path: RedirectHome.
//  3. Public path: Allow.
//  4. No identity: RedirectToLogin.
//  5. Role match (or nil role on a student route, when configured): Allow;
//     otherwise the route's fixed mismatch policy picks Deny or RedirectHome.
func (g *AccessGate) Decide(path string, snap domainsession.Snapshot) Decision {
	if !snap.Ready() {
		return Decision{Outcome: routing.OutcomeWait}
	}

	route, known := g.table.Lookup(path)
	if !known {
		return Decision{Outcome: routing.OutcomeRedirectHome, Target: routing.PathHome}
	}
	if route.Public {
		return Decision{Outcome: routing.OutcomeAllow}
	}
	if !snap.Authenticated() {
		return Decision{Outcome: routing.OutcomeRedirectToLogin, Target: routing.PathLogin, Required: route.Required}
	}

	allowed := snap.HasRole(route.Required) ||
		(g.nilRoleAsStudent && route.Required == domainsession.RoleStudent && snap.Role == nil)
	if allowed {
		return Decision{Outcome: routing.OutcomeAllow, Required: route.Required, Actual: snap.Role}
	}

	switch route.Mismatch {
	case routing.MismatchDeny:
		return Decision{Outcome: routing.OutcomeDeny, Required: route.Required, Actual: snap.Role}
	case routing.MismatchRedirectHome:
		return Decision{Outcome: routing.OutcomeRedirectHome, Target: routing.PathHome, Required: route.Required, Actual: snap.Role}
	default:
		// NewTable rejects unknown policies; redirect home keeps the gate total.
		return Decision{Outcome: routing.OutcomeRedirectHome, Target: routing.PathHome, Required: route.Required, Actual: snap.Role}
	}
}
