package session

// Package session contains domain-level types for identity resolution and
// role-gated routing. It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a raw role string onto the closed enumeration.
// The second return is false for absent or unrecognized values so callers
// route through an explicit fallback branch instead of a silent mismatch.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleStudent, RoleParent, RoleTeacher, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}

// Roles lists the closed enumeration in display order.
func Roles() []Role {
	return []Role{RoleStudent, RoleParent, RoleTeacher, RoleAdmin}
}

// Identity represents the authenticated principal returned by an identity
// provider. The gate never mutates it, only observes it.
type Identity struct {
	ID        string // stable user identifier (e.g., sub)
	Email     string
	ExpiresAt time.Time // absolute expiry from the provider token
}

// Session is the server-side login record persisted for an authenticated
// user. ID is an opaque session identifier.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity projects the login record back into the identity shape consumed
// by the resolver.
func (s Session) Identity() Identity {
	return Identity{ID: s.UserID, Email: s.Email, ExpiresAt: s.ExpiresAt}
}

// RoleRecord is the stored authorization record for one identity.
// Role carries the raw role field as the store returned it; it may be empty
// (field missing) or outside the closed enumeration. Profile fields are
// carried along for display purposes only and are irrelevant to the gate.
type RoleRecord struct {
	UserID  string
	Role    string
	Profile map[string]any
}

// Status is the lifecycle phase of a resolved session.
type Status string

const (
	// StatusLoading means an identity transition is being resolved; no route
	// decision may be made from a Loading snapshot.
	StatusLoading Status = "loading"
	// StatusReady means the role fetch settled (success or controlled
	// fallback) and the snapshot is decision-safe.
	StatusReady Status = "ready"
)

// Snapshot is the resolved (identity, role, status) triple the rest of the
// app reads. It is written only by the session resolver and read by every
// guarded route.
type Snapshot struct {
	Identity *Identity
	Role     *Role
	Status   Status

	// Generation counts identity-provider transitions; stale fetch results
	// carrying an older generation are discarded.
	Generation uint64
}

// Ready reports whether the snapshot is decision-safe.
func (s Snapshot) Ready() bool { return s.Status == StatusReady }

// Authenticated reports whether the snapshot carries an identity.
func (s Snapshot) Authenticated() bool { return s.Identity != nil }

// HasRole reports whether the snapshot's role equals r.
func (s Snapshot) HasRole(r Role) bool { return s.Role != nil && *s.Role == r }
