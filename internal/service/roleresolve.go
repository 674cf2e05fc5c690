package service

import (
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
)

// RoleResolution is the settled result of the role lookups for one identity:
// either a record (Found), a definite absence, or a fetch failure. It carries
// no I/O; the resolver fills it in and the pure mapping below consumes it.
type RoleResolution struct {
	Record domainsession.RoleRecord
	Found  bool
	Err    error
}

// FallbackPolicy fixes what an unresolvable role resolves to. The historical
// default is the lowest-privilege authenticated role (student); fail-closed
// leaves the role nil so guarded routes reject the session.
type FallbackPolicy struct {
	role *domainsession.Role
}

// FallbackToRole resolves unresolvable roles to r.
func FallbackToRole(r domainsession.Role) FallbackPolicy {
	return FallbackPolicy{role: &r}
}

// FallbackToStudent is the observed default posture.
func FallbackToStudent() FallbackPolicy {
	return FallbackToRole(domainsession.RoleStudent)
}

// FailClosed resolves unresolvable roles to no role at all.
func FailClosed() FallbackPolicy {
	return FallbackPolicy{}
}

// Role returns the fallback role, nil for fail-closed.
func (p FallbackPolicy) Role() *domainsession.Role {
	if p.role == nil {
		return nil
	}
	r := *p.role
	return &r
}

// RoleFromResolution maps a settled resolution onto the closed role
// enumeration. Fetch errors, missing records, and missing or unrecognized
// role fields all take the fallback branch; only a record whose role field
// parses cleanly yields that role.
func RoleFromResolution(res RoleResolution, policy FallbackPolicy) *domainsession.Role {
	if res.Err != nil || !res.Found {
		return policy.Role()
	}
	role, ok := domainsession.ParseRole(res.Record.Role)
	if !ok {
		return policy.Role()
	}
	return &role
}
