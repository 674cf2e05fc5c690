package ports

// Package ports defines interfaces (hexagonal ports) for identity, role, and
// session behavior. Implementations live in internal/adapters; orchestration
// in internal/service.

import (
	"context"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
)

// IdentityProvider pushes identity transitions for one principal stream.
// Subscribe registers onChange, fires it once with the current identity (nil
// when logged out), and keeps firing on every subsequent transition until the
// returned cancel function runs. After cancel, onChange is never invoked.
type IdentityProvider interface {
	Subscribe(onChange func(identity *domainsession.Identity)) (cancel func(), err error)
}

// RoleRecordNotFoundError is the sentinel for a missing role record.
type roleRecordNotFoundError struct{}

func (roleRecordNotFoundError) Error() string { return "role record not found" }

// ErrRoleRecordNotFound is returned by role stores when no record exists for
// the identity. The resolver treats it as a normal outcome, not a failure.
var ErrRoleRecordNotFound error = roleRecordNotFoundError{}

// RoleStore reads the authoritative role record for an identity.
type RoleStore interface {
	// GetRoleRecord returns the record keyed by identity id, or
	// ErrRoleRecordNotFound. Other errors indicate fetch failure
	// (network, permission) and are recovered by the resolver.
	GetRoleRecord(ctx context.Context, identityID string) (domainsession.RoleRecord, error)
}

// LegacyRoleStore is the secondary lookup consulted when the primary store
// has no record. Same contract as RoleStore.
type LegacyRoleStore interface {
	GetRoleRecord(ctx context.Context, identityID string) (domainsession.RoleRecord, error)
}

// RoleWriter provisions role records at signup time.
type RoleWriter interface {
	CreateRoleRecord(ctx context.Context, rec domainsession.RoleRecord) error
}

// StudentProfileWriter mirrors student signups into the legacy store, which
// keeps a profile row per student alongside the user record.
type StudentProfileWriter interface {
	CreateStudentProfile(ctx context.Context, userID, email string) error
}

// RoleLister enumerates the distinct roles present in a store.
type RoleLister interface {
	DistinctRoles(ctx context.Context) ([]string, error)
}

// IdentityPublisher fans identity transitions out to the per-stream
// subscribers created through IdentityProvider.
type IdentityPublisher interface {
	Publish(streamKey string, identity *domainsession.Identity)
}
