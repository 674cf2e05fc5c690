package httpx

import (
	"context"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// snapshotKey carries the resolved session snapshot set by the gate middleware.
type snapshotKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainsession.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the login session from context and a boolean
// indicating presence.
func GetSessionFromContext(ctx context.Context) (*domainsession.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainsession.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// SetSnapshotInContext returns a child context carrying the resolved snapshot.
func SetSnapshotInContext(ctx context.Context, snap domainsession.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snap)
}

// GetSnapshotFromContext returns the resolved snapshot placed in context by
// the gate middleware. The second return is false when no gate ran for the
// request.
func GetSnapshotFromContext(ctx context.Context) (domainsession.Snapshot, bool) {
	if snap, ok := ctx.Value(snapshotKey{}).(domainsession.Snapshot); ok {
		return snap, true
	}
	return domainsession.Snapshot{}, false
}

// IsGuest reports whether the current request context lacks an authenticated,
// resolved identity.
func IsGuest(ctx context.Context) bool {
	snap, ok := GetSnapshotFromContext(ctx)
	if !ok {
		return true
	}
	return !snap.Authenticated()
}
