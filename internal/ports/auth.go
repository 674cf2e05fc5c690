package ports

import (
	"context"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainsession.Identity, error)
}

// SessionStore persists and retrieves login sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainsession.Session) error
	Get(ctx context.Context, id string) (domainsession.Session, error)
	Delete(ctx context.Context, id string) error
}
