package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
	"github.com/google/uuid"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider
	Sessions ports.SessionStore
	// Roles provisions role records at signup time.
	Roles ports.RoleWriter
	// Profiles mirrors student signups into the legacy store. Optional; nil
	// skips the profile row (no legacy store configured).
	Profiles ports.StudentProfileWriter
	// Publisher notifies per-session identity streams of login/logout
	// transitions. Optional; nil disables push notifications.
	Publisher ports.IdentityPublisher
	Logger    *slog.Logger
}

// AuthService orchestrates authentication flows: provider exchange, session
// persistence, signup role provisioning, and identity-change publication.
type AuthService struct {
	provider  ports.AuthProvider
	sessions  ports.SessionStore
	roles     ports.RoleWriter
	profiles  ports.StudentProfileWriter
	publisher ports.IdentityPublisher
	logger    *slog.Logger
}

var errSessionExpired = errors.New("session expired")

// ErrSessionExpired reports whether err is the expired-session error.
func ErrSessionExpired(err error) bool { return errors.Is(err, errSessionExpired) }

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider:  opts.Provider,
		sessions:  opts.Sessions,
		roles:     opts.Roles,
		profiles:  opts.Profiles,
		publisher: opts.Publisher,
		logger:    logger,
	}
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth
// URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLoginResult contains the result of completing a login flow.
type CompleteLoginResult struct {
	Session  domainsession.Session
	Identity domainsession.Identity
}

// CompleteLogin completes an authentication flow by exchanging the code for
// an identity, persisting a login session, and publishing the identity
// transition to the session's stream.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*CompleteLoginResult, error) {
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	session := domainsession.Session{
		ID:        generateSessionID(),
		UserID:    identity.ID,
		Email:     identity.Email,
		ExpiresAt: identity.ExpiresAt,
	}
	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}

	s.publish(session.ID, &identity)

	return &CompleteLoginResult{Session: session, Identity: identity}, nil
}

// GetSession retrieves a session by ID, cleaning up expired ones.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainsession.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		s.publish(sessionID, nil)
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(errSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, errSessionExpired
	}

	return &session, nil
}

// Logout removes a session and publishes the logged-out transition.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to logout
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.publish(sessionID, nil)
	return nil
}

// ProvisionRoleInput groups parameters for signup role provisioning.
type ProvisionRoleInput struct {
	UserID string
	Email  string
	// Requested is the role picked at signup. Absent or unrecognized values
	// provision the student role, matching the registration workflow.
	Requested string
}

// ProvisionRole creates the role record for a freshly registered identity.
func (s *AuthService) ProvisionRole(ctx context.Context, input ProvisionRoleInput) (domainsession.Role, error) {
	if s.roles == nil {
		return "", errors.New("role provisioning is not configured")
	}
	if input.UserID == "" {
		return "", errors.New("user ID is required")
	}

	role, ok := domainsession.ParseRole(input.Requested)
	if !ok {
		role = domainsession.RoleStudent
	}

	rec := domainsession.RoleRecord{
		UserID: input.UserID,
		Role:   string(role),
		Profile: map[string]any{
			"email":      input.Email,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.roles.CreateRoleRecord(ctx, rec); err != nil {
		return "", fmt.Errorf("create role record: %w", err)
	}

	// Student signups also get a profile row in the legacy store.
	if role == domainsession.RoleStudent && s.profiles != nil {
		if err := s.profiles.CreateStudentProfile(ctx, input.UserID, input.Email); err != nil {
			return "", fmt.Errorf("create student profile: %w", err)
		}
	}
	return role, nil
}

// PublishRoleChange nudges a session's identity stream after an out-of-band
// role update so its resolver re-fetches the record.
func (s *AuthService) PublishRoleChange(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	identity := session.Identity()
	s.publish(sessionID, &identity)
	return nil
}

func (s *AuthService) publish(sessionID string, identity *domainsession.Identity) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(sessionID, identity)
}

// generateSessionID creates a cryptographically secure random session ID.
func generateSessionID() string {
	return uuid.New().String()
}
