package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/academiq/academiq-api/internal/domain/routing"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/service"
)

// Cookie names used by the auth handlers and the gate middleware.
const (
	sessionCookieName       = "session_id"
	oauthStateCookieName    = "oauth_state"
	oauthNonceCookieName    = "oauth_nonce"
	postLoginRedirectCookie = "post_login_redirect"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	GetSession(ctx context.Context, sessionID string) (*domainsession.Session, error)
	Logout(ctx context.Context, sessionID string) error
	ProvisionRole(ctx context.Context, input service.ProvisionRoleInput) (domainsession.Role, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	Snapshots    SnapshotSource
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles the login initiation endpoint.
// GET /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	// Get the redirect URI from query params. Empty means "land on the
	// dashboard for the resolved role" and is decided in the callback.
	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI != "" {
		redirectURI = safeRedirectPath(redirectURI)
	}

	result, err := h.Svc.BeginLogin(r.Context(), postLoginTarget(redirectURI))
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     err,
		})
		return
	}

	// Store state, nonce, and the original redirect URI in secure cookies
	h.setOAuthCookies(w, r, oauthCookieParams{State: result.State, Nonce: result.Nonce, RedirectURI: redirectURI})

	// Redirect to the identity provider
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

func postLoginTarget(redirectURI string) string {
	if redirectURI == "" {
		return routing.PathHome
	}
	return redirectURI
}

// Callback handles the OAuth callback endpoint.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	// Read and validate basic params
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	// Verify state and read nonce
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookieName)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	// Complete the login flow
	result, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_completion_failed",
			Err:     err,
		})
		return
	}

	// Set session cookie and clear temporary OAuth cookies
	h.setSessionCookie(w, r, result.Session)
	h.clearCookie(w, r, oauthStateCookieName)
	h.clearCookie(w, r, oauthNonceCookieName)

	// Redirect to the original destination, or the role's dashboard when none
	// was requested.
	redirectURI := h.getPostLoginRedirect(w, r)
	if redirectURI == "" {
		redirectURI = h.dashboardFor(r.Context(), result.Session.ID)
	}
	http.Redirect(w, r, redirectURI, http.StatusFound)
}

// dashboardFor resolves the session's role and picks its landing dashboard.
// Unresolvable sessions land on home, where the gate takes over.
func (h *AuthHandlers) dashboardFor(ctx context.Context, sessionID string) string {
	if h.Snapshots == nil {
		return routing.PathHome
	}
	snap, err := h.Snapshots.Snapshot(ctx, sessionID)
	if err != nil {
		h.logger().WarnContext(ctx, "post-login snapshot failed", "error", err)
		return routing.PathHome
	}
	if !snap.Ready() || snap.Role == nil {
		return routing.PathHome
	}
	return routing.DashboardPath(*snap.Role)
}

// Logout handles the logout endpoint.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	// Get session ID from cookie and invalidate server-side session if present
	if sessionCookie, err := r.Cookie(sessionCookieName); err == nil {
		if logoutErr := h.Svc.Logout(r.Context(), sessionCookie.Value); logoutErr != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
		if h.Snapshots != nil {
			h.Snapshots.Release(sessionCookie.Value)
		}
	}

	// Clear session cookie on the client
	h.clearCookie(w, r, sessionCookieName)

	// AJAX requests get a JSON payload; regular requests redirect home
	isAJAX := strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
	if isAJAX {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": routing.PathHome,
		})
		return
	}

	http.Redirect(w, r, routing.PathHome, http.StatusFound)
}

// registerRequest is the payload for the registration endpoint.
type registerRequest struct {
	Role string `json:"role"`
}

// Register provisions the role record for the authenticated identity.
// POST /auth/register?role=<role>. Unknown or absent roles provision student.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	sessionCookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	sess, err := h.Svc.GetSession(r.Context(), sessionCookie.Value)
	if err != nil {
		h.clearCookie(w, r, sessionCookieName)
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	requested := r.URL.Query().Get("role")
	if requested == "" && strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req registerRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		requested = req.Role
	}

	role, err := h.Svc.ProvisionRole(r.Context(), service.ProvisionRoleInput{
		UserID:    sess.UserID,
		Email:     sess.Email,
		Requested: requested,
	})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "registration_failed",
			Err:     err,
		})
		return
	}

	// Drop the session's resolver so the next snapshot sees the new record.
	if h.Snapshots != nil {
		h.Snapshots.Release(sess.ID)
	}

	WriteJSON(w, http.StatusCreated, map[string]string{
		"role":        string(role),
		"redirect_to": routing.DashboardPath(role),
	})
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when setting cookies
// to maximize compatibility across browsers during deletion.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	cd := h.CookieDomain
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// oauthCookieParams groups values needed to set OAuth cookies.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuthCookies stores OAuth state, nonce, and the post-login redirect in secure cookies.
func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	cd := h.CookieDomain

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    p.State,
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	http.SetCookie(w, &http.Cookie{
		Name:     oauthNonceCookieName,
		Value:    p.Nonce,
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	if p.RedirectURI != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     postLoginRedirectCookie,
			Value:    p.RedirectURI,
			Path:     "/",
			Domain:   cd,
			HttpOnly: true,
			Secure:   isSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   600, // 10 minutes
		})
	}
}

// setSessionCookie writes the session cookie based on the session's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainsession.Session) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	cd := h.CookieDomain
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
	})
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
// Empty means no explicit destination was requested.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := ""
	if redirectCookie, err := r.Cookie(postLoginRedirectCookie); err == nil {
		candidate := redirectCookie.Value
		// Defensive re-validation: allow only relative paths
		u, parseErr := url.Parse(candidate)
		if parseErr == nil && !u.IsAbs() && u.Host == "" && strings.HasPrefix(u.Path, "/") {
			redirectURI = candidate
		}
		h.clearCookie(w, r, postLoginRedirectCookie)
	}
	return redirectURI
}
