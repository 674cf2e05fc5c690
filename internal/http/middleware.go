package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/academiq/academiq-api/internal/domain/routing"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that detects browser requests vs API requests.
// It sets a context value that can be used by downstream handlers to determine
// whether to return HTML or JSON responses.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isBrowser := isBrowserRequest(r)
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if val := r.Context().Value(browserRequestKey{}); val != nil {
		if isBrowser, ok := val.(bool); ok {
			return isBrowser
		}
	}
	// Fallback to direct detection if middleware wasn't used
	return isBrowserRequest(r)
}

// isBrowserRequest determines if a request is from a browser based on:
// 1. Path prefix - API routes start with /api/
// 2. Accept header - browsers typically accept text/html.
func isBrowserRequest(r *http.Request) bool {
	// API routes are explicitly not browser requests
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}

	// Check Accept header for HTML preference
	accept := r.Header.Get("Accept")
	if accept == "" {
		// No Accept header, assume browser for non-API routes
		return true
	}

	return strings.Contains(accept, "text/html")
}

// SnapshotSource hands out resolved session snapshots keyed by session ID and
// releases per-session resolvers on teardown. *service.ResolverRegistry
// implements it.
type SnapshotSource interface {
	Snapshot(ctx context.Context, key string) (domainsession.Snapshot, error)
	Release(key string)
}

// GateDeps groups dependencies for the Gate middleware.
type GateDeps struct {
	Auth      AuthServiceInterface
	Snapshots SnapshotSource
	Gate      *service.AccessGate
	Logger    *slog.Logger
}

func (d GateDeps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Gate returns a middleware that resolves the request's session snapshot and
// applies the access gate's decision for the request path before the view
// handler runs. Allowed requests proceed with the snapshot (and session, when
// present) in context; every other outcome is rendered here.
func Gate(deps GateDeps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, snap := deps.resolveRequest(r)
			decision := deps.Gate.Decide(r.URL.Path, snap)

			switch decision.Outcome {
			case routing.OutcomeAllow:
				ctx := SetSnapshotInContext(r.Context(), snap)
				ctx = SetSessionInContext(ctx, sess)
				next.ServeHTTP(w, r.WithContext(ctx))
			case routing.OutcomeWait:
				writeResolving(w, r)
			case routing.OutcomeRedirectToLogin:
				if IsBrowserRequest(r) {
					redirectToLogin(w, r)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
			case routing.OutcomeRedirectHome:
				target := decision.Target
				if target == "" {
					target = routing.PathHome
				}
				if IsBrowserRequest(r) {
					http.Redirect(w, r, target, http.StatusSeeOther)
					return
				}
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":       "role_mismatch",
					"redirect_to": target,
				})
			case routing.OutcomeDeny:
				if IsBrowserRequest(r) {
					renderAccessDenied(w, decision)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
			default:
				deps.logger().Error("unhandled gate outcome", slog.String("outcome", string(decision.Outcome)))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		})
	}
}

// resolveRequest derives the login session and resolved snapshot for a
// request. Requests without a valid session get a settled guest snapshot so
// the gate can evaluate public and login-redirect outcomes.
func (d GateDeps) resolveRequest(r *http.Request) (*domainsession.Session, domainsession.Snapshot) {
	guest := domainsession.Snapshot{Status: domainsession.StatusReady}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, guest
	}

	sess, err := d.Auth.GetSession(r.Context(), cookie.Value)
	if err != nil {
		if service.ErrSessionExpired(err) {
			d.Snapshots.Release(cookie.Value)
		}
		return nil, guest
	}

	snap, err := d.Snapshots.Snapshot(r.Context(), sess.ID)
	if err != nil {
		// The session is valid but its resolver could not be reached. Surface
		// a loading snapshot so the client retries instead of being treated
		// as logged out.
		d.logger().Warn("snapshot unavailable", slog.String("session_id", sess.ID), slog.Any("error", err))
		identity := sess.Identity()
		return sess, domainsession.Snapshot{Identity: &identity, Status: domainsession.StatusLoading}
	}
	return sess, snap
}

// writeResolving answers a request whose session is still resolving. Browsers
// get a minimal self-refreshing page; API clients get a retriable status.
func writeResolving(w http.ResponseWriter, r *http.Request) {
	if IsBrowserRequest(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Refresh", "1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(resolvingPage))
		return
	}
	w.Header().Set("Retry-After", "1")
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

const resolvingPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Loading</title></head>
<body><main><p>Loading your session&hellip;</p></main></body>
</html>
`

// redirectToLogin redirects browser requests to the login page with the current URL as redirect_uri.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	redirectPath := safeRedirectPath(r.URL.RequestURI())
	loginURL := "/auth/login?redirect_uri=" + url.QueryEscape(redirectPath)
	http.Redirect(w, r, loginURL, http.StatusSeeOther)
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
