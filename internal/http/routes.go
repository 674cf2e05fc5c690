package httpx

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/academiq/academiq-api/internal/domain/routing"
	"github.com/academiq/academiq-api/internal/ports"
	"github.com/academiq/academiq-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth      AuthServiceInterface
	Snapshots SnapshotSource
	Gate      *service.AccessGate
	Table     *routing.Table
	// Roles lists distinct roles from the legacy store. Optional; the
	// built-in catalog serves as fallback.
	Roles        ports.RoleLister
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures a new HTTP router. Every path in the guard
// table is served through the gate middleware; auth and API endpoints sit
// beside them.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		Snapshots:    services.Snapshots,
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	}
	sessionHandlers := &SessionHandlers{
		Auth:      services.Auth,
		Snapshots: services.Snapshots,
		Gate:      services.Gate,
		Roles:     services.Roles,
		Logger:    services.Logger,
	}
	viewHandlers := &ViewHandlers{Roles: sessionHandlers, Logger: services.Logger}

	registerAuthRoutes(mux, authHandlers)
	registerAPIRoutes(mux, sessionHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	registerGuardedViews(mux, guardedViewConfig{
		Views: viewHandlers,
		Table: services.Table,
		Gate: GateDeps{
			Auth:      services.Auth,
			Snapshots: services.Snapshots,
			Gate:      services.Gate,
			Logger:    services.Logger,
		},
	})

	return BrowserDetection()(mux)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("POST /auth/register", h.Register)
}

func registerAPIRoutes(mux *http.ServeMux, h *SessionHandlers) {
	mux.HandleFunc("GET /api/session", h.Session)
	mux.HandleFunc("GET /api/roles", h.ListRoles)
	mux.HandleFunc("GET /api/gate/decision", h.Decision)
}

// guardedViewConfig groups dependencies for guard table route registration.
type guardedViewConfig struct {
	Views *ViewHandlers
	Table *routing.Table
	Gate  GateDeps
}

// registerGuardedViews wires one handler per guard table entry, each behind
// the gate middleware. The home entry is registered as the catch-all so
// unknown paths flow through the gate and redirect home.
func registerGuardedViews(mux *http.ServeMux, cfg guardedViewConfig) {
	gate := Gate(cfg.Gate)
	for _, path := range cfg.Table.Paths() {
		handler := cfg.Views.handlerFor(path)
		if handler == nil {
			panic(fmt.Sprintf("no view handler for guarded path %q", path)) //nolint:forbidigo // Fail fast during server setup.
		}
		pattern := "GET " + path
		// "GET /" is the catch-all in net/http; the gate turns unmatched
		// paths into redirects home.
		mux.Handle(pattern, gate(handler))
	}
}
