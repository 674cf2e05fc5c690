package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/academiq/academiq-api/config"
	"github.com/academiq/academiq-api/internal/domain/routing"
	httpx "github.com/academiq/academiq-api/internal/http"
	"golang.org/x/sync/errgroup"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config *config.AppConfig
	Stack  *GateStack
	Logger *slog.Logger
}

// BuildHTTPHandler assembles the router with the standard middleware chain.
// Order: Recover -> Logging -> Router.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	services := httpx.RouterServices{
		Auth:         cfg.Stack.Auth,
		Snapshots:    cfg.Stack.Registry,
		Gate:         cfg.Stack.Gate,
		Table:        routing.DefaultTable(),
		CookieDomain: cfg.Config.HTTP.CookieDomain,
		Logger:       logger,
	}
	// A typed nil would make the interface non-nil; only set when present.
	if cfg.Stack.Legacy != nil {
		services.Roles = cfg.Stack.Legacy
	}

	h := httpx.NewRouter(services)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

// RunHTTPServer serves HTTP until ctx is canceled, then shuts down
// gracefully. It blocks until both the listener and the shutdown path have
// finished.
func RunHTTPServer(ctx context.Context, cfg *HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := cfg.Config.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      BuildHTTPHandler(cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// Stop every per-session resolver after the listener drains.
		cfg.Stack.Registry.Close()
		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}
