package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/academiq/academiq-api/config"
	"github.com/academiq/academiq-api/internal/adapters/devauth"
	"github.com/academiq/academiq-api/internal/adapters/idp"
	"github.com/academiq/academiq-api/internal/adapters/oidc"
	redisadapter "github.com/academiq/academiq-api/internal/adapters/redis"
	"github.com/academiq/academiq-api/internal/data"
	"github.com/academiq/academiq-api/internal/domain/routing"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
	"github.com/academiq/academiq-api/internal/service"
	"github.com/redis/go-redis/v9"
)

// GateStackConfig contains dependencies for building the session and gate
// stack.
type GateStackConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB // optional legacy store; nil disables the fallback lookup
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// GateStack groups the wired session-resolution and access-gate services.
type GateStack struct {
	Auth     *service.AuthService
	Hub      *idp.Hub
	Registry *service.ResolverRegistry
	Gate     *service.AccessGate
	Sessions *redisadapter.SessionStore
	RoleDocs *redisadapter.RoleDocStore
	// Legacy is nil when no database is configured.
	Legacy *data.LegacyUserRepo
}

// BuildGateStack wires the identity hub, per-session resolvers, role stores,
// and the access gate from configuration.
func BuildGateStack(cfg GateStackConfig) (*GateStack, error) {
	if cfg.Config == nil {
		return nil, errors.New("app config is required")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionStore := redisadapter.NewSessionStoreWithPrefix(cfg.RedisClient, "session:")

	roleDocs, err := redisadapter.NewRoleDocStore(cfg.RedisClient, redisadapter.RoleDocStoreOptions{
		Prefix:    cfg.Config.Gate.RolePrefix,
		RoleField: cfg.Config.Gate.RoleField,
	})
	if err != nil {
		return nil, fmt.Errorf("build role store: %w", err)
	}

	var legacy *data.LegacyUserRepo
	var legacyStore ports.LegacyRoleStore
	if cfg.DB != nil {
		legacy = data.NewLegacyUserRepo(cfg.DB)
		legacyStore = legacy
	}

	// Each login session is one identity stream; new subscriptions seed from
	// the session store so a resolver created mid-session starts from the
	// session's actual identity.
	hub := idp.NewHub(sessionSource(sessionStore), logger)

	fallback := fallbackPolicy(cfg.Config.Gate.FallbackRole)
	registry, err := service.NewResolverRegistry(service.ResolverRegistryOptions{
		Streams:        hub,
		Roles:          roleDocs,
		Legacy:         legacyStore,
		Fallback:       fallback,
		ResolveTimeout: cfg.Config.Gate.ResolveTimeout,
		FetchTimeout:   cfg.Config.Gate.FetchTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build resolver registry: %w", err)
	}

	gate, err := service.NewAccessGate(service.AccessGateOptions{
		Table:            routing.DefaultTable(),
		NilRoleAsStudent: cfg.Config.Gate.FallbackRole == config.FallbackModeStudent,
	})
	if err != nil {
		return nil, fmt.Errorf("build access gate: %w", err)
	}

	provider, err := buildAuthProvider(cfg.Config.Auth, logger)
	if err != nil {
		return nil, err
	}

	authOpts := service.AuthServiceOptions{
		Provider:  provider,
		Sessions:  sessionStore,
		Roles:     roleDocs,
		Publisher: hub,
		Logger:    logger,
	}
	// A typed nil would make the interface non-nil; only set when present.
	if legacy != nil {
		authOpts.Profiles = legacy
	}
	authSvc := service.NewAuthService(authOpts)

	return &GateStack{
		Auth:     authSvc,
		Hub:      hub,
		Registry: registry,
		Gate:     gate,
		Sessions: sessionStore,
		RoleDocs: roleDocs,
		Legacy:   legacy,
	}, nil
}

// sessionSource adapts the session store into the hub's stream seed lookup.
func sessionSource(store *redisadapter.SessionStore) idp.Source {
	return func(ctx context.Context, key string) (*domainsession.Identity, error) {
		sess, err := store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, redisadapter.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		identity := sess.Identity()
		return &identity, nil
	}
}

func fallbackPolicy(mode config.FallbackMode) service.FallbackPolicy {
	if mode == config.FallbackModeNone {
		return service.FailClosed()
	}
	return service.FallbackToStudent()
}

// buildAuthProvider picks the identity provider for the configured auth mode.
//
//nolint:ireturn // the auth service depends on the port, not a concrete provider.
func buildAuthProvider(cfg config.AuthConfig, logger *slog.Logger) (ports.AuthProvider, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:          cfg.DevAuth.UserID,
			Email:           cfg.DevAuth.Email,
			SessionDuration: cfg.DevAuth.SessionDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev auth provider: %w", err)
		}
		logger.Warn("mock auth enabled; do not use in production", "user_id", cfg.DevAuth.UserID)
		return prov, nil

	case config.AuthModeOAuth:
		oauth := cfg.OAuth
		if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
			return nil, errors.New("oauth auth mode requires OAUTH_DISCOVERY_URL, OAUTH_CLIENT_ID, and OAUTH_CLIENT_SECRET")
		}
		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scope:        oauth.Scope,
			DiscoveryURL: oauth.DiscoveryURL,
		})
		if err != nil {
			return nil, fmt.Errorf("build OIDC provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
