package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
)

const defaultResolveTimeout = 5 * time.Second

// StreamSource hands out a per-stream identity provider. The identity hub
// adapter implements it; each login session is one stream.
type StreamSource interface {
	Stream(key string) ports.IdentityProvider
}

// ResolverRegistryOptions groups dependencies for ResolverRegistry.
type ResolverRegistryOptions struct {
	Streams  StreamSource
	Roles    ports.RoleStore
	Legacy   ports.LegacyRoleStore
	Fallback FallbackPolicy
	// ResolveTimeout bounds how long Snapshot waits for a Loading resolver
	// to settle before surfacing the Loading snapshot. Defaults to 5s.
	ResolveTimeout time.Duration
	// FetchTimeout is forwarded to each resolver to bound a single role
	// record fetch.
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// ResolverRegistry owns one SessionResolver per active login session,
// creating them lazily and tearing them down on release. It gives each
// session stream the same resolve-then-gate lifecycle the resolver provides
// for a single stream.
type ResolverRegistry struct {
	streams        StreamSource
	roles          ports.RoleStore
	legacy         ports.LegacyRoleStore
	fallback       FallbackPolicy
	resolveTimeout time.Duration
	fetchTimeout   time.Duration
	logger         *slog.Logger

	mu        sync.Mutex
	resolvers map[string]*SessionResolver
	closed    bool
}

// NewResolverRegistry constructs a registry. Streams and Roles are required.
func NewResolverRegistry(opts ResolverRegistryOptions) (*ResolverRegistry, error) {
	if opts.Streams == nil {
		return nil, errors.New("stream source is required")
	}
	if opts.Roles == nil {
		return nil, errors.New("role store is required")
	}
	timeout := opts.ResolveTimeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolverRegistry{
		streams:        opts.Streams,
		roles:          opts.Roles,
		legacy:         opts.Legacy,
		fallback:       opts.Fallback,
		resolveTimeout: timeout,
		fetchTimeout:   opts.FetchTimeout,
		logger:         logger,
		resolvers:      make(map[string]*SessionResolver),
	}, nil
}

// Snapshot returns the resolved snapshot for a session stream, creating and
// starting its resolver on first use and waiting (bounded) for it to settle.
func (r *ResolverRegistry) Snapshot(ctx context.Context, key string) (domainsession.Snapshot, error) {
	resolver, err := r.resolver(ctx, key)
	if err != nil {
		return domainsession.Snapshot{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, r.resolveTimeout)
	defer cancel()
	return resolver.WaitReady(waitCtx), nil
}

// Release stops and drops the resolver for a session stream. Called on
// logout and session expiry.
func (r *ResolverRegistry) Release(key string) {
	r.mu.Lock()
	resolver, ok := r.resolvers[key]
	if ok {
		delete(r.resolvers, key)
	}
	r.mu.Unlock()
	if ok {
		resolver.Stop()
	}
}

// Close stops every resolver. The registry is unusable afterwards.
func (r *ResolverRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	resolvers := r.resolvers
	r.resolvers = nil
	r.mu.Unlock()

	for _, resolver := range resolvers {
		resolver.Stop()
	}
}

func (r *ResolverRegistry) resolver(ctx context.Context, key string) (*SessionResolver, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("resolver registry is closed")
	}
	if resolver, ok := r.resolvers[key]; ok {
		r.mu.Unlock()
		return resolver, nil
	}
	r.mu.Unlock()

	resolver, err := NewSessionResolver(ResolverOptions{
		Provider:     r.streams.Stream(key),
		Roles:        r.roles,
		Legacy:       r.legacy,
		Fallback:     r.fallback,
		FetchTimeout: r.fetchTimeout,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("resolver registry is closed")
	}
	if existing, ok := r.resolvers[key]; ok {
		// Lost a construction race; use the winner.
		r.mu.Unlock()
		return existing, nil
	}
	r.resolvers[key] = resolver
	r.mu.Unlock()

	if err := resolver.Start(ctx); err != nil {
		r.Release(key)
		return nil, err
	}
	return resolver, nil
}
