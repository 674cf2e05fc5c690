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

const defaultFetchTimeout = 10 * time.Second

// ResolverOptions groups dependencies for SessionResolver.
type ResolverOptions struct {
	Provider ports.IdentityProvider
	Roles    ports.RoleStore
	Legacy   ports.LegacyRoleStore // optional secondary lookup
	Fallback FallbackPolicy
	// FetchTimeout bounds one role fetch cycle so a hung store cannot
	// strand the snapshot in Loading. Defaults to 10s.
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// SessionResolver maintains the resolved (identity, role, status) snapshot
// for one identity stream. It is the single writer of the snapshot; guarded
// routes only read it through Current or a change subscription.
//
// Every identity transition bumps a generation counter; a role fetch result
// is applied only if its generation is still current, so a slow fetch for an
// old identity never overwrites a newer identity's state.
type SessionResolver struct {
	provider     ports.IdentityProvider
	roles        ports.RoleStore
	legacy       ports.LegacyRoleStore
	fallback     FallbackPolicy
	fetchTimeout time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	snap      domainsession.Snapshot
	gen       uint64
	started   bool
	stopped   bool
	cancelSub func()
	fetchCtx  context.Context
	stopFetch context.CancelFunc
	subs      map[uint64]func(domainsession.Snapshot)
	nextSubID uint64
}

// NewSessionResolver constructs a resolver. Provider and Roles are required.
func NewSessionResolver(opts ResolverOptions) (*SessionResolver, error) {
	if opts.Provider == nil {
		return nil, errors.New("identity provider is required")
	}
	if opts.Roles == nil {
		return nil, errors.New("role store is required")
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionResolver{
		provider:     opts.Provider,
		roles:        opts.Roles,
		legacy:       opts.Legacy,
		fallback:     opts.Fallback,
		fetchTimeout: timeout,
		logger:       logger,
		snap:         domainsession.Snapshot{Status: domainsession.StatusLoading},
		subs:         make(map[uint64]func(domainsession.Snapshot)),
	}, nil
}

// Start subscribes to the identity provider. The provider fires the callback
// once with the current identity, so the snapshot settles without any
// explicit transition. Start may be called once; Stop releases the
// subscription.
func (r *SessionResolver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("resolver already started")
	}
	r.started = true
	r.fetchCtx, r.stopFetch = context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Unlock()

	// Subscribe outside the lock: providers fire the seed callback
	// synchronously and onIdentityChange takes the lock itself.
	cancel, err := r.provider.Subscribe(r.onIdentityChange)
	if err != nil {
		r.mu.Lock()
		r.stopped = true
		stop := r.stopFetch
		r.mu.Unlock()
		stop()
		return err
	}

	r.mu.Lock()
	if r.stopped {
		// Stop raced the subscription; release it now.
		r.mu.Unlock()
		cancel()
		return nil
	}
	r.cancelSub = cancel
	r.mu.Unlock()
	return nil
}

// Stop releases the identity subscription and discards any in-flight fetch
// result. The snapshot is never mutated after Stop returns.
func (r *SessionResolver) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancelSub := r.cancelSub
	stopFetch := r.stopFetch
	r.cancelSub = nil
	r.subs = nil
	r.mu.Unlock()

	if cancelSub != nil {
		cancelSub()
	}
	if stopFetch != nil {
		stopFetch()
	}
}

// Current returns the latest snapshot. Never blocks.
func (r *SessionResolver) Current() domainsession.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Subscribe registers fn for snapshot changes and fires it once with the
// current snapshot. The returned cancel function removes the subscription.
func (r *SessionResolver) Subscribe(fn func(domainsession.Snapshot)) func() {
	r.mu.Lock()
	if r.stopped {
		snap := r.snap
		r.mu.Unlock()
		fn(snap)
		return func() {}
	}
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = fn
	snap := r.snap
	r.mu.Unlock()

	fn(snap)
	return func() {
		r.mu.Lock()
		if r.subs != nil {
			delete(r.subs, id)
		}
		r.mu.Unlock()
	}
}

// WaitReady blocks until the snapshot is Ready or ctx is done, then returns
// the latest snapshot. A navigation attempt arriving during Loading is
// re-evaluated once the state flips rather than decided from the stale
// Loading snapshot.
func (r *SessionResolver) WaitReady(ctx context.Context) domainsession.Snapshot {
	if snap := r.Current(); snap.Ready() {
		return snap
	}
	ready := make(chan struct{}, 1)
	cancel := r.Subscribe(func(snap domainsession.Snapshot) {
		if snap.Ready() {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()

	select {
	case <-ready:
	case <-ctx.Done():
	}
	return r.Current()
}

// onIdentityChange handles one identity-provider transition. Logged-out
// transitions settle synchronously; logged-in transitions enter Loading and
// resolve asynchronously.
func (r *SessionResolver) onIdentityChange(identity *domainsession.Identity) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen

	if identity == nil {
		r.snap = domainsession.Snapshot{Status: domainsession.StatusReady, Generation: gen}
		subs := r.subscribersLocked()
		snap := r.snap
		r.mu.Unlock()
		notify(subs, snap)
		return
	}

	id := *identity
	r.snap = domainsession.Snapshot{
		Identity:   &id,
		Status:     domainsession.StatusLoading,
		Generation: gen,
	}
	subs := r.subscribersLocked()
	snap := r.snap
	fetchCtx := r.fetchCtx
	r.mu.Unlock()

	notify(subs, snap)
	go r.fetchRole(fetchCtx, gen, id)
}

// fetchRole performs the role lookups and applies the result. All failure
// paths settle to Ready with the fallback role; nothing propagates.
func (r *SessionResolver) fetchRole(ctx context.Context, gen uint64, identity domainsession.Identity) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	res := r.lookup(ctx, identity.ID)
	if res.Err != nil {
		r.logger.Warn("role fetch failed, applying fallback role",
			"user_id", identity.ID, "error", res.Err)
	}
	role := RoleFromResolution(res, r.fallback)
	r.apply(gen, identity, role)
}

// lookup consults the primary store, then the legacy store when the primary
// has no record.
func (r *SessionResolver) lookup(ctx context.Context, userID string) RoleResolution {
	rec, err := r.roles.GetRoleRecord(ctx, userID)
	if err == nil {
		return RoleResolution{Record: rec, Found: true}
	}
	if !errors.Is(err, ports.ErrRoleRecordNotFound) {
		return RoleResolution{Err: err}
	}
	if r.legacy == nil {
		return RoleResolution{}
	}
	rec, err = r.legacy.GetRoleRecord(ctx, userID)
	if err == nil {
		return RoleResolution{Record: rec, Found: true}
	}
	if errors.Is(err, ports.ErrRoleRecordNotFound) {
		return RoleResolution{}
	}
	return RoleResolution{Err: err}
}

// apply installs a fetch result unless a newer identity transition or a Stop
// superseded it.
func (r *SessionResolver) apply(gen uint64, identity domainsession.Identity, role *domainsession.Role) {
	r.mu.Lock()
	if r.stopped || gen != r.gen {
		r.mu.Unlock()
		r.logger.Debug("stale role fetch discarded", "user_id", identity.ID, "generation", gen)
		return
	}
	r.snap = domainsession.Snapshot{
		Identity:   &identity,
		Role:       role,
		Status:     domainsession.StatusReady,
		Generation: gen,
	}
	subs := r.subscribersLocked()
	snap := r.snap
	r.mu.Unlock()
	notify(subs, snap)
}

func (r *SessionResolver) subscribersLocked() []func(domainsession.Snapshot) {
	out := make([]func(domainsession.Snapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(domainsession.Snapshot), snap domainsession.Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
