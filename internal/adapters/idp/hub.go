package idp

// Package idp provides the in-process identity hub. Each login session is
// one identity stream: auth handlers publish login/logout transitions, and
// session resolvers subscribe per stream.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
)

const seedTimeout = 5 * time.Second

// Source loads the current identity for a stream key, used to seed new
// subscriptions. A nil identity means logged out.
type Source func(ctx context.Context, key string) (*domainsession.Identity, error)

// Hub fans identity transitions out to per-stream subscribers.
type Hub struct {
	source Source
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[uint64]func(*domainsession.Identity)
	nextID uint64
}

var _ ports.IdentityPublisher = (*Hub)(nil)

// NewHub constructs a hub. source may be nil when streams are seeded purely
// by Publish (e.g., tests).
func NewHub(source Source, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		source: source,
		logger: logger,
		subs:   make(map[string]map[uint64]func(*domainsession.Identity)),
	}
}

// Publish delivers an identity transition to every subscriber of the stream.
func (h *Hub) Publish(key string, identity *domainsession.Identity) {
	h.mu.Lock()
	fns := make([]func(*domainsession.Identity), 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// Stream returns the identity provider for one stream key.
func (h *Hub) Stream(key string) ports.IdentityProvider {
	return &stream{hub: h, key: key}
}

type stream struct {
	hub *Hub
	key string
}

var _ ports.IdentityProvider = (*stream)(nil)

// Subscribe registers onChange, then seeds it synchronously with the current
// identity. Registration happens before the seed read so a transition
// published while the seed is in flight is buffered and replayed after the
// seed rather than lost. A failing source seeds logged-out: an identity we
// cannot confirm is treated as absent, never guessed.
func (s *stream) Subscribe(onChange func(*domainsession.Identity)) (func(), error) {
	sub := &subscriber{deliver: onChange, buffering: true}

	h := s.hub
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[s.key] == nil {
		h.subs[s.key] = make(map[uint64]func(*domainsession.Identity))
	}
	h.subs[s.key][id] = sub.onChange
	h.mu.Unlock()

	sub.settle(s.seedIdentity())

	cancel := func() {
		h.mu.Lock()
		if fns, ok := h.subs[s.key]; ok {
			delete(fns, id)
			if len(fns) == 0 {
				delete(h.subs, s.key)
			}
		}
		h.mu.Unlock()
	}
	return cancel, nil
}

// subscriber serializes deliveries to one onChange callback. While buffering,
// published transitions are held back until the seed has been delivered, so
// the callback always sees the seed first and publishes in arrival order.
type subscriber struct {
	mu        sync.Mutex
	deliver   func(*domainsession.Identity)
	buffering bool
	buffered  []*domainsession.Identity
}

func (s *subscriber) onChange(identity *domainsession.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffering {
		s.buffered = append(s.buffered, identity)
		return
	}
	s.deliver(identity)
}

// settle delivers the seed, replays transitions buffered during the seed
// read, and switches to direct delivery.
func (s *subscriber) settle(seed *domainsession.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliver(seed)
	for _, identity := range s.buffered {
		s.deliver(identity)
	}
	s.buffered = nil
	s.buffering = false
}

func (s *stream) seedIdentity() *domainsession.Identity {
	if s.hub.source == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()
	identity, err := s.hub.source(ctx, s.key)
	if err != nil {
		s.hub.logger.Warn("identity seed lookup failed, treating stream as logged out",
			"stream", s.key, "error", err)
		return nil
	}
	return identity
}
