package auth

// Package auth contains simple hand-written test doubles for the auth,
// session, and role ports. These are lightweight and suitable for unit
// tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider     = (*MockAuthProvider)(nil)
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
	_ ports.RoleStore        = (*MemoryRoleStore)(nil)
	_ ports.LegacyRoleStore  = (*MemoryRoleStore)(nil)
	_ ports.RoleWriter       = (*MemoryRoleStore)(nil)
	_ ports.RoleLister       = (*MemoryRoleStore)(nil)
	_ ports.IdentityProvider = (*ScriptedIdentityProvider)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainsession.Identity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainsession.Identity

	// Internal state tracking for deterministic behavior
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainsession.Identity{
			ID:        "mock-user-1",
			Email:     "mock.user@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.callCount++
	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}

	// Generate deterministic state and nonce based on call count
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	state := fmt.Sprintf("%s-%d", statePrefix, m.callCount)
	nonce := fmt.Sprintf("%s-%d", noncePrefix, m.callCount)

	return authURL, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainsession.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}

	// Return a copy of the default user with a fresh expiration time
	user := m.DefaultUser
	if user.ID == "" {
		user = domainsession.Identity{
			ID:    "mock-user-1",
			Email: "mock.user@example.com",
		}
	}
	user.ExpiresAt = time.Now().Add(time.Hour)

	return user, nil
}

// ErrNotFound is returned by mocks when an entity is not present.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var ErrNotFound error = notFoundError{}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainsession.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainsession.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainsession.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainsession.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainsession.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemoryRoleStore is an in-memory role record store usable as the primary
// store, the legacy store, and the signup writer. Err, when set, is returned
// from every read to simulate fetch failure.
type MemoryRoleStore struct {
	mu      sync.Mutex
	records map[string]domainsession.RoleRecord

	Err error
}

// NewMemoryRoleStore creates an empty role store.
func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{records: make(map[string]domainsession.RoleRecord)}
}

// Put stores a record keyed by user id.
func (m *MemoryRoleStore) Put(rec domainsession.RoleRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec
}

func (m *MemoryRoleStore) GetRoleRecord(_ context.Context, identityID string) (domainsession.RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainsession.RoleRecord{}, m.Err
	}
	rec, ok := m.records[identityID]
	if !ok {
		return domainsession.RoleRecord{}, ports.ErrRoleRecordNotFound
	}
	return rec, nil
}

func (m *MemoryRoleStore) CreateRoleRecord(_ context.Context, rec domainsession.RoleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.records[rec.UserID] = rec
	return nil
}

func (m *MemoryRoleStore) DistinctRoles(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	seen := make(map[string]struct{})
	var roles []string
	for _, rec := range m.records {
		if rec.Role == "" {
			continue
		}
		if _, ok := seen[rec.Role]; ok {
			continue
		}
		seen[rec.Role] = struct{}{}
		roles = append(roles, rec.Role)
	}
	return roles, nil
}

// MemoryStudentProfiles records student-profile writes for assertions. Err,
// when set, is returned from every write.
type MemoryStudentProfiles struct {
	mu       sync.Mutex
	profiles map[string]string

	Err error
}

var _ ports.StudentProfileWriter = (*MemoryStudentProfiles)(nil)

// NewMemoryStudentProfiles creates an empty profile writer.
func NewMemoryStudentProfiles() *MemoryStudentProfiles {
	return &MemoryStudentProfiles{profiles: make(map[string]string)}
}

func (m *MemoryStudentProfiles) CreateStudentProfile(_ context.Context, userID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.profiles[userID] = email
	return nil
}

// Email returns the recorded profile email for a user and whether one exists.
func (m *MemoryStudentProfiles) Email(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.profiles[userID]
	return email, ok
}

// Len reports the number of recorded profiles.
func (m *MemoryStudentProfiles) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

// ScriptedIdentityProvider replays identity transitions to subscribers. The
// Initial identity seeds each subscriber on Subscribe; Emit pushes later
// transitions. SubscribeErr, when set, fails Subscribe.
type ScriptedIdentityProvider struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]func(*domainsession.Identity)
	current *domainsession.Identity

	SubscribeErr error
}

// NewScriptedIdentityProvider creates a provider seeded with the given
// identity (nil means logged out).
func NewScriptedIdentityProvider(initial *domainsession.Identity) *ScriptedIdentityProvider {
	return &ScriptedIdentityProvider{
		subs:    make(map[uint64]func(*domainsession.Identity)),
		current: initial,
	}
}

func (p *ScriptedIdentityProvider) Subscribe(onChange func(*domainsession.Identity)) (func(), error) {
	p.mu.Lock()
	if p.SubscribeErr != nil {
		err := p.SubscribeErr
		p.mu.Unlock()
		return nil, err
	}
	p.nextID++
	id := p.nextID
	p.subs[id] = onChange
	current := p.current
	p.mu.Unlock()

	onChange(current)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}, nil
}

// Emit delivers a transition to all active subscribers.
func (p *ScriptedIdentityProvider) Emit(identity *domainsession.Identity) {
	p.mu.Lock()
	p.current = identity
	fns := make([]func(*domainsession.Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// SubscriberCount reports active subscriptions, useful for teardown checks.
func (p *ScriptedIdentityProvider) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// CapturePublisher records identity publications for assertions.
type CapturePublisher struct {
	mu     sync.Mutex
	events []PublishedIdentity
}

// PublishedIdentity is one recorded Publish call.
type PublishedIdentity struct {
	StreamKey string
	Identity  *domainsession.Identity
}

var _ ports.IdentityPublisher = (*CapturePublisher)(nil)

func (c *CapturePublisher) Publish(streamKey string, identity *domainsession.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, PublishedIdentity{StreamKey: streamKey, Identity: identity})
}

// Events returns a copy of the recorded publications.
func (c *CapturePublisher) Events() []PublishedIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PublishedIdentity, len(c.events))
	copy(out, c.events)
	return out
}
