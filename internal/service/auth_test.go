package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/mocks"
	mockauth "github.com/academiq/academiq-api/internal/mocks/auth"
	"github.com/academiq/academiq-api/internal/ports"
)

func newTestAuthService(t *testing.T) (*AuthService, *mockauth.MemorySessionStore, *mockauth.MemoryRoleStore, *mockauth.CapturePublisher) {
	t.Helper()
	sessions := mockauth.NewMemorySessionStore()
	roles := mockauth.NewMemoryRoleStore()
	publisher := &mockauth.CapturePublisher{}
	svc := NewAuthService(AuthServiceOptions{
		Provider:  mockauth.NewMockAuthProvider(),
		Sessions:  sessions,
		Roles:     roles,
		Publisher: publisher,
	})
	return svc, sessions, roles, publisher
}

func TestAuthService_BeginLogin(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)

	t.Run("requires redirect URL", func(t *testing.T) {
		_, err := svc.BeginLogin(context.Background(), "")
		require.Error(t, err)
	})

	t.Run("returns auth URL with state and nonce", func(t *testing.T) {
		res, err := svc.BeginLogin(context.Background(), "http://localhost:8080/auth/callback")
		require.NoError(t, err)
		assert.Equal(t, "https://mock-idp/auth", res.AuthURL)
		assert.NotEmpty(t, res.State)
		assert.NotEmpty(t, res.Nonce)
	})
}

func TestAuthService_CompleteLogin(t *testing.T) {
	t.Run("validates inputs", func(t *testing.T) {
		svc, _, _, _ := newTestAuthService(t)
		for _, input := range []CompleteLoginInput{
			{State: "s", Nonce: "n"},
			{Code: "c", Nonce: "n"},
			{Code: "c", State: "s"},
		} {
			_, err := svc.CompleteLogin(context.Background(), input)
			require.Error(t, err)
		}
	})

	t.Run("persists session and publishes identity", func(t *testing.T) {
		svc, sessions, _, publisher := newTestAuthService(t)

		res, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
			Code: "code", State: "state-1", Nonce: "nonce-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "mock-user-1", res.Identity.ID)
		assert.Equal(t, res.Identity.ID, res.Session.UserID)
		assert.NotEmpty(t, res.Session.ID)
		assert.Equal(t, 1, sessions.Len())

		events := publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, res.Session.ID, events[0].StreamKey)
		require.NotNil(t, events[0].Identity)
		assert.Equal(t, res.Identity.ID, events[0].Identity.ID)
	})

	t.Run("provider failure propagates", func(t *testing.T) {
		provider := mockauth.NewMockAuthProvider()
		provider.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainsession.Identity, error) {
			return domainsession.Identity{}, errors.New("token exchange rejected")
		}
		sessions := mockauth.NewMemorySessionStore()
		svc := NewAuthService(AuthServiceOptions{Provider: provider, Sessions: sessions})

		_, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{
			Code: "code", State: "state-1", Nonce: "nonce-1",
		})
		require.Error(t, err)
		assert.Equal(t, 0, sessions.Len())
	})
}

func TestAuthService_GetSession(t *testing.T) {
	t.Run("requires session ID", func(t *testing.T) {
		svc, _, _, _ := newTestAuthService(t)
		_, err := svc.GetSession(context.Background(), "")
		require.Error(t, err)
	})

	t.Run("unknown session errors", func(t *testing.T) {
		svc, _, _, _ := newTestAuthService(t)
		_, err := svc.GetSession(context.Background(), "missing")
		require.Error(t, err)
		assert.False(t, ErrSessionExpired(err))
	})

	t.Run("valid session is returned", func(t *testing.T) {
		svc, sessions, _, _ := newTestAuthService(t)
		sess := domainsession.Session{
			ID:        "sess-1",
			UserID:    "u1",
			Email:     "u1@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, sessions.Save(context.Background(), sess))

		got, err := svc.GetSession(context.Background(), "sess-1")
		require.NoError(t, err)
		assert.Equal(t, sess, *got)
	})

	t.Run("expired session is deleted and published logged out", func(t *testing.T) {
		svc, sessions, _, publisher := newTestAuthService(t)
		sess := domainsession.Session{
			ID:        "sess-1",
			UserID:    "u1",
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		require.NoError(t, sessions.Save(context.Background(), sess))

		_, err := svc.GetSession(context.Background(), "sess-1")
		require.Error(t, err)
		assert.True(t, ErrSessionExpired(err))
		assert.Equal(t, 0, sessions.Len())

		events := publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "sess-1", events[0].StreamKey)
		assert.Nil(t, events[0].Identity)
	})

	t.Run("store failure wraps the error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockSessionStore(ctrl)
		store.EXPECT().
			Get(gomock.Any(), "sess-1").
			Return(domainsession.Session{}, errors.New("redis down"))

		svc := NewAuthService(AuthServiceOptions{Sessions: store})
		_, err := svc.GetSession(context.Background(), "sess-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis down")
	})
}

func TestAuthService_Logout(t *testing.T) {
	svc, sessions, _, publisher := newTestAuthService(t)

	t.Run("empty session ID is a no-op", func(t *testing.T) {
		require.NoError(t, svc.Logout(context.Background(), ""))
		assert.Empty(t, publisher.Events())
	})

	t.Run("deletes the session and publishes logged out", func(t *testing.T) {
		sess := domainsession.Session{ID: "sess-1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, sessions.Save(context.Background(), sess))

		require.NoError(t, svc.Logout(context.Background(), "sess-1"))
		assert.Equal(t, 0, sessions.Len())

		events := publisher.Events()
		require.Len(t, events, 1)
		assert.Nil(t, events[0].Identity)
	})
}

func TestAuthService_ProvisionRole(t *testing.T) {
	t.Run("requires configuration and user ID", func(t *testing.T) {
		svc := NewAuthService(AuthServiceOptions{Sessions: mockauth.NewMemorySessionStore()})
		_, err := svc.ProvisionRole(context.Background(), ProvisionRoleInput{UserID: "u1"})
		require.Error(t, err)

		svc, _, _, _ = newTestAuthService(t)
		_, err = svc.ProvisionRole(context.Background(), ProvisionRoleInput{})
		require.Error(t, err)
	})

	t.Run("provisions the requested role", func(t *testing.T) {
		svc, _, roles, _ := newTestAuthService(t)
		role, err := svc.ProvisionRole(context.Background(), ProvisionRoleInput{
			UserID: "u1", Email: "u1@example.com", Requested: "teacher",
		})
		require.NoError(t, err)
		assert.Equal(t, domainsession.RoleTeacher, role)

		rec, err := roles.GetRoleRecord(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "teacher", rec.Role)
		assert.Equal(t, "u1@example.com", rec.Profile["email"])
	})

	t.Run("unrecognized role defaults to student", func(t *testing.T) {
		svc, _, roles, _ := newTestAuthService(t)
		role, err := svc.ProvisionRole(context.Background(), ProvisionRoleInput{
			UserID: "u2", Requested: "principal",
		})
		require.NoError(t, err)
		assert.Equal(t, domainsession.RoleStudent, role)

		rec, err := roles.GetRoleRecord(context.Background(), "u2")
		require.NoError(t, err)
		assert.Equal(t, "student", rec.Role)
	})

	t.Run("student signup writes the legacy profile row", func(t *testing.T) {
		profiles := mockauth.NewMemoryStudentProfiles()
		svc := NewAuthService(AuthServiceOptions{
			Sessions: mockauth.NewMemorySessionStore(),
			Roles:    mockauth.NewMemoryRoleStore(),
			Profiles: profiles,
		})

		_, err := svc.ProvisionRole(context.Background(), ProvisionRoleInput{
			UserID: "u3", Email: "u3@example.com", Requested: "student",
		})
		require.NoError(t, err)

		email, ok := profiles.Email("u3")
		require.True(t, ok)
		assert.Equal(t, "u3@example.com", email)
	})

	t.Run("non-student signup skips the profile row", func(t *testing.T) {
		profiles := mockauth.NewMemoryStudentProfiles()
		svc := NewAuthService(AuthServiceOptions{
			Sessions: mockauth.NewMemorySessionStore(),
			Roles:    mockauth.NewMemoryRoleStore(),
			Profiles: profiles,
		})

		_, err := svc.ProvisionRole(context.Background(), ProvisionRoleInput{
			UserID: "u4", Requested: "teacher",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, profiles.Len())
	})

	t.Run("profile write failure propagates", func(t *testing.T) {
		profiles := mockauth.NewMemoryStudentProfiles()
		profiles.Err = errors.New("legacy store down")
		svc := NewAuthService(AuthServiceOptions{
			Sessions: mockauth.NewMemorySessionStore(),
			Roles:    mockauth.NewMemoryRoleStore(),
			Profiles: profiles,
		})

		_, err := svc.ProvisionRole(context.Background(), ProvisionRoleInput{
			UserID: "u5", Requested: "student",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create student profile")
	})

	t.Run("no profile writer configured still provisions", func(t *testing.T) {
		svc, _, roles, _ := newTestAuthService(t)
		role, err := svc.ProvisionRole(context.Background(), ProvisionRoleInput{
			UserID: "u6", Requested: "student",
		})
		require.NoError(t, err)
		assert.Equal(t, domainsession.RoleStudent, role)

		_, err = roles.GetRoleRecord(context.Background(), "u6")
		require.NoError(t, err)
	})
}

func TestAuthService_PublishRoleChange(t *testing.T) {
	svc, sessions, _, publisher := newTestAuthService(t)

	sess := domainsession.Session{
		ID:        "sess-1",
		UserID:    "u1",
		Email:     "u1@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, sessions.Save(context.Background(), sess))

	require.NoError(t, svc.PublishRoleChange(context.Background(), "sess-1"))

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "sess-1", events[0].StreamKey)
	require.NotNil(t, events[0].Identity)
	assert.Equal(t, "u1", events[0].Identity.ID)

	require.Error(t, svc.PublishRoleChange(context.Background(), "missing"))
}
