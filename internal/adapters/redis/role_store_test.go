package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
	"github.com/academiq/academiq-api/internal/testutil"
)

func TestNewRoleDocStore_ValidatesExpression(t *testing.T) {
	_, err := NewRoleDocStore(nil, RoleDocStoreOptions{RoleField: "not a [valid expr"})
	require.Error(t, err)
}

func TestRoleDocStore_RoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewRoleDocStore(client, RoleDocStoreOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	rec := domainsession.RoleRecord{
		UserID: "u1",
		Role:   "teacher",
		Profile: map[string]any{
			"email": "u1@example.com",
		},
	}
	require.NoError(t, store.CreateRoleRecord(ctx, rec))

	got, err := store.GetRoleRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "teacher", got.Role)
	assert.Equal(t, "u1@example.com", got.Profile["email"])
}

func TestRoleDocStore_MissingDocument(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewRoleDocStore(client, RoleDocStoreOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.GetRoleRecord(ctx, "never-written")
	assert.ErrorIs(t, err, ports.ErrRoleRecordNotFound)

	_, err = store.GetRoleRecord(ctx, "")
	assert.ErrorIs(t, err, ports.ErrRoleRecordNotFound)
}

func TestRoleDocStore_MissingRoleFieldYieldsEmptyRole(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewRoleDocStore(client, RoleDocStoreOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	// A document written without a role field still resolves, with Role empty.
	require.NoError(t, client.Set(ctx, "user:u1", `{"email":"u1@example.com"}`, 0).Err())

	got, err := store.GetRoleRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Role)
	assert.Equal(t, "u1@example.com", got.Profile["email"])
}

func TestRoleDocStore_NonStringRoleFieldYieldsEmptyRole(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewRoleDocStore(client, RoleDocStoreOptions{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "user:u1", `{"role":42}`, 0).Err())

	got, err := store.GetRoleRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Role)
}

func TestRoleDocStore_CustomRoleExpression(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewRoleDocStore(client, RoleDocStoreOptions{RoleField: "profile.access.role"})
	require.NoError(t, err)
	ctx := context.Background()

	doc := `{"profile":{"access":{"role":"admin"}}}`
	require.NoError(t, client.Set(ctx, "user:u1", doc, 0).Err())

	got, err := store.GetRoleRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)
}

func TestRoleDocStore_CustomPrefix(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewRoleDocStore(client, RoleDocStoreOptions{Prefix: "account:"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.CreateRoleRecord(ctx, domainsession.RoleRecord{UserID: "u1", Role: "parent"}))

	exists, err := client.Exists(ctx, "account:u1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRoleDocStore_CreateValidation(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewRoleDocStore(client, RoleDocStoreOptions{})
	require.NoError(t, err)

	require.Error(t, store.CreateRoleRecord(context.Background(), domainsession.RoleRecord{Role: "student"}))
}
