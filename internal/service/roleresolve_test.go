package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
)

func TestRoleFromResolution(t *testing.T) {
	fallback := FallbackToStudent()

	t.Run("fetch error takes fallback", func(t *testing.T) {
		role := RoleFromResolution(RoleResolution{Err: errors.New("store down")}, fallback)
		require.NotNil(t, role)
		assert.Equal(t, domainsession.RoleStudent, *role)
	})

	t.Run("missing record takes fallback", func(t *testing.T) {
		role := RoleFromResolution(RoleResolution{}, fallback)
		require.NotNil(t, role)
		assert.Equal(t, domainsession.RoleStudent, *role)
	})

	t.Run("unrecognized role field takes fallback", func(t *testing.T) {
		res := RoleResolution{
			Record: domainsession.RoleRecord{UserID: "u1", Role: "superuser"},
			Found:  true,
		}
		role := RoleFromResolution(res, fallback)
		require.NotNil(t, role)
		assert.Equal(t, domainsession.RoleStudent, *role)
	})

	t.Run("empty role field takes fallback", func(t *testing.T) {
		res := RoleResolution{
			Record: domainsession.RoleRecord{UserID: "u1"},
			Found:  true,
		}
		role := RoleFromResolution(res, fallback)
		require.NotNil(t, role)
		assert.Equal(t, domainsession.RoleStudent, *role)
	})

	t.Run("valid role field wins", func(t *testing.T) {
		res := RoleResolution{
			Record: domainsession.RoleRecord{UserID: "u1", Role: "teacher"},
			Found:  true,
		}
		role := RoleFromResolution(res, fallback)
		require.NotNil(t, role)
		assert.Equal(t, domainsession.RoleTeacher, *role)
	})

	t.Run("fail closed resolves to no role", func(t *testing.T) {
		assert.Nil(t, RoleFromResolution(RoleResolution{}, FailClosed()))
		assert.Nil(t, RoleFromResolution(RoleResolution{Err: errors.New("boom")}, FailClosed()))
	})
}

func TestFallbackPolicy_RoleReturnsCopy(t *testing.T) {
	policy := FallbackToRole(domainsession.RoleParent)

	first := policy.Role()
	require.NotNil(t, first)
	*first = domainsession.RoleAdmin

	second := policy.Role()
	require.NotNil(t, second)
	assert.Equal(t, domainsession.RoleParent, *second)
}
