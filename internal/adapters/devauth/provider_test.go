package devauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiq/academiq-api/internal/ports"
)

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(Config{Email: "dev@example.com"})
	assert.Error(t, err)

	_, err = NewProvider(Config{UserID: "dev-user"})
	assert.Error(t, err)

	p, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestBegin_RedirectsToLocalCallback(t *testing.T) {
	p, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(authURL, "/auth/callback?code=dev&state="), authURL)
	assert.Contains(t, authURL, state)
	assert.Len(t, state, 24)
	assert.Len(t, nonce, 24)
	assert.NotEqual(t, state, nonce)

	// Each Begin issues fresh values.
	_, state2, _, err := p.Begin(context.Background(), ports.BeginInput{})
	require.NoError(t, err)
	assert.NotEqual(t, state, state2)
}

func TestExchange_ReturnsConfiguredIdentity(t *testing.T) {
	p, err := NewProvider(Config{
		UserID:          "dev-user",
		Email:           "dev@example.com",
		SessionDuration: time.Hour,
	})
	require.NoError(t, err)

	identity, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "dev"})
	require.NoError(t, err)
	assert.Equal(t, "dev-user", identity.ID)
	assert.Equal(t, "dev@example.com", identity.Email)
	assert.True(t, identity.ExpiresAt.After(time.Now().Add(30*time.Minute)))
}
