package oidc

// Package oidc provides the OIDC/OAuth identity provider adapter.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider implements the AuthProvider interface using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

var _ ports.AuthProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// NewProvider creates a new OIDC provider. It performs a single discovery
// fetch against DiscoveryURL.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	p := &Provider{
		httpClient:   httpClient,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}
	return p, nil
}

// Begin starts the login flow with cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// Don't override redirect_uri here; it must match the configured
	// RedirectURL exactly.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

// Exchange completes the login flow and maps token claims onto the identity
// shape the resolver consumes.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainsession.Identity, error) {
	if in.Code == "" {
		return domainsession.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainsession.Identity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainsession.Identity{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainsession.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	sub, email, err := p.extractFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainsession.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}

	if sub == "" || email == "" {
		uiSub, uiEmail, uiErr := p.fromUserInfo(ctx, token.AccessToken)
		if uiErr != nil {
			return domainsession.Identity{}, fmt.Errorf("get user info: %w", uiErr)
		}
		sub = firstNonEmpty(sub, uiSub)
		email = firstNonEmpty(email, uiEmail)
	}
	if sub == "" {
		return domainsession.Identity{}, errors.New("provider returned no subject")
	}

	expiresAt := time.Now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}

	return domainsession.Identity{ID: sub, Email: email, ExpiresAt: expiresAt}, nil
}

type idTokenClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Nonce string `json:"nonce"`
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (string, string, error) {
	if !p.hasOpenIDScope() {
		return "", "", nil
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return "", "", errors.New("token response missing id_token")
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return "", "", fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return "", "", fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return "", "", errors.New("invalid nonce")
	}
	return claims.Sub, claims.Email, nil
}

func (p *Provider) fromUserInfo(ctx context.Context, accessToken string) (string, string, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return "", "", fmt.Errorf("fetch user info: %w", err)
	}
	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if claimsErr := ui.Claims(&claims); claimsErr != nil {
		return "", "", fmt.Errorf("decode user info: %w", claimsErr)
	}
	return claims.Sub, claims.Email, nil
}

func (p *Provider) hasOpenIDScope() bool {
	for _, s := range p.config.Scopes {
		if s == gooidc.ScopeOpenID {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func generateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
