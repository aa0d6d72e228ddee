// Package auth signs users in with Microsoft identity using the OAuth2
// authorization code flow of a confidential client.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
)

const (
	// DefaultTenant accepts work, school and personal accounts.
	DefaultTenant = "common"

	// DefaultRedirectURI is the callback route of a locally running service.
	DefaultRedirectURI = "http://localhost:3000/api/auth/callback"

	authorityBase = "https://login.microsoftonline.com/"
)

// Scopes requested for every token.
var Scopes = []string{
	"https://graph.microsoft.com/Calendars.Read",
	"https://graph.microsoft.com/Calendars.ReadWrite",
	"https://graph.microsoft.com/User.Read",
}

// Errors returned by the provider.
var (
	ErrNotConfigured = errors.New("auth: client id and client secret must be set")
	ErrNoAccount     = errors.New("auth: no cached account")
)

// Config holds the application registration.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
}

// Token is an access token and the account it belongs to.
type Token struct {
	AccessToken string
	ExpiresOn   time.Time
	AccountID   string
}

// Provider wraps an MSAL confidential client. Refresh tokens stay in the
// client's in-memory cache and are looked up by account id.
type Provider struct {
	client      confidential.Client
	clientID    string
	redirectURI string
}

// New builds a Provider. It fails with ErrNotConfigured when the client id
// or secret is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.TenantID == "" {
		cfg.TenantID = DefaultTenant
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}

	cred, err := confidential.NewCredFromSecret(cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}
	client, err := confidential.New(authorityBase+cfg.TenantID, cfg.ClientID, cred)
	if err != nil {
		return nil, fmt.Errorf("create MSAL client: %w", err)
	}

	return &Provider{
		client:      client,
		clientID:    cfg.ClientID,
		redirectURI: cfg.RedirectURI,
	}, nil
}

// AuthCodeURL returns the sign-in URL carrying state.
func (p *Provider) AuthCodeURL(ctx context.Context, state string) (string, error) {
	raw, err := p.client.AuthCodeURL(ctx, p.clientID, p.redirectURI, Scopes)
	if err != nil {
		return "", fmt.Errorf("failed to get auth URL: %w", err)
	}
	return withState(raw, state)
}

// ExchangeCode redeems an authorization code.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (Token, error) {
	res, err := p.client.AcquireTokenByAuthCode(ctx, code, p.redirectURI, Scopes)
	if err != nil {
		return Token{}, fmt.Errorf("token acquisition failed: %w", err)
	}
	return Token{
		AccessToken: res.AccessToken,
		ExpiresOn:   res.ExpiresOn,
		AccountID:   res.Account.HomeAccountID,
	}, nil
}

// Refresh silently acquires a new access token for a cached account.
func (p *Provider) Refresh(ctx context.Context, accountID string) (Token, error) {
	if accountID == "" {
		return Token{}, ErrNoAccount
	}
	acct, err := p.client.Account(ctx, accountID)
	if err != nil {
		return Token{}, fmt.Errorf("look up account: %w", err)
	}
	if acct.HomeAccountID == "" {
		return Token{}, ErrNoAccount
	}
	res, err := p.client.AcquireTokenSilent(ctx, Scopes, confidential.WithSilentAccount(acct))
	if err != nil {
		return Token{}, fmt.Errorf("token refresh failed: %w", err)
	}
	return Token{
		AccessToken: res.AccessToken,
		ExpiresOn:   res.ExpiresOn,
		AccountID:   acct.HomeAccountID,
	}, nil
}

// withState sets the state query parameter on an authorization URL.
func withState(raw, state string) (string, error) {
	if state == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse auth URL: %w", err)
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
