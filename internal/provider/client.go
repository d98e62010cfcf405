// Package provider talks to the third-party OAuth provider: it builds the
// authorization URL, exchanges authorization codes for tokens and checks a
// token against the provider's userinfo endpoint.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrExchange is returned when the token endpoint rejects the code.
	ErrExchange = errors.New("authorization code exchange failed")
	// ErrNoAccessToken is returned when the provider answers without an access token.
	ErrNoAccessToken = errors.New("provider returned no access token")
	// ErrUserInfo is returned when the issued token fails the userinfo check.
	ErrUserInfo = errors.New("provider token verification failed")
)

// maxErrorBody bounds how much of an upstream error body is logged.
const maxErrorBody = 4 << 10

// Config describes one OAuth provider.
type Config struct {
	Name           string
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	AuthURL        string
	TokenURL       string
	UserInfoURL    string
	Scopes         []string
	ScopeSeparator string // providers such as TikTok expect "," instead of " "
}

// Token is what the provider issued for a linked account.
type Token struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	Expiry       time.Time // zero when the provider did not say
}

// Client is an OAuth client for a single provider.
type Client struct {
	name        string
	oauth       *oauth2.Config
	userInfoURL string
	http        *http.Client
	log         *zap.Logger
}

// New builds a Client. A nil httpClient uses a client with a 10s timeout.
func New(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	scopes := cfg.Scopes
	if sep := cfg.ScopeSeparator; sep != "" && sep != " " && len(scopes) > 1 {
		scopes = []string{strings.Join(scopes, sep)}
	}
	return &Client{
		name: cfg.Name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		http:        httpClient,
		log:         log.With(zap.String("provider", cfg.Name)),
	}
}

// Name identifies the provider in stored tokens.
func (c *Client) Name() string { return c.name }

// AuthCodeURL returns the provider authorization URL carrying state, the
// requested scopes and the redirect target.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token at the token endpoint.
func (c *Client) Exchange(ctx context.Context, code string) (Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			c.log.Warn("token exchange rejected",
				zap.Int("status", statusOf(re.Response)),
				zap.ByteString("body", truncate(re.Body)))
		} else {
			c.log.Warn("token exchange failed", zap.Error(err))
		}
		if strings.Contains(err.Error(), "missing access_token") {
			return Token{}, ErrNoAccessToken
		}
		return Token{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	if tok.AccessToken == "" {
		return Token{}, ErrNoAccessToken
	}
	out := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if s, ok := tok.Extra("scope").(string); ok {
		out.Scope = s
	}
	return out, nil
}

// VerifyToken calls the userinfo endpoint with the token as bearer. It is a
// no-op when no userinfo endpoint is configured.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) error {
	if c.userInfoURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("userinfo request failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("userinfo rejected token",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

func statusOf(r *http.Response) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

func truncate(b []byte) []byte {
	if len(b) > maxErrorBody {
		return b[:maxErrorBody]
	}
	return b
}
