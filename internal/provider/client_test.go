package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	tokenStatus    int
	tokenBody      map[string]any
	userInfoStatus int

	gotForm   url.Values
	gotBearer string
}

func (f *fakeProvider) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_ = json.NewEncoder(w).Encode(f.tokenBody)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.gotBearer = r.Header.Get("Authorization")
		w.WriteHeader(f.userInfoStatus)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{
		Name:           "tiktok",
		ClientID:       "client-key",
		ClientSecret:   "client-secret",
		RedirectURL:    "https://app.example.com/v1/link/callback",
		AuthURL:        srv.URL + "/authorize",
		TokenURL:       srv.URL + "/token",
		UserInfoURL:    srv.URL + "/userinfo",
		Scopes:         []string{"user.info.basic", "video.upload"},
		ScopeSeparator: ",",
	}, srv.Client(), nil)
}

func TestClient_AuthCodeURL(t *testing.T) {
	f := &fakeProvider{}
	c := newTestClient(f.server(t))

	u, err := url.Parse(c.AuthCodeURL("state-123"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-key", q.Get("client_id"))
	assert.Equal(t, "https://app.example.com/v1/link/callback", q.Get("redirect_uri"))
	assert.Equal(t, "user.info.basic,video.upload", q.Get("scope"))
}

func TestClient_Exchange(t *testing.T) {
	f := &fakeProvider{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token":  "act.123",
			"refresh_token": "rft.456",
			"token_type":    "Bearer",
			"expires_in":    86400,
			"scope":         "user.info.basic",
		},
	}
	c := newTestClient(f.server(t))

	before := time.Now()
	tok, err := c.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "act.123", tok.AccessToken)
	assert.Equal(t, "rft.456", tok.RefreshToken)
	assert.Equal(t, "user.info.basic", tok.Scope)
	assert.True(t, tok.Expiry.After(before.Add(23*time.Hour)))

	assert.Equal(t, "auth-code", f.gotForm.Get("code"))
	assert.Equal(t, "authorization_code", f.gotForm.Get("grant_type"))
	assert.Equal(t, "client-key", f.gotForm.Get("client_id"))
	assert.Equal(t, "client-secret", f.gotForm.Get("client_secret"))
	assert.Equal(t, "https://app.example.com/v1/link/callback", f.gotForm.Get("redirect_uri"))
}

func TestClient_ExchangeRejected(t *testing.T) {
	f := &fakeProvider{
		tokenStatus: http.StatusBadRequest,
		tokenBody:   map[string]any{"error": "invalid_grant"},
	}
	c := newTestClient(f.server(t))

	_, err := c.Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, ErrExchange)
}

func TestClient_ExchangeMissingAccessToken(t *testing.T) {
	f := &fakeProvider{
		tokenStatus: http.StatusOK,
		tokenBody:   map[string]any{"token_type": "Bearer"},
	}
	c := newTestClient(f.server(t))

	_, err := c.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestClient_VerifyToken(t *testing.T) {
	f := &fakeProvider{userInfoStatus: http.StatusOK}
	c := newTestClient(f.server(t))

	require.NoError(t, c.VerifyToken(context.Background(), "act.123"))
	assert.Equal(t, "Bearer act.123", f.gotBearer)

	f.userInfoStatus = http.StatusUnauthorized
	assert.ErrorIs(t, c.VerifyToken(context.Background(), "act.123"), ErrUserInfo)
}

func TestClient_VerifyTokenSkippedWithoutEndpoint(t *testing.T) {
	c := New(Config{Name: "p"}, nil, nil)
	assert.NoError(t, c.VerifyToken(context.Background(), "anything"))
}
