package googletasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

func tokenEndpoint(t *testing.T) (*httptest.Server, *url.Values) {
	t.Helper()
	var got url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(ts.Close)
	return ts, &got
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: tokenURL},
		Scopes:       []string{Scope},
	}
}

// follow plays the browser: it opens the redirect with the given code.
func follow(t *testing.T, authURL, code string, tamperState bool) {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	state := q.Get("state")
	if tamperState {
		state = "forged"
	}
	cb := q.Get("redirect_uri") + "?" + url.Values{"code": {code}, "state": {state}}.Encode()
	go func() {
		resp, err := http.Get(cb)
		if err == nil {
			resp.Body.Close()
		}
	}()
}

func TestLoopbackAuthorize(t *testing.T) {
	ts, form := tokenEndpoint(t)

	var prompted string
	flow := Loopback{Prompt: func(authURL string) {
		prompted = authURL
		follow(t, authURL, "the-code", false)
	}}

	token, err := flow.Authorize(context.Background(), testOAuthConfig(ts.URL))
	require.NoError(t, err)
	require.Equal(t, "access", token.AccessToken)
	require.Equal(t, "refresh", token.RefreshToken)

	require.Contains(t, prompted, "code_challenge_method=S256")
	require.Contains(t, prompted, "access_type=offline")
	require.Equal(t, "the-code", form.Get("code"))
	require.NotEmpty(t, form.Get("code_verifier"))
}

func TestLoopbackRejectsForgedState(t *testing.T) {
	ts, _ := tokenEndpoint(t)
	flow := Loopback{Prompt: func(authURL string) { follow(t, authURL, "x", true) }}

	_, err := flow.Authorize(context.Background(), testOAuthConfig(ts.URL))
	require.ErrorIs(t, err, service.ErrUnauthorized)
	require.Contains(t, err.Error(), "state mismatch")
}

func TestLoopbackTimesOut(t *testing.T) {
	ts, _ := tokenEndpoint(t)
	flow := Loopback{CallbackTimeout: 20 * time.Millisecond}

	_, err := flow.Authorize(context.Background(), testOAuthConfig(ts.URL))
	require.ErrorIs(t, err, service.ErrUnauthorized)
	require.Contains(t, err.Error(), "timed out")
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.TokenFile)
	in := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	require.NoError(t, SaveToken(path, in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := LoadToken(path)
	require.NoError(t, err)
	require.Equal(t, "r", out.RefreshToken)
}

func TestTokenValidNeedsRefreshToken(t *testing.T) {
	ts, _ := tokenEndpoint(t)
	path := filepath.Join(t.TempDir(), config.TokenFile)
	conf := testOAuthConfig(ts.URL)

	require.False(t, TokenValid(context.Background(), conf, path))

	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a"}))
	require.False(t, TokenValid(context.Background(), conf, path))

	expired := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}
	require.NoError(t, SaveToken(path, expired))
	require.True(t, TokenValid(context.Background(), conf, path))
}

func TestOAuthConfigMissingFile(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir()}
	_, err := OAuthConfig(cfg)
	require.ErrorIs(t, err, ErrNoOAuthClient)
}
