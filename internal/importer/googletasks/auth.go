package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

// Loopback flow defaults.
const (
	DefaultCallbackTimeout = 5 * time.Minute
	DefaultExchangeTimeout = 30 * time.Second
	DefaultStartPort       = 8085
	DefaultPortAttempts    = 5
)

// ErrNoOAuthClient means oauth_client.json is missing.
var ErrNoOAuthClient = errors.New("oauth client credentials not found")

// OAuthConfig reads oauth_client.json from the config directory.
func OAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found in %s", ErrNoOAuthClient, config.OAuthClientFile, cfg.Dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", config.OAuthClientFile, err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
	}
	return oauthConfig, nil
}

// LoadToken reads a stored token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	return &token, nil
}

// SaveToken writes a token with mode 0600.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// TokenValid reports whether the stored token has a refresh token and can
// still produce an access token.
func TokenValid(ctx context.Context, oauthConfig *oauth2.Config, path string) bool {
	token, err := LoadToken(path)
	if err != nil || token.RefreshToken == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = oauthConfig.TokenSource(ctx, token).Token()
	return err == nil
}

// Loopback runs the installed-app OAuth flow: it listens on localhost,
// hands the consent URL to Prompt and exchanges the returned code using
// PKCE.
type Loopback struct {
	// StartPort is the first port tried. 0 lets the OS pick one.
	StartPort       int
	PortAttempts    int
	CallbackTimeout time.Duration
	ExchangeTimeout time.Duration

	// Prompt shows the consent URL to the user.
	Prompt func(authURL string)
}

func (l Loopback) withDefaults() Loopback {
	if l.PortAttempts <= 0 {
		l.PortAttempts = DefaultPortAttempts
	}
	if l.CallbackTimeout <= 0 {
		l.CallbackTimeout = DefaultCallbackTimeout
	}
	if l.ExchangeTimeout <= 0 {
		l.ExchangeTimeout = DefaultExchangeTimeout
	}
	if l.Prompt == nil {
		l.Prompt = func(string) {}
	}
	return l
}

// Authorize obtains a token for oauthConfig.
func (l Loopback) Authorize(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	l = l.withDefaults()

	listener, err := l.listen()
	if err != nil {
		return nil, fmt.Errorf("%w: could not bind to local port for OAuth callback", service.ErrUnauthorized)
	}
	defer listener.Close()

	conf := *oauthConfig
	conf.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", listener.Addr().(*net.TCPAddr).Port)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	l.Prompt(conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	report := func(code string, err error) {
		if err != nil {
			select {
			case errCh <- err:
			default:
			}
			return
		}
		select {
		case codeCh <- code:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			report("", errors.New("oauth state mismatch"))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			report("", fmt.Errorf("no code in callback: %s", q.Get("error")))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You may close this window.</p></body></html>")
		report(code, nil)
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			report("", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, fmt.Errorf("%w: %v", service.ErrUnauthorized, err)
	case <-time.After(l.CallbackTimeout):
		return nil, fmt.Errorf("%w: oauth callback timed out", service.ErrUnauthorized)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, l.ExchangeTimeout)
	defer cancel()
	token, err := conf.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange code for token: %v", service.ErrUnauthorized, err)
	}
	return token, nil
}

func (l Loopback) listen() (net.Listener, error) {
	if l.StartPort == 0 {
		return net.Listen("tcp", "localhost:0")
	}
	var lastErr error
	for i := 0; i < l.PortAttempts; i++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", l.StartPort+i))
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
