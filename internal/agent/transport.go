package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"tasksync/internal/service"
	"tasksync/internal/wire"
)

// Conn is an open push channel.
type Conn interface {
	// ReadMessage blocks for the next frame.
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens push channels.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Fetcher performs one pull.
type Fetcher interface {
	Fetch(ctx context.Context) (service.Snapshot, error)
}

// WebSocketDialer dials the server's /ws endpoint.
type WebSocketDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

// NewWebSocketDialer derives the push URL from a server base URL.
func NewWebSocketDialer(baseURL string) *WebSocketDialer {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WebSocketDialer{URL: u + "/ws"}
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, d.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", service.ErrChannel, d.URL, err)
	}
	return wsConn{conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) Close() error {
	return c.conn.Close()
}

// HTTPFetcher pulls /api/snapshot.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// NewHTTPFetcher derives the pull URL from a server base URL.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{URL: strings.TrimRight(baseURL, "/") + "/api/snapshot"}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (service.Snapshot, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return service.Snapshot{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return service.Snapshot{}, fmt.Errorf("%w: pull: %v", service.ErrChannel, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return service.Snapshot{}, fmt.Errorf("%w: read pull body: %v", service.ErrChannel, err)
	}
	if resp.StatusCode != http.StatusOK {
		return service.Snapshot{}, fmt.Errorf("%w: pull returned %s", service.ErrChannel, resp.Status)
	}
	env, err := wire.Decode(data)
	if err != nil {
		return service.Snapshot{}, err
	}
	return env.Snapshot(), nil
}
