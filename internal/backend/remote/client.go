// Package remote implements the service.Service interface over the sync
// server's HTTP control API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tasksync/internal/server"
	"tasksync/internal/service"
	"tasksync/internal/wire"
)

// APITimeout is the timeout for control calls.
const APITimeout = 5 * time.Second

// Client implements service.Service against a running server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, token string) *Client {
	return NewWithHTTPClient(baseURL, token, &http.Client{})
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL, token string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// List returns the tasks in rank order.
func (c *Client) List(ctx context.Context) ([]service.Task, error) {
	var items []service.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Snapshot returns the pull envelope as a snapshot.
func (c *Client) Snapshot(ctx context.Context) (service.Snapshot, error) {
	var env wire.Envelope
	if err := c.do(ctx, http.MethodGet, "/api/snapshot", nil, &env); err != nil {
		return service.Snapshot{}, err
	}
	return env.Snapshot(), nil
}

// Toggle flips the done flag of a task.
func (c *Client) Toggle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/toggle"), nil, nil)
}

// ToggleNext toggles the first incomplete task.
func (c *Client) ToggleNext(ctx context.Context) (string, error) {
	var resp server.ToggleNextResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks/toggle-next", nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Add appends a task.
func (c *Client) Add(ctx context.Context, text, group string) error {
	body := map[string]string{"text": text}
	if group != "" {
		body["group"] = group
	}
	return c.do(ctx, http.MethodPost, "/api/tasks", body, nil)
}

// Delete removes a task and returns its text.
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	var resp server.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, taskPath(id, ""), nil, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Edit replaces the text of a task.
func (c *Client) Edit(ctx context.Context, id, text string) (string, string, error) {
	var resp server.EditResponse
	if err := c.do(ctx, http.MethodPut, taskPath(id, ""), map[string]string{"text": text}, &resp); err != nil {
		return "", "", err
	}
	return resp.OldText, resp.NewText, nil
}

// Reset marks every task as not done.
func (c *Client) Reset(ctx context.Context, confirm bool) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/reset", map[string]bool{"confirm": confirm}, nil)
}

// Select sets the selection; "" clears it.
func (c *Client) Select(ctx context.Context, id string) error {
	body := map[string]*string{"taskId": service.StringPtr(id)}
	return c.do(ctx, http.MethodPost, "/api/select", body, nil)
}

// MoveUp swaps a task with the one above it.
func (c *Client) MoveUp(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/move-up"), nil, nil)
}

// MoveDown swaps a task with the one below it.
func (c *Client) MoveDown(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/move-down"), nil, nil)
}

// MoveTo moves a task to target.
func (c *Client) MoveTo(ctx context.Context, id string, target int) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/move"), map[string]int{"target": target}, nil)
}

// taskPath builds a per-task route. Ids are opaque and escaped as one
// path segment.
func taskPath(id, suffix string) string {
	return "/api/tasks/" + url.PathEscape(id) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapError(err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: invalid response: %v", service.ErrChannel, err)
	}
	return nil
}

// decodeError maps a failed response back onto the error taxonomy.
func decodeError(status int, data []byte) error {
	var body server.ErrorBody
	_ = json.Unmarshal(data, &body)
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	var sentinel error
	switch body.Error.Code {
	case server.CodeUnauthorized:
		sentinel = service.ErrUnauthorized
	case server.CodeForbidden:
		sentinel = service.ErrForbidden
	case server.CodeNotFound:
		sentinel = service.ErrNotFound
	case server.CodeNoData:
		sentinel = service.ErrNoData
	case server.CodeInvalidArgument:
		sentinel = service.ErrInvalidArgument
	case server.CodeIO:
		sentinel = service.ErrIO
	default:
		switch status {
		case http.StatusUnauthorized:
			sentinel = service.ErrUnauthorized
		case http.StatusForbidden:
			sentinel = service.ErrForbidden
		case http.StatusNotFound:
			sentinel = service.ErrNotFound
		case http.StatusBadRequest:
			sentinel = service.ErrInvalidArgument
		default:
			sentinel = service.ErrChannel
		}
	}
	if errors.Is(sentinel, service.ErrUnauthorized) || errors.Is(sentinel, service.ErrForbidden) {
		return fmt.Errorf("%w: token missing or rejected (set --token or TASKSYNC_TOKEN)", sentinel)
	}
	return fmt.Errorf("%w: %s", sentinel, strings.TrimPrefix(msg, sentinel.Error()+": "))
}

// wrapError wraps transport errors with user-friendly messages.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", service.ErrChannel)
	}
	return fmt.Errorf("%w: server unreachable (run: tasksync serve): %v", service.ErrChannel, err)
}

var _ service.Service = (*Client)(nil)
