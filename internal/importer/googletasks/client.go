// Package googletasks reads open tasks from Google Tasks so they can be
// seeded into the local task list.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks requested per page.
	PageSize = 100

	// APITimeout is the timeout for a single API call.
	APITimeout = 5 * time.Second

	// Scope is the OAuth scope for Google Tasks.
	Scope = "https://www.googleapis.com/auth/tasks"
)

// TaskList is a Google task list.
type TaskList struct {
	ID        string
	Title     string
	IsDefault bool
}

// RemoteTask is an open Google task.
type RemoteTask struct {
	ID    string
	Title string
	Notes string
}

// Client reads Google Tasks.
type Client struct {
	svc *tasks.Service
}

// New creates a client from oauth_client.json and token.json in the config
// directory. The token refreshes automatically.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	oauthConfig, err := OAuthConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrUnauthorized, err)
	}

	token, err := LoadToken(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("%w: not logged in (run: tasksync login)", service.ErrUnauthorized)
	}

	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, token))
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and
// endpoint (for testing). An empty endpoint uses the public API.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// ListLists returns all task lists in API order. The default list is
// reported with DefaultListID.
func (c *Client) ListLists(ctx context.Context) ([]TaskList, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	def, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}

	var result []TaskList
	err = c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			isDefault := list.Id == def.Id
			id := list.Id
			if isDefault {
				id = DefaultListID
			}
			result = append(result, TaskList{ID: id, Title: list.Title, IsDefault: isDefault})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// ResolveList finds a list by name (case-insensitive, trimmed). An empty
// name selects the default list.
func (c *Client) ResolveList(ctx context.Context, name string) (TaskList, error) {
	lists, err := c.ListLists(ctx)
	if err != nil {
		return TaskList{}, err
	}

	name = strings.TrimSpace(name)
	var matches []TaskList
	for _, list := range lists {
		if name == "" && list.IsDefault {
			return list, nil
		}
		if name != "" && strings.EqualFold(strings.TrimSpace(list.Title), name) {
			matches = append(matches, list)
		}
	}

	switch len(matches) {
	case 0:
		if name == "" {
			return TaskList{}, fmt.Errorf("%w: no default list", service.ErrNotFound)
		}
		return TaskList{}, fmt.Errorf("%w: list not found: %s", service.ErrNotFound, name)
	case 1:
		return matches[0], nil
	default:
		return TaskList{}, fmt.Errorf("%w: ambiguous list name: %s", service.ErrInvalidArgument, name)
	}
}

// OpenTasks returns every open task in a list, following page tokens.
func (c *Client) OpenTasks(ctx context.Context, listID string) ([]RemoteTask, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []RemoteTask
	err := c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(false).
		ShowDeleted(false).
		ShowHidden(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				result = append(result, RemoteTask{ID: t.Id, Title: t.Title, Notes: t.Notes})
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// wrapError maps API errors onto the service error taxonomy.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", service.ErrChannel)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: token expired or revoked (run: tasksync login)", service.ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("%w: google list not found", service.ErrNotFound)
		}
	}
	return fmt.Errorf("%w: google tasks: %v", service.ErrChannel, err)
}
