package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tasksync/internal/backend/local"
	"tasksync/internal/service"
)

// fakeAPI serves the subset of the Tasks API the importer uses.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/v1/users/@me/lists/", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]any{"id": "L1", "title": "My Tasks"})
	})
	mux.HandleFunc("/tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]any{"items": []map[string]any{
			{"id": "L1", "title": "My Tasks"},
			{"id": "L2", "title": "Errands"},
		}})
	})
	mux.HandleFunc("/tasks/v1/lists/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/tasks/v1/lists/L2/"):
			if r.URL.Query().Get("pageToken") == "" {
				write(w, map[string]any{
					"items":         []map[string]any{{"id": "a", "title": "Buy milk"}},
					"nextPageToken": "p2",
				})
				return
			}
			write(w, map[string]any{"items": []map[string]any{
				{"id": "b", "title": "Post letter"},
				{"id": "c", "title": "  "},
			}})
		case strings.HasPrefix(r.URL.Path, "/tasks/v1/lists/@default/"):
			write(w, map[string]any{"items": []map[string]any{{"id": "d", "title": "Call mum"}}})
		case strings.HasPrefix(r.URL.Path, "/tasks/v1/lists/gone/"):
			w.WriteHeader(http.StatusNotFound)
			write(w, map[string]any{"error": map[string]any{"code": 404, "message": "not found"}})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			write(w, map[string]any{"error": map[string]any{"code": 401, "message": "bad token"}})
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ts := fakeAPI(t)
	c, err := NewWithHTTPClient(context.Background(), ts.Client(), ts.URL+"/")
	require.NoError(t, err)
	return c
}

func TestListListsNormalisesDefault(t *testing.T) {
	c := newTestClient(t)

	lists, err := c.ListLists(context.Background())
	require.NoError(t, err)
	require.Equal(t, []TaskList{
		{ID: DefaultListID, Title: "My Tasks", IsDefault: true},
		{ID: "L2", Title: "Errands"},
	}, lists)
}

func TestResolveList(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	list, err := c.ResolveList(ctx, "  errands ")
	require.NoError(t, err)
	require.Equal(t, "L2", list.ID)

	list, err = c.ResolveList(ctx, "")
	require.NoError(t, err)
	require.True(t, list.IsDefault)

	_, err = c.ResolveList(ctx, "Work")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestOpenTasksFollowsPages(t *testing.T) {
	c := newTestClient(t)

	got, err := c.OpenTasks(context.Background(), "L2")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "Buy milk", got[0].Title)
	require.Equal(t, "Post letter", got[1].Title)
}

func TestWrapErrorMapsStatus(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.OpenTasks(ctx, "gone")
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = c.OpenTasks(ctx, "other")
	require.ErrorIs(t, err, service.ErrUnauthorized)
	require.Contains(t, err.Error(), "tasksync login")

	require.ErrorIs(t, wrapError(context.DeadlineExceeded), service.ErrChannel)
	require.ErrorIs(t, wrapError(errors.New("boom")), service.ErrChannel)
}

func TestImportAddsGroupedTasksOnce(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	dst, err := local.Open(filepath.Join(t.TempDir(), "tasks.json"), nil)
	require.NoError(t, err)
	defer dst.Close()
	require.NoError(t, dst.Add(ctx, "Post letter", "Errands"))

	res, err := Import(ctx, c, dst, "Errands")
	require.NoError(t, err)
	require.Equal(t, Result{List: "Errands", Added: 1, Skipped: 1, Untitled: 1}, res)

	items, err := dst.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Buy milk", items[1].Text)
	require.Equal(t, "Errands", items[1].GroupName())
	require.Equal(t, 1, items[1].Order)

	res, err = Import(ctx, c, dst, "Errands")
	require.NoError(t, err)
	require.Equal(t, 0, res.Added)
	require.Equal(t, 2, res.Skipped)
}

func TestImportUnknownList(t *testing.T) {
	c := newTestClient(t)
	dst, err := local.Open(filepath.Join(t.TempDir(), "tasks.json"), nil)
	require.NoError(t, err)
	defer dst.Close()

	_, err = Import(context.Background(), c, dst, "Work")
	require.ErrorIs(t, err, service.ErrNotFound)
}
