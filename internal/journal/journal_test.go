package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tasksync/internal/store"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history", "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	return j, path
}

func TestAppendAndList(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close()
	ctx := context.Background()

	for _, op := range []string{"add", "toggle", "delete"} {
		_, err := j.Append(ctx, Entry{Op: op, TaskID: "1", Text: "A", Items: 1, TS: 100})
		require.NoError(t, err)
	}
	_, err := j.Append(ctx, Entry{Op: "reset", Items: 0, TS: 101})
	require.NoError(t, err)

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, "reset", entries[0].Op)
	require.Empty(t, entries[0].TaskID)
	require.Equal(t, "add", entries[3].Op)
	require.False(t, entries[3].At.IsZero())

	limited, err := j.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, entries[1].ID, limited[1].ID)
}

func TestObserveRecordsStoreChanges(t *testing.T) {
	j, path := openTemp(t)
	s := store.New(store.Options{})
	s.Subscribe(j.Observe)

	task, err := s.Add("write journal", "")
	require.NoError(t, err)
	_, err = s.Toggle(task.ID)
	require.NoError(t, err)
	require.NoError(t, s.MoveTo(task.ID, 0))
	require.NoError(t, j.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "move", entries[0].Op)
	require.Equal(t, "toggle", entries[1].Op)
	require.True(t, entries[1].Done)
	require.Equal(t, "add", entries[2].Op)
	require.Equal(t, task.ID, entries[2].TaskID)
	require.Equal(t, "write journal", entries[2].Text)
}

func TestCloseWithoutObserve(t *testing.T) {
	j, _ := openTemp(t)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())
}
