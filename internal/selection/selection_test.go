package selection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tasksync/internal/service"
)

func tasks(ids ...string) []service.Task {
	out := make([]service.Task, len(ids))
	for i, id := range ids {
		out[i] = service.Task{ID: id, Text: id, Order: i}
	}
	return out
}

func TestNext(t *testing.T) {
	tests := []struct {
		name      string
		prev      []service.Task
		prevIndex int
		next      []service.Task
		expected  int
	}{
		{"both empty", nil, 3, nil, 0},
		{"previous empty", nil, 5, tasks("a", "b"), 0},
		{"next empty", tasks("a", "b"), 1, nil, 0},
		{"survives reorder", tasks("a", "b", "c"), 1, tasks("c", "a", "b"), 2},
		{"survives toggle", tasks("a", "b", "c"), 2, tasks("a", "b", "c"), 2},
		{"identity beats new item", tasks("a", "b"), 0, tasks("x", "c", "a", "b"), 2},
		{"biases new item", tasks("a", "b"), 1, tasks("x", "a", "y"), 0},
		{"new item when selection gone", tasks("a", "b"), 1, tasks("a", "c", "d"), 1},
		{"clamps on deletion of last", tasks("a", "b", "c"), 2, tasks("a", "b"), 1},
		{"keeps index on deletion of selected", tasks("a", "b", "c"), 1, tasks("a", "c"), 1},
		{"out of range index clamps", tasks("a", "b"), 9, tasks("x", "y"), 1},
		{"negative index clamps", tasks("a", "b"), -1, tasks("x", "y"), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Next(tc.prev, tc.prevIndex, tc.next))
		})
	}
}

func TestTrackerFollowsSnapshots(t *testing.T) {
	var tr Tracker

	require.Equal(t, 0, tr.Update(service.Snapshot{Items: tasks("a", "b", "c")}))
	require.Equal(t, 2, tr.Move(2))
	require.Equal(t, 2, tr.Move(5))

	require.Equal(t, 0, tr.Update(service.Snapshot{Items: tasks("c", "a", "b")}))
	cur, ok := tr.Current()
	require.True(t, ok)
	require.Equal(t, "c", cur.ID)

	require.Equal(t, 2, tr.Update(service.Snapshot{Items: tasks("a", "b", "new", "d")}))
	cur, _ = tr.Current()
	require.Equal(t, "new", cur.ID)

	require.True(t, tr.SelectID("b"))
	require.False(t, tr.SelectID("zzz"))
	require.Equal(t, 1, tr.Index())

	tr.Update(service.Snapshot{})
	_, ok = tr.Current()
	require.False(t, ok)
}
