// Package selection keeps a client-side cursor on a meaningful task while
// the list grows, shrinks or reorders underneath it.
package selection

import "tasksync/internal/service"

// Next returns the cursor index for next given the previous list and the
// index that was selected in it.
//
// Rules, first match wins:
//  1. either list empty: index 0, clamped into next
//  2. the previously selected task still exists: its new index
//  3. next is longer than prev: the first task not present in prev
//  4. otherwise: prevIndex clamped into next
func Next(prev []service.Task, prevIndex int, next []service.Task) int {
	if len(prev) == 0 || len(next) == 0 {
		return clampIndex(0, len(next))
	}

	if prevIndex >= 0 && prevIndex < len(prev) {
		id := prev[prevIndex].ID
		for i, t := range next {
			if t.ID == id {
				return i
			}
		}
	}

	if len(next) > len(prev) {
		seen := make(map[string]struct{}, len(prev))
		for _, t := range prev {
			seen[t.ID] = struct{}{}
		}
		for i, t := range next {
			if _, ok := seen[t.ID]; !ok {
				return i
			}
		}
	}

	return clampIndex(prevIndex, len(next))
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// Tracker applies Next to a stream of snapshots. The zero value is ready
// to use. A Tracker is not safe for concurrent use.
type Tracker struct {
	items []service.Task
	index int
}

// Update feeds a new snapshot and returns the recomputed index.
func (t *Tracker) Update(snap service.Snapshot) int {
	t.index = Next(t.items, t.index, snap.Items)
	t.items = service.CloneTasks(snap.Items)
	return t.index
}

// Index returns the current cursor index.
func (t *Tracker) Index() int { return t.index }

// Current returns the task under the cursor.
func (t *Tracker) Current() (service.Task, bool) {
	if t.index < 0 || t.index >= len(t.items) {
		return service.Task{}, false
	}
	return t.items[t.index], true
}

// Move shifts the cursor by delta, clamped into the list.
func (t *Tracker) Move(delta int) int {
	t.index = clampIndex(t.index+delta, len(t.items))
	return t.index
}

// SelectID points the cursor at the task with the given id, if present.
func (t *Tracker) SelectID(id string) bool {
	for i, task := range t.items {
		if task.ID == id {
			t.index = i
			return true
		}
	}
	return false
}
