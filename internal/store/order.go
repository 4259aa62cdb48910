package store

import (
	"sort"

	"tasksync/internal/service"
)

// renumber rewrites Order so it matches slice position.
func renumber(items []service.Task) {
	for i := range items {
		items[i].Order = i
	}
}

// moveItem removes the item at from and reinserts it at to.
func moveItem(items []service.Task, from, to int) []service.Task {
	if from == to {
		return items
	}
	t := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items, service.Task{})
	copy(items[to+1:], items[to:])
	items[to] = t
	return items
}

// clamp limits v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalize sorts items by rank (file position breaks ties), assigns ids to
// items missing one or carrying a duplicate, renumbers densely and clears a
// selection that does not reference a surviving task.
func normalize(items []service.Task, selected *string, newID func() string) ([]service.Task, string) {
	items = service.CloneTasks(items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})

	seen := make(map[string]bool, len(items))
	for i := range items {
		if items[i].ID == "" || seen[items[i].ID] {
			items[i].ID = newID()
		}
		seen[items[i].ID] = true
	}
	renumber(items)

	sel := ""
	if selected != nil && seen[*selected] {
		sel = *selected
	}
	return items, sel
}
