// Package service defines the task model and the control interface shared by
// the sync server, its backends and the CLI.
package service

// Task represents a single task item.
// Order is the dense zero-based rank and the only source of display order.
type Task struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Done  bool    `json:"done"`
	Group *string `json:"group"`
	Order int     `json:"order"`
}

// Snapshot is an immutable view of the whole list plus the current selection.
// Rev is a process-local generation used to order snapshots that share a TS.
type Snapshot struct {
	Items          []Task  `json:"items"`
	TS             int64   `json:"ts"`
	SelectedTaskID *string `json:"selectedTaskId"`
	Rev            uint64  `json:"rev,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Items = CloneTasks(s.Items)
	if s.SelectedTaskID != nil {
		id := *s.SelectedTaskID
		out.SelectedTaskID = &id
	}
	return out
}

// Selected returns the selected task id, or "" when nothing is selected.
func (s Snapshot) Selected() string {
	if s.SelectedTaskID == nil {
		return ""
	}
	return *s.SelectedTaskID
}

// Find returns the task with the given id.
func (s Snapshot) Find(id string) (Task, bool) {
	for _, t := range s.Items {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// OlderThan reports whether s was produced before prev. Consumers drop
// snapshots that are older than the last one they applied.
func (s Snapshot) OlderThan(prev Snapshot) bool {
	if s.TS != prev.TS {
		return s.TS < prev.TS
	}
	return s.Rev < prev.Rev
}

// CloneTasks copies a task slice including group pointers.
func CloneTasks(items []Task) []Task {
	if items == nil {
		return nil
	}
	out := make([]Task, len(items))
	for i, t := range items {
		if t.Group != nil {
			g := *t.Group
			t.Group = &g
		}
		out[i] = t
	}
	return out
}

// GroupName returns the task group, or "" when unset.
func (t Task) GroupName() string {
	if t.Group == nil {
		return ""
	}
	return *t.Group
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
