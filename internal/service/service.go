package service

import "context"

// Service is the control-call interface to the task list.
// The CLI only talks to this interface; the HTTP client and the local
// file backend both implement it.
type Service interface {
	// List returns the tasks in rank order.
	// Returns ErrNoData if the list is empty.
	List(ctx context.Context) ([]Task, error)

	// Snapshot returns the full current snapshot, including an empty list.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Toggle flips the done flag of a task.
	Toggle(ctx context.Context, id string) error

	// ToggleNext toggles the first incomplete task and returns its id.
	// Returns ErrNotFound if every task is done.
	ToggleNext(ctx context.Context) (string, error)

	// Add appends a task. group may be empty.
	Add(ctx context.Context, text, group string) error

	// Delete removes a task and returns its text.
	Delete(ctx context.Context, id string) (string, error)

	// Edit replaces the text of a task and returns the old and new text.
	Edit(ctx context.Context, id, text string) (oldText, newText string, err error)

	// Reset marks every task as not done. confirm must be true.
	Reset(ctx context.Context, confirm bool) error

	// Select sets the authoritative selection; "" clears it.
	Select(ctx context.Context, id string) error

	// MoveUp and MoveDown swap a task with its neighbour, wrapping at the ends.
	MoveUp(ctx context.Context, id string) error
	MoveDown(ctx context.Context, id string) error

	// MoveTo moves a task to target, clamped into the list bounds.
	MoveTo(ctx context.Context, id string, target int) error
}
