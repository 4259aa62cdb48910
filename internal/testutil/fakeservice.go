// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tasksync/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu       sync.RWMutex
	tasks    []service.Task
	selected string
	ts       int64
	nextID   int

	// Calls records mutating calls as "op:arg" for assertions.
	Calls []string

	// Error injection for testing
	ListErr       error
	SnapshotErr   error
	ToggleErr     error
	ToggleNextErr error
	AddErr        error
	DeleteErr     error
	EditErr       error
	ResetErr      error
	SelectErr     error
	MoveErr       error
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{ts: 1700000000}
}

// AddTask appends a task with a fixed id.
func (f *FakeService) AddTask(id, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, service.Task{ID: id, Text: text, Order: len(f.tasks)})
}

// Tasks returns a copy of the current tasks.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return service.CloneTasks(f.tasks)
}

// SelectedID returns the current selection.
func (f *FakeService) SelectedID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.selected
}

func (f *FakeService) record(op, arg string) {
	f.Calls = append(f.Calls, op+":"+arg)
	f.ts++
}

func (f *FakeService) index(id string) (int, error) {
	for i, t := range f.tasks {
		if t.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: task %s", service.ErrNotFound, id)
}

func (f *FakeService) renumber() {
	for i := range f.tasks {
		f.tasks[i].Order = i
	}
}

// List implements service.Service.
func (f *FakeService) List(ctx context.Context) ([]service.Task, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.tasks) == 0 {
		return nil, service.ErrNoData
	}
	return service.CloneTasks(f.tasks), nil
}

// Snapshot implements service.Service.
func (f *FakeService) Snapshot(ctx context.Context) (service.Snapshot, error) {
	if f.SnapshotErr != nil {
		return service.Snapshot{}, f.SnapshotErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return service.Snapshot{
		Items:          service.CloneTasks(f.tasks),
		TS:             f.ts,
		SelectedTaskID: service.StringPtr(f.selected),
	}, nil
}

// Toggle implements service.Service.
func (f *FakeService) Toggle(ctx context.Context, id string) error {
	if f.ToggleErr != nil {
		return f.ToggleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.index(id)
	if err != nil {
		return err
	}
	f.tasks[i].Done = !f.tasks[i].Done
	f.record("toggle", id)
	return nil
}

// ToggleNext implements service.Service.
func (f *FakeService) ToggleNext(ctx context.Context) (string, error) {
	if f.ToggleNextErr != nil {
		return "", f.ToggleNextErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if !t.Done {
			f.tasks[i].Done = true
			f.record("toggle", t.ID)
			return t.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no incomplete task", service.ErrNotFound)
}

// Add implements service.Service.
func (f *FakeService) Add(ctx context.Context, text, group string) error {
	if f.AddErr != nil {
		return f.AddErr
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: text required", service.ErrInvalidArgument)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.tasks = append(f.tasks, service.Task{ID: id, Text: text, Group: service.StringPtr(group), Order: len(f.tasks)})
	f.record("add", text)
	return nil
}

// Delete implements service.Service.
func (f *FakeService) Delete(ctx context.Context, id string) (string, error) {
	if f.DeleteErr != nil {
		return "", f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.index(id)
	if err != nil {
		return "", err
	}
	text := f.tasks[i].Text
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	f.renumber()
	if f.selected == id {
		f.selected = ""
	}
	f.record("delete", id)
	return text, nil
}

// Edit implements service.Service.
func (f *FakeService) Edit(ctx context.Context, id, text string) (string, string, error) {
	if f.EditErr != nil {
		return "", "", f.EditErr
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", fmt.Errorf("%w: text required", service.ErrInvalidArgument)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.index(id)
	if err != nil {
		return "", "", err
	}
	old := f.tasks[i].Text
	f.tasks[i].Text = text
	f.record("edit", id)
	return old, text, nil
}

// Reset implements service.Service.
func (f *FakeService) Reset(ctx context.Context, confirm bool) error {
	if f.ResetErr != nil {
		return f.ResetErr
	}
	if !confirm {
		return fmt.Errorf("%w: confirm required", service.ErrInvalidArgument)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		f.tasks[i].Done = false
	}
	f.record("reset", "")
	return nil
}

// Select implements service.Service.
func (f *FakeService) Select(ctx context.Context, id string) error {
	if f.SelectErr != nil {
		return f.SelectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != "" {
		if _, err := f.index(id); err != nil {
			return err
		}
	}
	f.selected = id
	f.record("select", id)
	return nil
}

// MoveUp implements service.Service.
func (f *FakeService) MoveUp(ctx context.Context, id string) error {
	return f.move(id, -1)
}

// MoveDown implements service.Service.
func (f *FakeService) MoveDown(ctx context.Context, id string) error {
	return f.move(id, 1)
}

func (f *FakeService) move(id string, delta int) error {
	if f.MoveErr != nil {
		return f.MoveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.index(id)
	if err != nil {
		return err
	}
	target := i + delta
	switch {
	case target < 0:
		target = len(f.tasks) - 1
	case target >= len(f.tasks):
		target = 0
	}
	f.place(i, target)
	f.record("move", id)
	return nil
}

// place removes the task at from and reinserts it at to.
func (f *FakeService) place(from, to int) {
	t := f.tasks[from]
	f.tasks = append(f.tasks[:from], f.tasks[from+1:]...)
	f.tasks = append(f.tasks[:to], append([]service.Task{t}, f.tasks[to:]...)...)
	f.renumber()
}

// MoveTo implements service.Service.
func (f *FakeService) MoveTo(ctx context.Context, id string, target int) error {
	if f.MoveErr != nil {
		return f.MoveErr
	}
	if target < 0 {
		return fmt.Errorf("%w: target must be >= 0", service.ErrInvalidArgument)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.index(id)
	if err != nil {
		return err
	}
	if target > len(f.tasks)-1 {
		target = len(f.tasks) - 1
	}
	f.place(i, target)
	f.record("move", id)
	return nil
}
