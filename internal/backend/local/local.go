// Package local implements the service.Service interface directly on a
// mirror file, for use when no server is running.
package local

import (
	"context"
	"fmt"
	"log/slog"

	"tasksync/internal/service"
	"tasksync/internal/store"
)

// Backend is a service.Service over a store it owns.
type Backend struct {
	store *store.Store
}

// Open loads the mirror at path. Every change is written before the call
// returns, since the process usually exits right after.
func Open(path string, logger *slog.Logger) (*Backend, error) {
	s := store.New(store.Options{Path: path, Debounce: -1, Logger: logger})
	if err := s.Load(); err != nil {
		return nil, err
	}
	return &Backend{store: s}, nil
}

// Close flushes the store.
func (b *Backend) Close() error {
	return b.store.Close()
}

func (b *Backend) List(context.Context) ([]service.Task, error) {
	return b.store.List()
}

func (b *Backend) Snapshot(context.Context) (service.Snapshot, error) {
	return b.store.Snapshot(), nil
}

func (b *Backend) Toggle(_ context.Context, id string) error {
	_, err := b.store.Toggle(id)
	return err
}

func (b *Backend) ToggleNext(context.Context) (string, error) {
	t, err := b.store.ToggleNext()
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func (b *Backend) Add(_ context.Context, text, group string) error {
	_, err := b.store.Add(text, group)
	return err
}

func (b *Backend) Delete(_ context.Context, id string) (string, error) {
	t, err := b.store.Delete(id)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

func (b *Backend) Edit(_ context.Context, id, text string) (string, string, error) {
	old, updated, err := b.store.Edit(id, text)
	if err != nil {
		return "", "", err
	}
	return old.Text, updated.Text, nil
}

func (b *Backend) Reset(_ context.Context, confirm bool) error {
	if !confirm {
		return fmt.Errorf("%w: reset requires confirm", service.ErrInvalidArgument)
	}
	b.store.Reset()
	return nil
}

func (b *Backend) Select(_ context.Context, id string) error {
	return b.store.Select(id)
}

func (b *Backend) MoveUp(_ context.Context, id string) error {
	return b.store.MoveUp(id)
}

func (b *Backend) MoveDown(_ context.Context, id string) error {
	return b.store.MoveDown(id)
}

func (b *Backend) MoveTo(_ context.Context, id string, target int) error {
	if target < 0 {
		return fmt.Errorf("%w: target must be a non-negative integer", service.ErrInvalidArgument)
	}
	return b.store.MoveTo(id, target)
}

var _ service.Service = (*Backend)(nil)
