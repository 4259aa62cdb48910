// Package store holds the authoritative task list and its durable JSON mirror.
//
// Every mutation runs under a single mutex, produces a fresh Snapshot and
// notifies subscribers in mutation order. Toggle, add, delete, edit and reset
// are written to disk before the call returns; reorders and selection changes
// are coalesced by a debounce timer because they arrive in key-repeat bursts.
// A failed write is logged and never rolls the in-memory change back.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tasksync/internal/clock"
	"tasksync/internal/logging"
	"tasksync/internal/service"
)

// DefaultDebounce is the coalescing window for reorder writes.
const DefaultDebounce = 100 * time.Millisecond

// Op names the kind of change carried by a Change.
type Op string

const (
	OpLoad   Op = "load"
	OpReload Op = "reload"
	OpAdd    Op = "add"
	OpToggle Op = "toggle"
	OpDelete Op = "delete"
	OpEdit   Op = "edit"
	OpReset  Op = "reset"
	OpSelect Op = "select"
	OpMove   Op = "move"
)

// Change is delivered to subscribers after every store change.
// Task is the affected task for single-task operations, nil otherwise.
type Change struct {
	Op       Op
	Task     *service.Task
	Snapshot service.Snapshot
}

// Options configures a Store.
type Options struct {
	// Path is the mirror file. Empty keeps the store in memory only.
	Path string

	// Debounce is the reorder coalescing window. Zero uses DefaultDebounce;
	// a negative value writes every change immediately.
	Debounce time.Duration

	Clock  clock.Clock
	Logger *slog.Logger

	// NewID generates task ids. Defaults to random UUIDs.
	NewID func() string
}

type persistMode int

const (
	persistNone persistMode = iota
	persistNow
	persistDebounced
)

type subscriber struct {
	id int
	fn func(Change)
}

// Store is the task list authority.
type Store struct {
	path     string
	debounce time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	newID    func() string

	mu       sync.Mutex
	items    []service.Task
	selected string
	ts       int64
	rev      uint64
	subs     []subscriber
	nextSub  int
	pending  *clock.Timer
	dirty    bool
	digest   [32]byte
	hasWrite bool
	writes   int
}

// New creates an empty store. Call Load to read the mirror.
func New(opts Options) *Store {
	s := &Store{
		path:     opts.Path,
		debounce: opts.Debounce,
		clock:    opts.Clock,
		logger:   logging.OrDiscard(opts.Logger),
		newID:    opts.NewID,
	}
	if s.debounce == 0 {
		s.debounce = DefaultDebounce
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Path returns the mirror file path.
func (s *Store) Path() string { return s.path }

// Load reads the mirror file. A missing file leaves the store empty and is
// not an error. An unreadable or malformed file also leaves the store empty
// and returns an error wrapping service.ErrIO for the caller to log.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", service.ErrIO, s.path, err)
	}

	snap, err := DecodeMirror(data, s.clock.Now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest = Digest(data)
	s.hasWrite = true
	s.replaceLocked(snap)
	s.commitLocked(OpLoad, nil, persistNone)
	return nil
}

// Replace swaps in a snapshot wholesale, as read back from the mirror after
// an external edit. The snapshot is normalised and not written back.
func (s *Store) Replace(snap service.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPendingLocked()
	s.replaceLocked(snap)
	s.commitLocked(OpReload, nil, persistNone)
}

func (s *Store) replaceLocked(snap service.Snapshot) {
	s.items, s.selected = normalize(snap.Items, snap.SelectedTaskID, s.newID)
	s.ts = snap.TS
}

// LastWriteDigest returns the BLAKE3 digest of the bytes last written to or
// loaded from the mirror by this store.
func (s *Store) LastWriteDigest() ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digest, s.hasWrite
}

// Subscribe registers fn for every subsequent Change. fn runs under the
// store lock: it must not block or call back into the store.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() service.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// List returns the tasks in rank order, or ErrNoData if there are none.
func (s *Store) List() ([]service.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, service.ErrNoData
	}
	return service.CloneTasks(s.items), nil
}

// Toggle flips the done flag of a task.
func (s *Store) Toggle(id string) (service.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return service.Task{}, notFound(id)
	}
	s.items[i].Done = !s.items[i].Done
	t := s.items[i]
	s.commitLocked(OpToggle, &t, persistNow)
	return t, nil
}

// ToggleNext toggles the first incomplete task in rank order.
func (s *Store) ToggleNext() (service.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].Done {
			continue
		}
		s.items[i].Done = true
		t := s.items[i]
		s.commitLocked(OpToggle, &t, persistNow)
		return t, nil
	}
	return service.Task{}, fmt.Errorf("%w: no incomplete task", service.ErrNotFound)
}

// Add appends a new task. Text is trimmed and must not be empty.
func (s *Store) Add(text, group string) (service.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return service.Task{}, fmt.Errorf("%w: text required", service.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := service.Task{
		ID:    s.newID(),
		Text:  text,
		Group: service.StringPtr(strings.TrimSpace(group)),
		Order: len(s.items),
	}
	s.items = append(s.items, t)
	s.commitLocked(OpAdd, &t, persistNow)
	return t, nil
}

// Delete removes a task and renumbers the rest. A selection pointing at the
// deleted task is cleared.
func (s *Store) Delete(id string) (service.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return service.Task{}, notFound(id)
	}
	t := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	renumber(s.items)
	if s.selected == id {
		s.selected = ""
	}
	s.commitLocked(OpDelete, &t, persistNow)
	return t, nil
}

// Edit replaces the text of a task and returns the task before and after.
func (s *Store) Edit(id, text string) (service.Task, service.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return service.Task{}, service.Task{}, fmt.Errorf("%w: text required", service.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return service.Task{}, service.Task{}, notFound(id)
	}
	old := s.items[i]
	s.items[i].Text = text
	t := s.items[i]
	s.commitLocked(OpEdit, &t, persistNow)
	return old, t, nil
}

// Reset marks every task as not done.
func (s *Store) Reset() service.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].Done = false
	}
	s.commitLocked(OpReset, nil, persistNow)
	return s.snapshotLocked()
}

// Select sets the authoritative selection. An empty id clears it.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected *service.Task
	if id != "" {
		i := s.indexLocked(id)
		if i < 0 {
			return notFound(id)
		}
		t := s.items[i]
		affected = &t
	}
	s.selected = id
	s.commitLocked(OpSelect, affected, persistDebounced)
	return nil
}

// MoveUp swaps a task with the one above it. The first task wraps to the end.
func (s *Store) MoveUp(id string) error {
	return s.move(id, func(i, n int) int {
		if i == 0 {
			return n - 1
		}
		return i - 1
	})
}

// MoveDown swaps a task with the one below it. The last task wraps to the front.
func (s *Store) MoveDown(id string) error {
	return s.move(id, func(i, n int) int {
		if i == n-1 {
			return 0
		}
		return i + 1
	})
}

// MoveTo moves a task to target, clamped into [0, N-1]. Moving a task to
// its current position succeeds without changing the list.
func (s *Store) MoveTo(id string, target int) error {
	return s.move(id, func(_, n int) int {
		return clamp(target, 0, n-1)
	})
}

func (s *Store) move(id string, dest func(i, n int) int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return notFound(id)
	}
	n := len(s.items)
	to := dest(i, n)
	if to == i-1 || to == i+1 {
		s.items[i], s.items[to] = s.items[to], s.items[i]
		s.items[i].Order, s.items[to].Order = i, to
	} else {
		s.items = moveItem(s.items, i, to)
		renumber(s.items)
	}
	t := s.items[to]
	s.commitLocked(OpMove, &t, persistDebounced)
	return nil
}

// Save writes the current state to the mirror immediately, replacing any
// pending debounced write.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Flush writes a pending debounced change, if any.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked()
}

// Close flushes pending writes.
func (s *Store) Close() error {
	return s.Flush()
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() service.Snapshot {
	snap := service.Snapshot{
		Items: service.CloneTasks(s.items),
		TS:    s.ts,
		Rev:   s.rev,
	}
	if snap.Items == nil {
		snap.Items = []service.Task{}
	}
	if s.selected != "" {
		sel := s.selected
		snap.SelectedTaskID = &sel
	}
	return snap
}

// commitLocked stamps a new revision and timestamp, persists according to
// mode and notifies subscribers. The timestamp is when the snapshot was
// produced, so a reload of an older file still supersedes what consumers
// hold; a load keeps a file ts that is ahead of the local clock.
func (s *Store) commitLocked(op Op, task *service.Task, mode persistMode) {
	s.rev++
	now := s.clock.Now().Unix()
	if op != OpLoad || now > s.ts {
		s.ts = now
	}

	switch mode {
	case persistNow:
		_ = s.saveLocked()
	case persistDebounced:
		s.scheduleSaveLocked()
	}

	change := Change{Op: op, Task: task, Snapshot: s.snapshotLocked()}
	for _, sub := range s.subs {
		sub.fn(change)
	}
}

func (s *Store) scheduleSaveLocked() {
	if s.path == "" {
		return
	}
	if s.debounce < 0 {
		_ = s.saveLocked()
		return
	}
	s.dirty = true
	s.stopPendingLocked()
	s.pending = s.clock.AfterFunc(s.debounce, s.flushPending)
}

func (s *Store) flushPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return
	}
	s.pending = nil
	_ = s.saveLocked()
}

func (s *Store) stopPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.dirty = false
}

func (s *Store) saveLocked() error {
	s.stopPendingLocked()
	if s.path == "" {
		return nil
	}

	s.ts = s.clock.Now().Unix()
	data, err := EncodeMirror(s.snapshotLocked())
	if err != nil {
		s.logger.Error("encode mirror failed", "error", err)
		return fmt.Errorf("%w: encode mirror: %v", service.ErrIO, err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		s.logger.Error("save mirror failed", "path", s.path, "error", err)
		return fmt.Errorf("%w: %v", service.ErrIO, err)
	}
	s.digest = Digest(data)
	s.hasWrite = true
	s.writes++
	s.logger.Debug("mirror saved", "path", s.path, "items", len(s.items), "rev", s.rev)
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: task %s", service.ErrNotFound, id)
}
