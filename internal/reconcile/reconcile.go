// Package reconcile reloads the store when the mirror file is edited by
// something other than the store itself.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tasksync/internal/clock"
	"tasksync/internal/logging"
	"tasksync/internal/service"
	"tasksync/internal/store"
)

// DefaultSettle is how long a burst of file events is coalesced before the
// mirror is read.
const DefaultSettle = 50 * time.Millisecond

// Target is the store being kept in step with the file.
type Target interface {
	LastWriteDigest() ([32]byte, bool)
	Replace(service.Snapshot)
}

// Options configures a Reconciler.
type Options struct {
	Path   string
	Target Target
	Settle time.Duration
	Clock  clock.Clock
	Logger *slog.Logger
}

// Reconciler watches the mirror's directory and feeds external edits into
// the store.
type Reconciler struct {
	path   string
	target Target
	settle time.Duration
	clock  clock.Clock
	logger *slog.Logger

	fire  chan struct{}
	ready chan struct{}
}

// New creates a Reconciler. Call Run to start watching.
func New(opts Options) *Reconciler {
	r := &Reconciler{
		path:   filepath.Clean(opts.Path),
		target: opts.Target,
		settle: opts.Settle,
		clock:  opts.Clock,
		logger: logging.OrDiscard(opts.Logger),
		fire:   make(chan struct{}, 1),
		ready:  make(chan struct{}),
	}
	if r.settle <= 0 {
		r.settle = DefaultSettle
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	return r
}

// Ready is closed once the directory watch is installed.
func (r *Reconciler) Ready() <-chan struct{} { return r.ready }

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file so atomic rename-into-place writes are seen.
func (r *Reconciler) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mirror directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.logger.Debug("watching mirror", "path", r.path)
	close(r.ready)

	var pending *clock.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !r.relevant(event) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = r.clock.AfterFunc(r.settle, r.signal)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("file watcher error", "error", err)
		case <-r.fire:
			pending = nil
			if _, err := r.Reconcile(); err != nil {
				r.logger.Warn("ignoring unreadable mirror", "path", r.path, "error", err)
			}
		}
	}
}

func (r *Reconciler) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != r.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (r *Reconciler) signal() {
	select {
	case r.fire <- struct{}{}:
	default:
	}
}

// Reconcile reads the mirror once and replaces the store contents if the
// file holds something the store did not write itself. It reports whether
// the store was updated. A parse failure leaves the store untouched.
func (r *Reconciler) Reconcile() (bool, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", service.ErrIO, r.path, err)
	}

	digest := store.Digest(data)
	if own, ok := r.target.LastWriteDigest(); ok && own == digest {
		r.logger.Debug("skipping own write", "path", r.path)
		return false, nil
	}

	snap, err := store.DecodeMirror(data, r.clock.Now())
	if err != nil {
		return false, err
	}
	r.target.Replace(snap)
	r.logger.Info("reloaded mirror after external edit", "path", r.path, "items", len(snap.Items))
	return true, nil
}
