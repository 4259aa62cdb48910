// Package journal keeps an append-only SQLite history of store changes.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"tasksync/internal/logging"
	"tasksync/internal/store"
)

const queueSize = 256

// Entry is one recorded change.
type Entry struct {
	ID     int64
	Op     string
	TaskID string
	Text   string
	Done   bool
	Items  int
	TS     int64
	At     time.Time
}

// Journal is the history database.
type Journal struct {
	database *sql.DB
	dbPath   string
	logger   *slog.Logger

	queue     chan Entry
	wg        sync.WaitGroup
	closeOnce sync.Once
	startOnce sync.Once
}

// Open opens or creates the journal at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	database.SetMaxOpenConns(1)

	j := &Journal{
		database: database,
		dbPath:   dbPath,
		logger:   logging.OrDiscard(logger),
		queue:    make(chan Entry, queueSize),
	}
	if err := j.migrate(context.Background()); err != nil {
		_ = database.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.dbPath }

func (j *Journal) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			op TEXT NOT NULL,
			task_id TEXT NULL,
			text TEXT NULL,
			done INTEGER NOT NULL DEFAULT 0,
			items INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_changes_task ON changes(task_id, id DESC);`,
	}
	for _, stmt := range statements {
		if _, err := j.database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

// Append writes one entry synchronously.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	result, err := j.database.ExecContext(ctx,
		`INSERT INTO changes(op, task_id, text, done, items, ts, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.Op, nullable(e.TaskID), nullable(e.Text), e.Done, e.Items, e.TS, e.At.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append journal entry: %w", err)
	}
	e.ID, err = result.LastInsertId()
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.database.QueryContext(ctx,
		`SELECT id, op, task_id, text, done, items, ts, created_at
		   FROM changes
		  ORDER BY id DESC
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			taskID    sql.NullString
			text      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Op, &taskID, &text, &e.Done, &e.Items, &e.TS, &createdAt); err != nil {
			return nil, err
		}
		e.TaskID = taskID.String
		e.Text = text.String
		e.At, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Observe queues a store change for recording. It never blocks: when the
// queue is full the change is dropped and logged. Use it as a store
// subscriber.
func (j *Journal) Observe(ch store.Change) {
	j.startOnce.Do(j.start)
	e := Entry{
		Op:    string(ch.Op),
		Items: len(ch.Snapshot.Items),
		TS:    ch.Snapshot.TS,
		At:    time.Now().UTC(),
	}
	if ch.Task != nil {
		e.TaskID = ch.Task.ID
		e.Text = ch.Task.Text
		e.Done = ch.Task.Done
	}
	select {
	case j.queue <- e:
	default:
		j.logger.Warn("journal queue full, dropping entry", "op", e.Op)
	}
}

func (j *Journal) start() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for e := range j.queue {
			if _, err := j.Append(context.Background(), e); err != nil {
				j.logger.Error("journal write failed", "op", e.Op, "error", err)
			}
		}
	}()
}

// Close drains queued entries and closes the database. Observe must not be
// called after Close.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.queue)
		j.wg.Wait()
		err = j.database.Close()
	})
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
