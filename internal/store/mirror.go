package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"tasksync/internal/service"
)

// mirrorFile is the on-disk shape of the durable mirror.
type mirrorFile struct {
	Items          json.RawMessage `json:"items"`
	TS             *int64          `json:"ts"`
	SelectedTaskID *string         `json:"selectedTaskId"`
}

type mirrorOut struct {
	Items          []service.Task `json:"items"`
	TS             int64          `json:"ts"`
	SelectedTaskID *string        `json:"selectedTaskId"`
}

// DecodeMirror parses mirror file contents. A missing ts is synthesized from
// now. Items are returned as found; callers normalise them.
// Errors wrap service.ErrIO.
func DecodeMirror(data []byte, now time.Time) (service.Snapshot, error) {
	var f mirrorFile
	if err := json.Unmarshal(data, &f); err != nil {
		return service.Snapshot{}, fmt.Errorf("%w: parse mirror: %v", service.ErrIO, err)
	}

	raw := bytes.TrimSpace(f.Items)
	if len(raw) == 0 || raw[0] != '[' {
		return service.Snapshot{}, fmt.Errorf("%w: mirror has no items array", service.ErrIO)
	}

	var items []service.Task
	if err := json.Unmarshal(raw, &items); err != nil {
		return service.Snapshot{}, fmt.Errorf("%w: parse mirror items: %v", service.ErrIO, err)
	}

	snap := service.Snapshot{
		Items:          items,
		TS:             now.Unix(),
		SelectedTaskID: f.SelectedTaskID,
	}
	if f.TS != nil {
		snap.TS = *f.TS
	}
	return snap, nil
}

// EncodeMirror renders a snapshot in the mirror file format.
func EncodeMirror(snap service.Snapshot) ([]byte, error) {
	items := snap.Items
	if items == nil {
		items = []service.Task{}
	}
	data, err := json.MarshalIndent(mirrorOut{
		Items:          items,
		TS:             snap.TS,
		SelectedTaskID: snap.SelectedTaskID,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Digest returns the BLAKE3 digest used to recognise mirror contents this
// process wrote itself.
func Digest(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// writeAtomic writes data to a temp file next to path and renames it into
// place, so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mirror directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
