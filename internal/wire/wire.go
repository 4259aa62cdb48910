// Package wire defines the JSON envelope carried by the push channel and the
// pull endpoint.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tasksync/internal/service"
)

// TypeTasksUpdated is the only frame type the server sends.
const TypeTasksUpdated = "tasks_updated"

// Sources recorded in an envelope.
const (
	SourceWS   = "ws"
	SourcePull = "pull"
)

// ErrIgnored is returned by Decode for well-formed frames of a type this
// client does not handle. Callers drop such frames silently.
var ErrIgnored = errors.New("frame ignored")

// Envelope is the canonical frame:
//
//	{"type":"tasks_updated","items":[...],"ts":1700000000,"selectedTaskId":null,"rev":3,"source":"ws"}
type Envelope struct {
	Type           string         `json:"type"`
	Items          []service.Task `json:"items"`
	TS             int64          `json:"ts"`
	SelectedTaskID *string        `json:"selectedTaskId"`
	Rev            uint64         `json:"rev,omitempty"`
	Source         string         `json:"source,omitempty"`
}

// FromSnapshot wraps snap in an envelope tagged with source.
func FromSnapshot(snap service.Snapshot, source string) Envelope {
	items := snap.Items
	if items == nil {
		items = []service.Task{}
	}
	return Envelope{
		Type:           TypeTasksUpdated,
		Items:          items,
		TS:             snap.TS,
		SelectedTaskID: snap.SelectedTaskID,
		Rev:            snap.Rev,
		Source:         source,
	}
}

// Snapshot returns the snapshot carried by the envelope.
func (e Envelope) Snapshot() service.Snapshot {
	return service.Snapshot{
		Items:          e.Items,
		TS:             e.TS,
		SelectedTaskID: e.SelectedTaskID,
		Rev:            e.Rev,
	}
}

// Encode renders snap as a canonical frame.
func Encode(snap service.Snapshot, source string) ([]byte, error) {
	return json.Marshal(FromSnapshot(snap, source))
}

type frame struct {
	Type           string          `json:"type"`
	Items          json.RawMessage `json:"items"`
	Tasks          json.RawMessage `json:"tasks"`
	TS             *int64          `json:"ts"`
	SelectedTaskID *string         `json:"selectedTaskId"`
	Rev            uint64          `json:"rev"`
	Source         string          `json:"source"`
}

// Decode parses a frame using the current time for a missing ts.
func Decode(data []byte) (Envelope, error) {
	return DecodeAt(data, time.Now())
}

// DecodeAt parses a frame. Frames without a type are treated as raw
// snapshots. The legacy "tasks" key is used only when "items" is absent.
// A frame carrying neither key is rejected. A missing ts is synthesized
// from now, as legacy frames carry none.
func DecodeAt(data []byte, now time.Time) (Envelope, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode frame: %v", service.ErrChannel, err)
	}
	if f.Type != "" && f.Type != TypeTasksUpdated {
		return Envelope{}, fmt.Errorf("%w: type %q", ErrIgnored, f.Type)
	}

	raw := f.Items
	if isAbsent(raw) {
		raw = f.Tasks
	}
	if isAbsent(raw) {
		return Envelope{}, fmt.Errorf("%w: frame has no items", service.ErrChannel)
	}

	var items []service.Task
	if err := json.Unmarshal(raw, &items); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode items: %v", service.ErrChannel, err)
	}
	if items == nil {
		items = []service.Task{}
	}

	ts := now.Unix()
	if f.TS != nil {
		ts = *f.TS
	}

	return Envelope{
		Type:           TypeTasksUpdated,
		Items:          items,
		TS:             ts,
		SelectedTaskID: f.SelectedTaskID,
		Rev:            f.Rev,
		Source:         f.Source,
	}, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
