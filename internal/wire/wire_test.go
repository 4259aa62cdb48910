package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tasksync/internal/service"
)

func TestEncodeCanonicalShape(t *testing.T) {
	sel := "b"
	data, err := Encode(service.Snapshot{
		Items:          []service.Task{{ID: "a", Text: "A"}, {ID: "b", Text: "B", Order: 1}},
		TS:             1700000000,
		SelectedTaskID: &sel,
		Rev:            4,
	}, SourceWS)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "tasks_updated", m["type"])
	require.Equal(t, "ws", m["source"])
	require.Equal(t, "b", m["selectedTaskId"])
	require.Len(t, m["items"], 2)
	require.NotContains(t, m, "tasks")
}

func TestEncodeEmptyListAsArray(t *testing.T) {
	data, err := Encode(service.Snapshot{TS: 1}, SourcePull)
	require.NoError(t, err)
	require.Contains(t, string(data), `"items":[]`)
	require.Contains(t, string(data), `"selectedTaskId":null`)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		ids     []string
		ts      int64
		wantErr error
	}{
		{
			name:  "canonical",
			input: `{"type":"tasks_updated","items":[{"id":"1","text":"A","done":false,"group":null,"order":0}],"ts":9,"selectedTaskId":"1","source":"ws"}`,
			ids:   []string{"1"},
			ts:    9,
		},
		{
			name:  "legacy tasks key",
			input: `{"type":"tasks_updated","tasks":[{"id":"x","text":"X","done":true,"group":"g","order":0}],"selectedTaskId":null}`,
			ids:   []string{"x"},
			ts:    1000,
		},
		{
			name:  "raw snapshot without type",
			input: `{"items":[{"id":"1","text":"A","order":0},{"id":"2","text":"B","order":1}],"ts":5,"source":"ws"}`,
			ids:   []string{"1", "2"},
			ts:    5,
		},
		{
			name:  "items wins over tasks",
			input: `{"items":[{"id":"i","text":"I","order":0}],"tasks":[{"id":"t","text":"T","order":0}]}`,
			ids:   []string{"i"},
			ts:    1000,
		},
		{
			name:  "zero ts kept",
			input: `{"items":[],"ts":0}`,
			ids:   []string{},
			ts:    0,
		},
		{
			name:  "empty items",
			input: `{"type":"tasks_updated","items":[],"ts":3}`,
			ids:   []string{},
			ts:    3,
		},
		{name: "neither key", input: `{"type":"tasks_updated","ts":1}`, wantErr: service.ErrChannel},
		{name: "null items", input: `{"items":null}`, wantErr: service.ErrChannel},
		{name: "not json", input: `pong`, wantErr: service.ErrChannel},
		{name: "items not array", input: `{"items":{"id":"1"}}`, wantErr: service.ErrChannel},
		{name: "unknown type", input: `{"type":"presence","items":[]}`, wantErr: ErrIgnored},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := DecodeAt([]byte(tc.input), time.Unix(1000, 0))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, TypeTasksUpdated, env.Type)
			require.Equal(t, tc.ts, env.TS)
			got := make([]string, len(env.Items))
			for i, item := range env.Items {
				got[i] = item.ID
			}
			require.Equal(t, tc.ids, got)
		})
	}
}

func TestDecodeRoundTripsSnapshot(t *testing.T) {
	group := "home"
	in := service.Snapshot{
		Items: []service.Task{{ID: "a", Text: "A", Done: true, Group: &group}},
		TS:    77,
		Rev:   12,
	}
	data, err := Encode(in, SourcePull)
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, SourcePull, env.Source)
	require.Equal(t, in, env.Snapshot())
}
