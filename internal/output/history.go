package output

import (
	"fmt"
	"time"

	"tasksync/internal/journal"
	"tasksync/internal/store"
)

const historyTimeLayout = "2006-01-02 15:04:05"

type entryView struct {
	ID     int64  `json:"id" yaml:"id"`
	Op     string `json:"op" yaml:"op"`
	TaskID string `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Text   string `json:"text,omitempty" yaml:"text,omitempty"`
	Done   bool   `json:"done" yaml:"done"`
	Items  int    `json:"items" yaml:"items"`
	TS     int64  `json:"ts" yaml:"ts"`
	At     string `json:"at" yaml:"at"`
}

// History renders journal entries, newest first.
// Text format: "{AT}  {OP:<7} {ID8}  {TEXT}"
func (p *Printer) History(entries []journal.Entry) error {
	if p.format != FormatText {
		views := make([]entryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, entryView{
				ID: e.ID, Op: e.Op, TaskID: e.TaskID, Text: e.Text,
				Done: e.Done, Items: e.Items, TS: e.TS,
				At: e.At.UTC().Format(time.RFC3339),
			})
		}
		return p.Value(views, "")
	}
	for _, e := range entries {
		id := e.TaskID
		if len(id) > 8 {
			id = id[:8]
		}
		text := e.Text
		if e.Op == string(store.OpToggle) {
			text = p.doneMark(e.Done) + " " + text
		}
		fmt.Fprintf(p.w, "%s  %-7s %-8s  %s\n", e.At.Local().Format(historyTimeLayout), e.Op, id, text)
	}
	return nil
}

func (p *Printer) doneMark(done bool) string {
	if done {
		return p.done.Sprint("[x]")
	}
	return p.pending.Sprint("[ ]")
}
