// Package output provides formatters for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"

	"tasksync/internal/service"
)

// Format is an output format selected with --format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (want text, json or yaml)", s)
	}
}

// Printer renders values in one format. Colour is only used for text output
// to a terminal.
type Printer struct {
	w      io.Writer
	format Format

	done    *color.Color
	pending *color.Color
	cursor  *color.Color
	group   *color.Color
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer, format Format) *Printer {
	if format == "" {
		format = FormatText
	}
	p := &Printer{
		w:       w,
		format:  format,
		done:    color.New(color.FgGreen),
		pending: color.New(color.FgYellow),
		cursor:  color.New(color.FgCyan, color.Bold),
		group:   color.New(color.Faint),
	}
	p.SetColor(!color.NoColor && isTerminal(w))
	return p
}

// SetColor forces colour on or off.
func (p *Printer) SetColor(on bool) {
	for _, c := range []*color.Color{p.done, p.pending, p.cursor, p.group} {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// Format returns the printer's format.
func (p *Printer) Format() Format { return p.format }

// Tasks renders a task list. cursor is the index to mark, or -1.
// Structured formats render the whole snapshot.
func (p *Printer) Tasks(snap service.Snapshot, cursor int) error {
	switch p.format {
	case FormatJSON:
		return p.json(snap)
	case FormatYAML:
		return p.yaml(snapshotView(snap))
	}
	for i, t := range snap.Items {
		p.task(i+1, t, i == cursor)
	}
	return nil
}

// task writes one text line.
// Format: "{CURSOR}{N:>4}  {MARK} {TEXT}[  #{GROUP}]"
func (p *Printer) task(num int, t service.Task, current bool) {
	prefix := " "
	if current {
		prefix = p.cursor.Sprint(">")
	}
	mark := p.pending.Sprint("[ ]")
	if t.Done {
		mark = p.done.Sprint("[x]")
	}
	line := fmt.Sprintf("%s%4d  %s %s", prefix, num, mark, normalizeText(t.Text))
	if g := t.GroupName(); g != "" {
		line += "  " + p.group.Sprint("#"+g)
	}
	fmt.Fprintln(p.w, line)
}

// Value renders an arbitrary command result in a structured format. Text
// output uses the fallback string.
func (p *Printer) Value(v any, text string) error {
	switch p.format {
	case FormatJSON:
		return p.json(v)
	case FormatYAML:
		return p.yaml(v)
	}
	if text != "" {
		fmt.Fprintln(p.w, text)
	}
	return nil
}

func (p *Printer) json(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.w, "%s\n", data)
	return err
}

func (p *Printer) yaml(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.w.Write(data)
	return err
}

type taskView struct {
	ID    string  `json:"id" yaml:"id"`
	Text  string  `json:"text" yaml:"text"`
	Done  bool    `json:"done" yaml:"done"`
	Group *string `json:"group" yaml:"group"`
	Order int     `json:"order" yaml:"order"`
}

type snapshotViewT struct {
	Items          []taskView `json:"items" yaml:"items"`
	TS             int64      `json:"ts" yaml:"ts"`
	SelectedTaskID *string    `json:"selectedTaskId" yaml:"selectedTaskId"`
}

func snapshotView(snap service.Snapshot) snapshotViewT {
	v := snapshotViewT{Items: make([]taskView, 0, len(snap.Items)), TS: snap.TS, SelectedTaskID: snap.SelectedTaskID}
	for _, t := range snap.Items {
		v.Items = append(v.Items, taskView(t))
	}
	return v
}

// normalizeText normalizes task text for display.
// - Empty or whitespace-only text becomes "(untitled)"
// - Newlines are replaced with spaces
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	if strings.TrimSpace(text) == "" {
		return "(untitled)"
	}
	return text
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
