package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

func init() {
	Register(SectionTasks, &ListCmd{})
}

// ListCmd implements the list command.
// Handles both `tasksync` (no args) and `tasksync list`.
type ListCmd struct {
	pending bool
}

// SetPending limits output to tasks not yet done (for testing).
func (c *ListCmd) SetPending(pending bool) {
	c.pending = pending
}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List tasks" }
func (c *ListCmd) Usage() string      { return "tasksync list [--pending]" }
func (c *ListCmd) NeedsService() bool { return true }

func (c *ListCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.pending, "pending", "p", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		return fail(errOut, err)
	}

	cursor := -1
	if id := snap.Selected(); id != "" {
		for i, t := range snap.Items {
			if t.ID == id {
				cursor = i
				break
			}
		}
	}

	if c.pending {
		snap, cursor = pendingOnly(snap, cursor)
	}

	p := newPrinter(cfg, out)
	if len(snap.Items) == 0 && p.Format() == output.FormatText {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}
	if err := p.Tasks(snap, cursor); err != nil {
		return fail(errOut, err)
	}
	return exitcode.Success
}

// pendingOnly drops done tasks and shifts the cursor to match.
func pendingOnly(snap service.Snapshot, cursor int) (service.Snapshot, int) {
	items := make([]service.Task, 0, len(snap.Items))
	newCursor := -1
	for i, t := range snap.Items {
		if t.Done {
			continue
		}
		if i == cursor {
			newCursor = len(items)
		}
		items = append(items, t)
	}
	snap.Items = items
	return snap, newCursor
}
