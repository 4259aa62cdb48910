package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/journal"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

func init() {
	Register(SectionSync, &HistoryCmd{})
}

// HistoryCmd prints recent changes recorded by `tasksync serve`.
type HistoryCmd struct {
	limit int
}

// SetLimit sets the entry limit (for testing).
func (c *HistoryCmd) SetLimit(limit int) {
	c.limit = limit
}

func (c *HistoryCmd) Name() string       { return "history" }
func (c *HistoryCmd) Aliases() []string  { return []string{"log"} }
func (c *HistoryCmd) Synopsis() string   { return "Show recent changes" }
func (c *HistoryCmd) Usage() string      { return "tasksync history [--limit <n>]" }
func (c *HistoryCmd) NeedsService() bool { return false }

func (c *HistoryCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.limit, "limit", "n", 20, "")
}

func (c *HistoryCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	if c.limit < 0 {
		return usageError(errOut, "invalid limit: %d", c.limit)
	}

	if _, err := os.Stat(cfg.JournalFile); err != nil {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no history")
		}
		return exitcode.Success
	}

	j, err := journal.Open(cfg.JournalFile, nil)
	if err != nil {
		return fail(errOut, fmt.Errorf("%w: %v", service.ErrIO, err))
	}
	defer j.Close()

	entries, err := j.List(ctx, c.limit)
	if err != nil {
		return fail(errOut, fmt.Errorf("%w: %v", service.ErrIO, err))
	}
	p := newPrinter(cfg, out)
	if len(entries) == 0 && p.Format() == output.FormatText {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no history")
		}
		return exitcode.Success
	}
	if err := p.History(entries); err != nil {
		return fail(errOut, err)
	}
	return exitcode.Success
}
