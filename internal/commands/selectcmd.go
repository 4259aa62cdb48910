package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

func init() {
	Register(SectionTasks, &SelectCmd{})
}

// SelectCmd implements the select command. It sets the selection every
// connected viewer follows.
type SelectCmd struct {
	clear bool
}

// SetClear sets the clear flag (for testing).
func (c *SelectCmd) SetClear(clear bool) {
	c.clear = clear
}

func (c *SelectCmd) Name() string       { return "select" }
func (c *SelectCmd) Aliases() []string  { return nil }
func (c *SelectCmd) Synopsis() string   { return "Set or clear the current task" }
func (c *SelectCmd) Usage() string      { return "tasksync select <ref> | --clear" }
func (c *SelectCmd) NeedsService() bool { return true }

func (c *SelectCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.clear, "clear", false, "")
}

func (c *SelectCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	result := struct {
		OK bool    `json:"ok" yaml:"ok"`
		ID *string `json:"taskId" yaml:"taskId"`
	}{OK: true}

	if c.clear {
		if len(args) > 0 {
			return usageError(errOut, "cannot use both --clear and a task reference")
		}
		if err := svc.Select(ctx, ""); err != nil {
			return fail(errOut, err)
		}
		return report(cfg, out, result, "ok")
	}

	task, rest, err := resolveTask(ctx, svc, args)
	if err != nil {
		return fail(errOut, err)
	}
	if len(rest) > 0 {
		return usageError(errOut, "unexpected argument: %s", rest[0])
	}
	if err := svc.Select(ctx, task.ID); err != nil {
		return fail(errOut, err)
	}
	result.ID = &task.ID
	return report(cfg, out, result, "ok")
}
