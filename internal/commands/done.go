package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

func init() {
	Register(SectionTasks, &DoneCmd{})
}

// DoneCmd implements the done command. It toggles, so running it twice
// reopens the task. `done next` toggles the first incomplete task.
type DoneCmd struct{}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string   { return "Toggle a task done / not done" }
func (c *DoneCmd) Usage() string      { return "tasksync done <ref>|next" }
func (c *DoneCmd) NeedsService() bool { return true }

func (c *DoneCmd) RegisterFlags(fs *pflag.FlagSet) {}

type toggleResult struct {
	OK   bool   `json:"ok" yaml:"ok"`
	ID   string `json:"id" yaml:"id"`
	Done bool   `json:"done" yaml:"done"`
}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) == 1 && args[0] == "next" {
		id, err := svc.ToggleNext(ctx)
		if err != nil {
			return fail(errOut, err)
		}
		return report(cfg, out, toggleResult{true, id, true}, "ok")
	}

	task, rest, err := resolveTask(ctx, svc, args)
	if err != nil {
		return fail(errOut, err)
	}
	if len(rest) > 0 {
		return usageError(errOut, "unexpected argument: %s", rest[0])
	}

	if err := svc.Toggle(ctx, task.ID); err != nil {
		return fail(errOut, err)
	}
	return report(cfg, out, toggleResult{true, task.ID, !task.Done}, "ok")
}
