package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

func init() {
	Register(SectionTasks, &ResetCmd{})
}

// ResetCmd implements the reset command.
type ResetCmd struct {
	yes bool
}

// SetYes sets the confirmation flag (for testing).
func (c *ResetCmd) SetYes(yes bool) {
	c.yes = yes
}

func (c *ResetCmd) Name() string       { return "reset" }
func (c *ResetCmd) Aliases() []string  { return nil }
func (c *ResetCmd) Synopsis() string   { return "Mark every task not done" }
func (c *ResetCmd) Usage() string      { return "tasksync reset --yes" }
func (c *ResetCmd) NeedsService() bool { return true }

func (c *ResetCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.yes, "yes", "y", false, "")
}

func (c *ResetCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	if !c.yes {
		return usageError(errOut, "reset marks every task not done; rerun with --yes")
	}
	if err := svc.Reset(ctx, true); err != nil {
		return fail(errOut, err)
	}
	return report(cfg, out, struct {
		OK bool `json:"ok" yaml:"ok"`
	}{true}, "ok")
}
