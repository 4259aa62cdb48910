package commands

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

func init() {
	Register(SectionTasks, &AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	group string
}

// SetGroup sets the group (for testing).
func (c *AddCmd) SetGroup(group string) {
	c.group = group
}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Create a task" }
func (c *AddCmd) Usage() string      { return "tasksync add [--group <name>] <text...>" }
func (c *AddCmd) NeedsService() bool { return true }

func (c *AddCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.group, "group", "g", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return usageError(errOut, "text required")
	}

	if err := svc.Add(ctx, text, strings.TrimSpace(c.group)); err != nil {
		return fail(errOut, err)
	}

	return report(cfg, out, struct {
		OK   bool   `json:"ok" yaml:"ok"`
		Text string `json:"text" yaml:"text"`
	}{true, text}, "ok")
}
