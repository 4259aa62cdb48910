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
	Register(SectionTasks, &EditCmd{})
}

// EditCmd implements the edit command.
type EditCmd struct{}

func (c *EditCmd) Name() string       { return "edit" }
func (c *EditCmd) Aliases() []string  { return []string{"rename"} }
func (c *EditCmd) Synopsis() string   { return "Change the text of a task" }
func (c *EditCmd) Usage() string      { return "tasksync edit <ref> <text...>" }
func (c *EditCmd) NeedsService() bool { return true }

func (c *EditCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	task, rest, err := resolveTask(ctx, svc, args)
	if err != nil {
		return fail(errOut, err)
	}
	text := strings.TrimSpace(strings.Join(rest, " "))
	if text == "" {
		return usageError(errOut, "text required")
	}

	oldText, newText, err := svc.Edit(ctx, task.ID, text)
	if err != nil {
		return fail(errOut, err)
	}
	return report(cfg, out, struct {
		OK      bool   `json:"ok" yaml:"ok"`
		OldText string `json:"oldText" yaml:"oldText"`
		NewText string `json:"newText" yaml:"newText"`
	}{true, oldText, newText}, "edited: "+oldText+" -> "+newText)
}
