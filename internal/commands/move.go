package commands

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/service"
)

func init() {
	Register(SectionTasks, &UpCmd{})
	Register(SectionTasks, &DownCmd{})
	Register(SectionTasks, &MoveCmd{})
}

type moveResult struct {
	OK bool   `json:"ok" yaml:"ok"`
	ID string `json:"id" yaml:"id"`
}

// UpCmd moves a task one place up; the first task wraps to the end.
type UpCmd struct{}

func (c *UpCmd) Name() string                    { return "up" }
func (c *UpCmd) Aliases() []string               { return nil }
func (c *UpCmd) Synopsis() string                { return "Move a task up one place" }
func (c *UpCmd) Usage() string                   { return "tasksync up <ref>" }
func (c *UpCmd) NeedsService() bool              { return true }
func (c *UpCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *UpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runStep(ctx, cfg, svc, args, out, errOut, svc.MoveUp)
}

// DownCmd moves a task one place down; the last task wraps to the front.
type DownCmd struct{}

func (c *DownCmd) Name() string                    { return "down" }
func (c *DownCmd) Aliases() []string               { return nil }
func (c *DownCmd) Synopsis() string                { return "Move a task down one place" }
func (c *DownCmd) Usage() string                   { return "tasksync down <ref>" }
func (c *DownCmd) NeedsService() bool              { return true }
func (c *DownCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *DownCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runStep(ctx, cfg, svc, args, out, errOut, svc.MoveDown)
}

func runStep(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer,
	step func(context.Context, string) error) int {
	task, rest, err := resolveTask(ctx, svc, args)
	if err != nil {
		return fail(errOut, err)
	}
	if len(rest) > 0 {
		return usageError(errOut, "unexpected argument: %s", rest[0])
	}
	if err := step(ctx, task.ID); err != nil {
		return fail(errOut, err)
	}
	return report(cfg, out, moveResult{true, task.ID}, "ok")
}

// MoveCmd moves a task to a 1-based position. Positions past the end
// move the task last.
type MoveCmd struct{}

func (c *MoveCmd) Name() string                    { return "move" }
func (c *MoveCmd) Aliases() []string               { return []string{"mv"} }
func (c *MoveCmd) Synopsis() string                { return "Move a task to a position" }
func (c *MoveCmd) Usage() string                   { return "tasksync move <ref> <position>" }
func (c *MoveCmd) NeedsService() bool              { return true }
func (c *MoveCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *MoveCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	task, rest, err := resolveTask(ctx, svc, args)
	if err != nil {
		return fail(errOut, err)
	}
	if len(rest) != 1 {
		return usageError(errOut, "position required")
	}
	pos, err := strconv.Atoi(rest[0])
	if err != nil || pos < 1 {
		return usageError(errOut, "invalid position: %s", rest[0])
	}

	if err := svc.MoveTo(ctx, task.ID, pos-1); err != nil {
		return fail(errOut, err)
	}
	return report(cfg, out, moveResult{true, task.ID}, "ok")
}
