package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/importer/googletasks"
	"tasksync/internal/service"
)

func init() {
	Register(SectionAccount, &ImportCmd{})
}

// SourceFactory opens the Google Tasks source for import.
type SourceFactory func(ctx context.Context, cfg *config.Config) (googletasks.Source, error)

// ImportCmd copies open Google tasks into the task list.
type ImportCmd struct {
	listName string
	source   SourceFactory
}

// SetSource replaces the Google Tasks source (for testing).
func (c *ImportCmd) SetSource(f SourceFactory) {
	c.source = f
}

func (c *ImportCmd) Name() string       { return "import" }
func (c *ImportCmd) Aliases() []string  { return nil }
func (c *ImportCmd) Synopsis() string   { return "Import open tasks from Google Tasks" }
func (c *ImportCmd) Usage() string      { return "tasksync import [--list <google-list>]" }
func (c *ImportCmd) NeedsService() bool { return true }

func (c *ImportCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.listName, "list", "l", "", "")
}

func (c *ImportCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s (use --list)", args[0])
	}

	open := c.source
	if open == nil {
		open = func(ctx context.Context, cfg *config.Config) (googletasks.Source, error) {
			return googletasks.New(ctx, cfg)
		}
	}
	src, err := open(ctx, cfg)
	if err != nil {
		return fail(errOut, err)
	}

	res, err := googletasks.Import(ctx, src, svc, c.listName)
	if err != nil {
		return fail(errOut, err)
	}

	text := fmt.Sprintf("imported %d from %s (%d already present)", res.Added, res.List, res.Skipped)
	return report(cfg, out, struct {
		OK      bool   `json:"ok" yaml:"ok"`
		List    string `json:"list" yaml:"list"`
		Added   int    `json:"added" yaml:"added"`
		Skipped int    `json:"skipped" yaml:"skipped"`
	}{true, res.List, res.Added, res.Skipped}, text)
}
