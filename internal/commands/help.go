package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(SectionMisc, &HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "tasksync help [command]" }
func (c *HelpCmd) NeedsService() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		cmd, ok := DefaultRegistry.Find(args[0])
		if !ok {
			return usageError(errOut, "unknown command: %s", args[0])
		}
		fmt.Fprintf(out, "%s\n\n  %s\n", cmd.Synopsis(), cmd.Usage())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			fmt.Fprintf(out, "\nAliases: %v\n", aliases)
		}
		fmt.Fprint(out, commonFlagsText)
		return exitcode.Success
	}

	fmt.Fprintln(out, "Usage:")
	fmt.Fprintf(out, "  %-44s %s\n", "tasksync", "List tasks")
	for _, g := range DefaultRegistry.Sections() {
		fmt.Fprintf(out, "\n%s:\n", g.Section)
		for _, cmd := range g.Commands {
			fmt.Fprintf(out, "  %-44s %s\n", cmd.Usage(), cmd.Synopsis())
		}
	}
	fmt.Fprint(out, commonFlagsText)
	return exitcode.Success
}

const commonFlagsText = `
Task refs are a 1-based number from 'tasksync list' or a task id (prefix).

Common flags:
  --config <dir>     Override config directory
  --server <url>     Sync server base URL (TASKSYNC_SERVER)
  --token <token>    Bearer token for changes (TASKSYNC_TOKEN)
  --file <path>      Edit this mirror file directly instead of the server
  --local            Edit the configured mirror file directly
  -o, --format <f>   Output format: text, json, yaml
  -q, --quiet        Suppress informational output
  --debug            Print debug logs to stderr
`
