package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"tasksync/internal/backend/local"
	"tasksync/internal/backend/remote"
	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

// ServiceFactory creates a Service from config.
// Used to inject the backend during dispatch.
type ServiceFactory func(ctx context.Context, cfg *config.Config) (service.Service, error)

// DefaultFactory talks to the configured server, or edits the mirror file
// directly when cfg.Local is set.
func DefaultFactory(ctx context.Context, cfg *config.Config) (service.Service, error) {
	if cfg.Local {
		return local.Open(cfg.DataFile, nil)
	}
	return remote.New(cfg.Server, cfg.Token), nil
}

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  ServiceFactory
}

// NewDispatcher creates a new dispatcher with the given registry and service factory.
func NewDispatcher(registry *commands.Registry, factory ServiceFactory) *Dispatcher {
	if factory == nil {
		factory = DefaultFactory
	}
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// Flags require a command
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configDir string
	quiet     bool
	debug     bool
	file      string
	local     bool
	server    string
	token     string
	format    string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.configDir, "config", "", "")
	fs.BoolVarP(&c.quiet, "quiet", "q", false, "")
	fs.BoolVar(&c.debug, "debug", false, "")
	fs.StringVar(&c.file, "file", "", "")
	fs.BoolVar(&c.local, "local", false, "")
	fs.StringVar(&c.server, "server", "", "")
	fs.StringVar(&c.token, "token", "", "")
	fs.StringVarP(&c.format, "format", "o", "text", "")
}

// apply overrides config values with the flags that were set.
func (c *commonFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	cfg.Quiet = c.quiet
	cfg.Debug = c.debug

	format, err := output.ParseFormat(c.format)
	if err != nil {
		return err
	}
	cfg.Format = string(format)

	if fs.Changed("server") {
		cfg.Server = c.server
	}
	if fs.Changed("token") {
		cfg.Token = c.token
	}
	if fs.Changed("file") {
		if strings.TrimSpace(c.file) == "" {
			return fmt.Errorf("flag --file needs a path")
		}
		cfg.DataFile = c.file
		cfg.Local = true
	}
	if c.local {
		cfg.Local = true
	}
	return nil
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves
	fs.Usage = func() {}

	var common commonFlags
	common.register(fs)

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	cfg, err := config.New(common.configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	if err := common.apply(fs, cfg); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	var svc service.Service
	if cmd.NeedsService() {
		svc, err = d.factory(ctx, cfg)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.FromError(err)
		}
		if c, ok := svc.(io.Closer); ok {
			defer func() {
				if err := c.Close(); err != nil {
					fmt.Fprintf(errOut, "error: %v\n", err)
				}
			}()
		}
	}

	return cmd.Run(ctx, cfg, svc, fs.Args(), out, errOut)
}
