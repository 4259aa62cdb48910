// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/logging"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsService returns true if the command operates on the task list
	// through a service.Service. serve, watch, history, help, version,
	// login and logout build what they need themselves.
	NeedsService() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *pflag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, settings).
	// svc is nil if NeedsService() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int
}

// fail reports err and returns the matching exit code.
func fail(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %v\n", err)
	if errors.Is(err, ErrTaskRefRequired) {
		return exitcode.UserError
	}
	return exitcode.FromError(err)
}

// usageError reports a bad invocation.
func usageError(errOut io.Writer, format string, args ...any) int {
	fmt.Fprintf(errOut, "error: "+format+"\n", args...)
	return exitcode.UserError
}

func newPrinter(cfg *config.Config, out io.Writer) *output.Printer {
	return output.NewPrinter(out, output.Format(cfg.Format))
}

// report prints a command result: the structured value for json/yaml, or
// the text line unless --quiet.
func report(cfg *config.Config, out io.Writer, v any, text string) int {
	p := newPrinter(cfg, out)
	if cfg.Quiet && p.Format() == output.FormatText {
		return exitcode.Success
	}
	if err := p.Value(v, text); err != nil {
		return exitcode.BackendError
	}
	return exitcode.Success
}

func newLogger(cfg *config.Config, errOut io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case cfg.Quiet:
		level = slog.LevelWarn
	}
	return logging.New(errOut, level)
}
