package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"tasksync/internal/agent"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/selection"
	"tasksync/internal/service"
)

func init() {
	Register(SectionSync, &WatchCmd{})
}

// WatchCmd follows the server and redraws the list on every change.
type WatchCmd struct {
	once bool
}

// SetOnce makes watch exit after the first snapshot (for testing).
func (c *WatchCmd) SetOnce(once bool) {
	c.once = once
}

func (c *WatchCmd) Name() string       { return "watch" }
func (c *WatchCmd) Aliases() []string  { return []string{"follow"} }
func (c *WatchCmd) Synopsis() string   { return "Follow the task list live" }
func (c *WatchCmd) Usage() string      { return "tasksync watch [--once]" }
func (c *WatchCmd) NeedsService() bool { return false }

func (c *WatchCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.once, "once", false, "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	logger := newLogger(cfg, errOut)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The agent calls back on its own goroutine; rendering happens here.
	snaps := make(chan service.Snapshot, 16)
	states := make(chan agent.State, 16)

	a, err := agent.New(agent.Options{
		Dialer:       agent.NewWebSocketDialer(cfg.Server),
		Fetcher:      agent.NewHTTPFetcher(cfg.Server),
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxReconnectAttempts,
		Jitter:       true,
		Logger:       logger,
		OnSnapshot: func(s service.Snapshot) {
			select {
			case snaps <- s:
			default:
				logger.Warn("renderer behind, dropping snapshot", "ts", s.TS)
			}
		},
		OnState: func(s agent.State) {
			select {
			case states <- s:
			default:
			}
		},
		OnRetry: func(attempt int, delay time.Duration) {
			logger.Debug("reconnect scheduled", "attempt", attempt, "delay", delay.String())
		},
	})
	if err != nil {
		return fail(errOut, err)
	}

	v := newView(cfg, out)
	for {
		select {
		case <-ctx.Done():
			if err := a.Close(); err != nil {
				logger.Debug("agent close", "error", err)
			}
			return exitcode.Success
		case s := <-states:
			logger.Info("channel state", "state", s.String())
		case snap := <-snaps:
			if err := v.render(snap); err != nil {
				_ = a.Close()
				return fail(errOut, err)
			}
			if c.once {
				_ = a.Close()
				return exitcode.Success
			}
		}
	}
}

// view keeps the local cursor and draws the list.
type view struct {
	printer  *output.Printer
	out      io.Writer
	tracker  selection.Tracker
	selected string
	clear    bool
}

func newView(cfg *config.Config, out io.Writer) *view {
	f, ok := out.(*os.File)
	p := newPrinter(cfg, out)
	return &view{
		printer: p,
		out:     out,
		clear:   ok && isatty.IsTerminal(f.Fd()) && p.Format() == output.FormatText,
	}
}

// render updates the cursor and redraws. A changed server-side selection
// moves the cursor; otherwise the cursor follows its task across edits.
func (v *view) render(snap service.Snapshot) error {
	v.tracker.Update(snap)
	if id := snap.Selected(); id != "" && id != v.selected {
		v.tracker.SelectID(id)
	}
	v.selected = snap.Selected()

	if v.clear {
		fmt.Fprint(v.out, "\033[H\033[2J")
	}
	if len(snap.Items) == 0 && v.printer.Format() == output.FormatText {
		_, err := fmt.Fprintln(v.out, "no tasks found")
		return err
	}
	cursor := v.tracker.Index()
	return v.printer.Tasks(snap, cursor)
}
