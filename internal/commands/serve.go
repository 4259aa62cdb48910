package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/journal"
	"tasksync/internal/reconcile"
	"tasksync/internal/server"
	"tasksync/internal/service"
	"tasksync/internal/store"
)

func init() {
	Register(SectionSync, &ServeCmd{})
}

// ServeCmd runs the sync server: the authoritative store, its file
// reconciler, the history journal and the HTTP/push API.
type ServeCmd struct {
	addr      string
	noJournal bool

	// listener, when set, is used instead of listening on addr.
	listener net.Listener
}

// SetListener serves on ln instead of the configured address (for testing).
func (c *ServeCmd) SetListener(ln net.Listener) {
	c.listener = ln
}

func (c *ServeCmd) Name() string       { return "serve" }
func (c *ServeCmd) Aliases() []string  { return []string{"server"} }
func (c *ServeCmd) Synopsis() string   { return "Run the sync server" }
func (c *ServeCmd) Usage() string      { return "tasksync serve [--addr <host:port>] [--no-journal]" }
func (c *ServeCmd) NeedsService() bool { return false }

func (c *ServeCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
	fs.BoolVar(&c.noJournal, "no-journal", false, "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	logger := newLogger(cfg, errOut)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(store.Options{Path: cfg.DataFile, Debounce: cfg.Debounce, Logger: logger})
	if err := st.Load(); err != nil {
		logger.Warn("starting with an empty list", "path", cfg.DataFile, "error", err)
	}
	logger.Info("loaded task list", "path", cfg.DataFile, "tasks", len(st.Snapshot().Items))

	if !c.noJournal {
		j, err := journal.Open(cfg.JournalFile, logger)
		if err != nil {
			logger.Warn("history disabled", "path", cfg.JournalFile, "error", err)
		} else {
			defer j.Close()
			defer st.Subscribe(j.Observe)()
		}
	}

	if cfg.Token == "" {
		logger.Warn("no token configured; changes are accepted from anyone who can reach the server")
	}
	srv := server.New(server.Options{Store: st, Token: cfg.Token, Logger: logger})

	rec := reconcile.New(reconcile.Options{Path: cfg.DataFile, Target: st, Logger: logger})
	recDone := make(chan struct{})
	go func() {
		defer close(recDone)
		if err := rec.Run(ctx); err != nil {
			logger.Error("file reconciler stopped", "error", err)
		}
	}()

	var err error
	if c.listener != nil {
		err = srv.Serve(ctx, c.listener)
	} else {
		addr := cfg.Addr
		if c.addr != "" {
			addr = c.addr
		}
		err = srv.ListenAndServe(ctx, addr)
	}
	stop()
	<-recDone
	if cerr := st.Close(); cerr != nil {
		logger.Error("final save failed", "path", cfg.DataFile, "error", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	logger.Info("sync server stopped")
	return exitcode.Success
}
