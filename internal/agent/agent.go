// Package agent keeps one consumer's view of the task list current. It
// prefers the server's push channel and falls back to periodic pulls while
// the channel is unavailable.
//
// All state lives in a single event loop goroutine. Timers, dial results,
// inbound frames and pull results are delivered to it as events, so no
// field is shared with another goroutine except the published State.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"tasksync/internal/clock"
	"tasksync/internal/logging"
	"tasksync/internal/service"
	"tasksync/internal/wire"
)

// Defaults for Options.
const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 30 * time.Second
	DefaultMaxAttempts    = 8
)

// ErrClosed is returned by Close on an agent that is already closed.
var ErrClosed = errors.New("agent closed")

// Options configures an Agent.
type Options struct {
	Dialer  Dialer
	Fetcher Fetcher

	// ConnectTimeout is how long a handshake may take before the pull
	// loop starts alongside it.
	ConnectTimeout time.Duration
	PollInterval   time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration

	// MaxAttempts is the number of failed reconnect cycles after which the
	// push channel is abandoned for the session.
	MaxAttempts int

	// Jitter spreads reconnect delays over [d/2, d].
	Jitter bool

	Clock  clock.Clock
	Logger *slog.Logger

	// OnSnapshot receives every applied snapshot, in order, from the
	// event loop goroutine. Snapshots older than the last applied one are
	// never delivered.
	OnSnapshot func(service.Snapshot)

	// OnState receives every state transition.
	OnState func(State)

	// OnRetry is called when a reconnect is scheduled.
	OnRetry func(attempt int, delay time.Duration)
}

// Agent is a client sync agent.
type Agent struct {
	opts   Options
	clock  clock.Clock
	logger *slog.Logger
	rand   func(int64) int64

	ctx    context.Context
	cancel context.CancelFunc
	events chan event
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	stateMu sync.Mutex
	state   State

	// Owned by the event loop.
	attempts       int
	gen            int
	fallbackGen    int
	conn           Conn
	abandoned      bool
	pulling        bool
	connectTimer   *clock.Timer
	reconnectTimer *clock.Timer
	pollTimer      *clock.Timer
	last           service.Snapshot
	hasLast        bool
}

type event any

type (
	dialResult struct {
		gen  int
		conn Conn
		err  error
	}
	frameReceived struct {
		gen  int
		data []byte
	}
	connClosed struct {
		gen int
		err error
	}
	connectTimeout struct{ gen int }
	reconnectDue   struct{}
	pollDue        struct{}
	pullResult     struct {
		snap service.Snapshot
		err  error
	}
	reloadRequest struct{}
	closeRequest  struct{ reply chan error }
)

// New creates an agent and starts connecting.
func New(opts Options) (*Agent, error) {
	if opts.Dialer == nil || opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: agent needs a dialer and a fetcher", service.ErrInvalidArgument)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	a := &Agent{
		opts:   opts,
		clock:  opts.Clock,
		logger: logging.OrDiscard(opts.Logger),
		rand:   rand.Int64N,
		events: make(chan event, 64),
		done:   make(chan struct{}),
		state:  Connecting,
	}
	if a.clock == nil {
		a.clock = clock.Real()
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	go a.loop()
	return a, nil
}

// State returns the current state.
func (a *Agent) State() State {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

// Reload requests one immediate pull. It only has an effect while the agent
// is in ConnectedPull; a live push channel is assumed fresher.
func (a *Agent) Reload() {
	a.post(reloadRequest{})
}

// Close stops the pull timer, cancels any pending reconnect and closes the
// open channel, then moves to Failed. Every release step runs even if an
// earlier one fails; their errors are joined. Close blocks until the agent
// has stopped and is safe to call more than once.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		reply := make(chan error, 1)
		select {
		case a.events <- closeRequest{reply: reply}:
			a.closeErr = <-reply
		case <-a.done:
			a.closeErr = ErrClosed
		}
		<-a.done
	})
	return a.closeErr
}

// Done is closed once the agent has stopped.
func (a *Agent) Done() <-chan struct{} { return a.done }

func (a *Agent) post(ev event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

func (a *Agent) loop() {
	defer close(a.done)
	a.setState(Connecting)
	a.armFallback()
	a.dial()

	for ev := range a.events {
		switch ev := ev.(type) {
		case dialResult:
			a.onDialResult(ev)
		case frameReceived:
			if ev.gen == a.gen {
				a.onFrame(ev.data)
			}
		case connClosed:
			a.onConnClosed(ev)
		case connectTimeout:
			if ev.gen == a.fallbackGen && a.conn == nil {
				a.connectTimer = nil
				a.logger.Debug("push channel not up in time, starting pull fallback")
				a.startPulling()
			}
		case reconnectDue:
			a.reconnectTimer = nil
			a.dial()
		case pollDue:
			a.pollTimer = nil
			if a.pulling {
				a.pull()
				a.schedulePoll()
			}
		case pullResult:
			if ev.err != nil {
				a.logger.Warn("pull failed", "error", ev.err)
				continue
			}
			a.apply(ev.snap, wire.SourcePull)
		case reloadRequest:
			if a.State() == ConnectedPull {
				a.pull()
			}
		case closeRequest:
			ev.reply <- a.release()
			return
		}
	}
}

func (a *Agent) setState(s State) {
	a.stateMu.Lock()
	prev := a.state
	a.state = s
	a.stateMu.Unlock()
	if prev != s {
		a.logger.Debug("agent state", "from", prev.String(), "to", s.String())
	}
	if a.opts.OnState != nil {
		a.opts.OnState(s)
	}
}

// armFallback starts the pull fallback timer for a connect or reconnect
// cycle. Later dials in the same cycle leave it running; only a successful
// handshake or Close clears it.
func (a *Agent) armFallback() {
	if a.pulling || a.connectTimer != nil {
		return
	}
	a.fallbackGen++
	gen := a.fallbackGen
	a.connectTimer = a.clock.AfterFunc(a.opts.ConnectTimeout, func() {
		a.post(connectTimeout{gen: gen})
	})
}

// dial starts one handshake in the background.
func (a *Agent) dial() {
	a.gen++
	gen := a.gen
	go func() {
		conn, err := a.opts.Dialer.Dial(a.ctx)
		select {
		case a.events <- dialResult{gen: gen, conn: conn, err: err}:
		case <-a.done:
			if conn != nil {
				_ = conn.Close()
			}
		}
	}()
}

func (a *Agent) onDialResult(ev dialResult) {
	if ev.gen != a.gen {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}
	if ev.err != nil {
		a.logger.Debug("push handshake failed", "attempt", a.attempts, "error", ev.err)
		a.scheduleReconnect()
		return
	}

	a.conn = ev.conn
	a.attempts = 0
	a.stopTimer(&a.connectTimer)
	a.fallbackGen++
	a.stopPulling()
	a.setState(ConnectedPush)
	a.logger.Info("push channel connected")

	conn, gen := ev.conn, ev.gen
	go func() {
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				a.post(connClosed{gen: gen, err: err})
				return
			}
			a.post(frameReceived{gen: gen, data: data})
		}
	}()
}

func (a *Agent) onConnClosed(ev connClosed) {
	if ev.gen != a.gen || a.conn == nil {
		return
	}
	_ = a.conn.Close()
	a.conn = nil
	a.logger.Info("push channel lost", "error", ev.err)
	a.armFallback()
	a.scheduleReconnect()
}

// scheduleReconnect arms the next handshake, or gives up on the push
// channel once MaxAttempts cycles have failed.
func (a *Agent) scheduleReconnect() {
	if a.attempts >= a.opts.MaxAttempts {
		if !a.abandoned {
			a.abandoned = true
			a.logger.Warn("push channel abandoned, continuing with pulls", "attempts", a.attempts)
		}
		a.stopTimer(&a.connectTimer)
		a.startPulling()
		a.setState(ConnectedPull)
		return
	}

	delay := Backoff(a.attempts, a.opts.BaseDelay, a.opts.MaxDelay)
	if a.opts.Jitter {
		delay = withJitter(delay, a.rand)
	}
	a.attempts++
	a.setState(Reconnecting)
	a.stopTimer(&a.reconnectTimer)
	a.reconnectTimer = a.clock.AfterFunc(delay, func() { a.post(reconnectDue{}) })
	if a.opts.OnRetry != nil {
		a.opts.OnRetry(a.attempts, delay)
	}
}

func (a *Agent) startPulling() {
	if a.pulling {
		return
	}
	a.pulling = true
	a.pull()
	a.schedulePoll()
}

func (a *Agent) stopPulling() {
	a.pulling = false
	a.stopTimer(&a.pollTimer)
}

func (a *Agent) schedulePoll() {
	a.stopTimer(&a.pollTimer)
	a.pollTimer = a.clock.AfterFunc(a.opts.PollInterval, func() { a.post(pollDue{}) })
}

// pull fetches once in the background. Pulls are never queued; results
// that lose a race are dropped by apply.
func (a *Agent) pull() {
	go func() {
		snap, err := a.opts.Fetcher.Fetch(a.ctx)
		a.post(pullResult{snap: snap, err: err})
	}()
}

func (a *Agent) onFrame(data []byte) {
	env, err := wire.DecodeAt(data, a.clock.Now())
	if errors.Is(err, wire.ErrIgnored) {
		return
	}
	if err != nil {
		a.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	a.apply(env.Snapshot(), wire.SourceWS)
}

func (a *Agent) apply(snap service.Snapshot, source string) {
	if a.hasLast && snap.OlderThan(a.last) {
		a.logger.Debug("dropping stale snapshot", "source", source, "ts", snap.TS, "last", a.last.TS)
		return
	}
	a.last = snap
	a.hasLast = true
	if a.opts.OnSnapshot != nil {
		a.opts.OnSnapshot(snap.Clone())
	}
}

func (a *Agent) stopTimer(t **clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// release runs the three teardown steps and reports their joined errors.
func (a *Agent) release() error {
	a.cancel()
	err := errors.Join(
		safely("stop pull timer", func() error {
			a.stopPulling()
			return nil
		}),
		safely("cancel reconnect", func() error {
			a.stopTimer(&a.reconnectTimer)
			a.stopTimer(&a.connectTimer)
			return nil
		}),
		safely("close channel", func() error {
			if a.conn == nil {
				return nil
			}
			conn := a.conn
			a.conn = nil
			return conn.Close()
		}),
	)
	a.gen++
	a.setState(Failed)
	return err
}

func safely(step string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", step, r)
		}
	}()
	if err := f(); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}
