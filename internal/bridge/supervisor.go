package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lucasfontes/teamsbridge/internal/teams"
)

// ErrRetriesExhausted is the terminal failure after the configured
// number of backoff cycles. Only an explicit Connect resumes retrying.
var ErrRetriesExhausted = errors.New("bridge: retries exhausted")

var errNoEndpoint = errors.New("bridge: no teams endpoint found")

// State of the reconnection supervisor.
type State int

const (
	StateIdle State = iota
	StateLocating
	StateConnecting
	StateConnected
	StateBackoff
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocating:
		return "locating"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Locator finds the active endpoint port.
type Locator interface {
	Locate(ctx context.Context) (int, bool)
}

// SessionClient is the slice of teams.Client the supervisor drives.
type SessionClient interface {
	Open(ctx context.Context, port int) error
	SendStatus(ctx context.Context, st teams.Status) error
	Close() error
}

// Config bounds the retry cycle.
type Config struct {
	BaseDelay     time.Duration // first backoff wait, doubled each cycle
	MaxDelay      time.Duration // backoff cap
	MaxAttempts   int           // failures before the terminal Failed state
	LocateTimeout time.Duration // cap on one full locate pass
	SendTimeout   time.Duration // cap on one presence request
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.LocateTimeout <= 0 {
		// Covers a full scan of the registration window at the TCP
		// pre-check timeout.
		c.LocateTimeout = 9 * time.Minute
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
	return c
}

// Supervisor owns the locate/connect/retry cycle. One worker goroutine
// holds the transport handle and the attempt counter; public methods
// talk to it over a command channel, so callers never race on either.
type Supervisor struct {
	cfg     Config
	locator Locator
	client  SessionClient
	events  *Notifier
	logf    func(format string, args ...interface{})

	cmds      chan command
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	doneOnce  sync.Once
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdSend
	cmdState
)

type command struct {
	kind   cmdKind
	status teams.Status
	errc   chan error
	statec chan State
}

// New creates a supervisor over the given locator and session client.
// logf may be nil.
func New(cfg Config, locator Locator, client SessionClient, logf func(string, ...interface{})) *Supervisor {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:     cfg.withDefaults(),
		locator: locator,
		client:  client,
		events:  NewNotifier(logf),
		logf:    logf,
		cmds:    make(chan command),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the notifier. Register callbacks before Start.
func (s *Supervisor) Events() *Notifier {
	return s.events
}

// Start launches the worker goroutine.
func (s *Supervisor) Start() {
	s.startOnce.Do(func() {
		go s.run(s.ctx)
	})
}

// Connect asks the worker to begin a locate/connect cycle. Fire and
// forget; progress is reported through events. From the Failed state
// this resets the attempt counter and resumes retrying.
func (s *Supervisor) Connect() {
	select {
	case s.cmds <- command{kind: cmdConnect}:
	case <-s.done:
	}
}

// SendStatus sets the Teams presence over the live session. It fails
// fast with teams.ErrNotConnected whenever no session is up, including
// while the worker is locating, backing off, or failed.
func (s *Supervisor) SendStatus(st teams.Status) error {
	errc := make(chan error, 1)
	select {
	case s.cmds <- command{kind: cmdSend, status: st, errc: errc}:
	case <-s.done:
		return teams.ErrNotConnected
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return teams.ErrNotConnected
	}
}

// State reports the worker's current state.
func (s *Supervisor) State() State {
	statec := make(chan State, 1)
	select {
	case s.cmds <- command{kind: cmdState, statec: statec}:
	case <-s.done:
		return StateIdle
	}
	select {
	case st := <-statec:
		return st
	case <-s.done:
		return StateIdle
	}
}

// Connected reports whether a live session is up.
func (s *Supervisor) Connected() bool {
	return s.State() == StateConnected
}

// Close stops the worker. An in-flight locate, open or send resolves
// promptly and a pending backoff wait is abandoned. Safe from any state,
// safe to call more than once.
func (s *Supervisor) Close() error {
	s.cancel()
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.doneOnce.Do(func() { close(s.done) })
	defer s.client.Close()

	state := StateIdle
	attempt := 0
	var backoffC <-chan time.Time
	var cycleC chan cycleEvent // non-nil while a locate/connect cycle runs

	startCycle := func() {
		state = StateLocating
		cycleC = make(chan cycleEvent, 2)
		go s.cycle(ctx, cycleC)
	}

	enterBackoff := func(cause error) {
		attempt++
		if attempt >= s.cfg.MaxAttempts {
			s.logf("bridge: giving up after %d attempts: %v", attempt, cause)
			state = StateFailed
			backoffC = nil
			s.events.emitDisconnect(ErrRetriesExhausted)
			return
		}
		delay := backoffDelay(s.cfg.BaseDelay, s.cfg.MaxDelay, attempt-1)
		s.logf("bridge: retrying in %v (attempt %d/%d): %v", delay, attempt, s.cfg.MaxAttempts, cause)
		state = StateBackoff
		backoffC = time.After(delay)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-cycleC:
			switch ev.kind {
			case cycleConnecting:
				state = StateConnecting
			case cycleConnected:
				cycleC = nil
				attempt = 0
				state = StateConnected
				s.events.emitConnect(ev.port)
			case cycleFailed:
				cycleC = nil
				if ev.dialed {
					s.events.emitDisconnect(ev.err)
				}
				enterBackoff(ev.err)
			}

		case <-backoffC:
			backoffC = nil
			startCycle()

		case cmd := <-s.cmds:
			switch cmd.kind {
			case cmdConnect:
				if state == StateConnected || cycleC != nil {
					break
				}
				attempt = 0
				backoffC = nil
				startCycle()

			case cmdSend:
				if state != StateConnected {
					cmd.errc <- teams.ErrNotConnected
					break
				}
				sctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
				err := s.client.SendStatus(sctx, cmd.status)
				cancel()
				cmd.errc <- err
				if err != nil {
					s.client.Close()
					s.events.emitDisconnect(err)
					enterBackoff(err)
				} else {
					s.events.emitStatusChange(cmd.status)
				}

			case cmdState:
				cmd.statec <- state
			}
		}
	}
}

type cycleEventKind int

const (
	cycleConnecting cycleEventKind = iota
	cycleConnected
	cycleFailed
)

type cycleEvent struct {
	kind   cycleEventKind
	port   int
	err    error
	dialed bool // failed at the connect stage, which fires on_disconnect
}

// cycle runs one locate+connect pass. It holds the client handle until
// it reports back; the worker does not touch the transport meanwhile, so
// the handle still has a single owner at any time.
func (s *Supervisor) cycle(ctx context.Context, out chan<- cycleEvent) {
	lctx, cancel := context.WithTimeout(ctx, s.cfg.LocateTimeout)
	port, ok := s.locator.Locate(lctx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if !ok {
		out <- cycleEvent{kind: cycleFailed, err: errNoEndpoint}
		return
	}

	out <- cycleEvent{kind: cycleConnecting, port: port}
	if err := s.client.Open(ctx, port); err != nil {
		if ctx.Err() != nil {
			return
		}
		out <- cycleEvent{kind: cycleFailed, err: err, dialed: true}
		return
	}
	out <- cycleEvent{kind: cycleConnected, port: port}
}

// backoffDelay returns min(base * 2^n, max).
func backoffDelay(base, max time.Duration, n int) time.Duration {
	d := base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
