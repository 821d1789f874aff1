package bridge

import (
	"sync"

	"github.com/lucasfontes/teamsbridge/internal/teams"
)

// Notifier is the observer registry for bridge lifecycle events.
// Callbacks run in registration order, always from the supervisor's
// worker goroutine, so the connect/disconnect/status-change stream is
// never reordered. Register everything before Start; registration is
// safe from any goroutine but not concurrently with emission.
type Notifier struct {
	mu           sync.Mutex
	connect      []func(port int)
	disconnect   []func(reason error)
	statusChange []func(st teams.Status)
	logf         func(format string, args ...interface{})
}

// NewNotifier creates an empty registry. logf may be nil.
func NewNotifier(logf func(string, ...interface{})) *Notifier {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Notifier{logf: logf}
}

// OnConnect registers a callback fired after each successful connection.
func (n *Notifier) OnConnect(fn func(port int)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connect = append(n.connect, fn)
}

// OnDisconnect registers a callback fired when a connection attempt or a
// live session fails. The terminal give-up is reported with
// ErrRetriesExhausted as the reason.
func (n *Notifier) OnDisconnect(fn func(reason error)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnect = append(n.disconnect, fn)
}

// OnStatusChange registers a callback fired after the endpoint
// acknowledges a presence change.
func (n *Notifier) OnStatusChange(fn func(st teams.Status)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusChange = append(n.statusChange, fn)
}

func (n *Notifier) emitConnect(port int) {
	n.mu.Lock()
	fns := append(([]func(int))(nil), n.connect...)
	n.mu.Unlock()
	for _, fn := range fns {
		n.invoke(func() { fn(port) })
	}
}

func (n *Notifier) emitDisconnect(reason error) {
	n.mu.Lock()
	fns := append(([]func(error))(nil), n.disconnect...)
	n.mu.Unlock()
	for _, fn := range fns {
		n.invoke(func() { fn(reason) })
	}
}

func (n *Notifier) emitStatusChange(st teams.Status) {
	n.mu.Lock()
	fns := append(([]func(teams.Status))(nil), n.statusChange...)
	n.mu.Unlock()
	for _, fn := range fns {
		n.invoke(func() { fn(st) })
	}
}

// invoke keeps one misbehaving callback from starving the rest.
func (n *Notifier) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.logf("bridge: event callback panicked: %v", r)
		}
	}()
	fn()
}
