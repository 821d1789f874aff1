package notify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/lucasfontes/teamsbridge/internal/bridge"
	"github.com/lucasfontes/teamsbridge/internal/teams"
)

const appName = "Teams Bridge"

// Desktop sends best-effort desktop notifications for bridge lifecycle
// events. Failures are logged and swallowed: a missed balloon must not
// affect the connection.
type Desktop struct {
	logf   func(format string, args ...interface{})
	notify func(title, body string) error

	mu        sync.Mutex
	connected bool
}

// NewDesktop creates a desktop notifier. logf may be nil.
func NewDesktop(logf func(string, ...interface{})) *Desktop {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Desktop{logf: logf, notify: beeepNotify}
}

func beeepNotify(title, body string) error {
	beeep.AppName = appName
	return beeep.Notify(title, body, "")
}

// Watch registers notification callbacks on the bridge events.
func (d *Desktop) Watch(events *bridge.Notifier) {
	events.OnConnect(d.handleConnect)
	events.OnDisconnect(d.handleDisconnect)
	events.OnStatusChange(d.handleStatusChange)
}

func (d *Desktop) handleConnect(port int) {
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	d.send("Connected", fmt.Sprintf("Teams endpoint on port %d", port))
}

// handleDisconnect notifies only on the first failure after a live
// session and on the terminal give-up. Retry cycles fire a disconnect
// per attempt and would otherwise flood the desktop.
func (d *Desktop) handleDisconnect(reason error) {
	if errors.Is(reason, bridge.ErrRetriesExhausted) {
		d.mu.Lock()
		d.connected = false
		d.mu.Unlock()
		d.send("Gave up", "Teams is not reachable; reconnect manually")
		return
	}
	d.mu.Lock()
	wasConnected := d.connected
	d.connected = false
	d.mu.Unlock()
	if wasConnected {
		d.send("Disconnected", reason.Error())
	}
}

func (d *Desktop) handleStatusChange(st teams.Status) {
	d.send("Status set", st.Label)
}

func (d *Desktop) send(title, body string) {
	if err := d.notify(fmt.Sprintf("%s: %s", appName, title), body); err != nil {
		d.logf("notify: %v", err)
	}
}
