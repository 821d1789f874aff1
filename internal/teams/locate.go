package teams

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

// Teams registers its local WebSocket endpoint somewhere in this window.
const (
	DefaultPortStart = 8001
	DefaultPortEnd   = 8999
)

// PortProber validates a single candidate port. Satisfied by *Prober.
type PortProber interface {
	Probe(ctx context.Context, port int) bool
}

// Locator discovers the active Teams port: the port recorded in the
// Teams desktop config wins when it still answers, otherwise the
// registration window is scanned in ascending order.
type Locator struct {
	ConfigPath string // Teams desktop-config.json
	PortStart  int
	PortEnd    int

	prober PortProber
	logf   func(format string, args ...interface{})
}

// NewLocator creates a locator with the default config path and port
// window. logf may be nil.
func NewLocator(p PortProber, logf func(string, ...interface{})) *Locator {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Locator{
		ConfigPath: DefaultTeamsConfigPath(),
		PortStart:  DefaultPortStart,
		PortEnd:    DefaultPortEnd,
		prober:     p,
		logf:       logf,
	}
}

// DefaultTeamsConfigPath returns the per-user location of the Teams
// desktop config.
func DefaultTeamsConfigPath() string {
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return filepath.Join(local, "Microsoft", "Teams", "desktop-config.json")
	}
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "Microsoft", "Teams", "desktop-config.json")
	}
	return ""
}

// Locate returns the active port, or false when nothing responds or ctx
// runs out. Callers bound the overall scan through ctx.
func (l *Locator) Locate(ctx context.Context) (int, bool) {
	if port, ok := l.configPort(); ok {
		if l.prober.Probe(ctx, port) {
			l.logf("teams: using recorded port %d", port)
			return port, true
		}
		l.logf("teams: recorded port %d not responsive, scanning", port)
	}

	for port := l.PortStart; port <= l.PortEnd; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if l.prober.Probe(ctx, port) {
			l.logf("teams: found active port %d by scan", port)
			return port, true
		}
	}
	l.logf("teams: no active port in %d-%d", l.PortStart, l.PortEnd)
	return 0, false
}

// configPort reads webSocketPort from the Teams config. A missing or
// corrupt file just means no fast path.
func (l *Locator) configPort() (int, bool) {
	if l.ConfigPath == "" {
		return 0, false
	}
	data, err := os.ReadFile(l.ConfigPath)
	if err != nil {
		return 0, false
	}
	var cfg struct {
		WebSocketPort int `json:"webSocketPort"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		l.logf("teams: unreadable config at %s: %v", l.ConfigPath, err)
		return 0, false
	}
	if cfg.WebSocketPort <= 0 {
		return 0, false
	}
	return cfg.WebSocketPort, true
}
