package teams

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Prober answers whether a local port hosts a responsive Teams IPC
// endpoint. Every failure mode (closed port, refused upgrade, no reply,
// garbage reply) is a negative result, never an error: during discovery
// an unresponsive port is the common case.
type Prober struct {
	TCPTimeout   time.Duration // raw connect pre-check
	ReplyTimeout time.Duration // full handshake plus ping

	logf func(format string, args ...interface{})
}

// NewProber creates a prober with the default bounds. logf may be nil.
func NewProber(logf func(string, ...interface{})) *Prober {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Prober{
		TCPTimeout:   500 * time.Millisecond,
		ReplyTimeout: 2 * time.Second,
		logf:         logf,
	}
}

// Probe checks a candidate port in two stages. The raw TCP dial is far
// cheaper than a WebSocket handshake and filters closed ports before the
// handshake cost multiplies across hundreds of scan candidates.
func (p *Prober) Probe(ctx context.Context, port int) bool {
	d := net.Dialer{Timeout: p.TCPTimeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	conn.Close()

	hctx, cancel := context.WithTimeout(ctx, p.ReplyTimeout)
	defer cancel()

	client := NewClient(p.logf)
	client.dialTimeout = p.ReplyTimeout
	client.replyTimeout = p.ReplyTimeout
	if err := client.Open(hctx, port); err != nil {
		p.logf("teams: port %d not responsive: %v", port, err)
		return false
	}
	client.Close()
	return true
}
