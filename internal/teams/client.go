package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// Handshake identity the Teams endpoint expects on upgrade. The endpoint
// rejects upgrades that do not look like they come from the Teams web
// client, so we present ourselves as one.
const (
	wsOrigin    = "https://teams.microsoft.com"
	wsUserAgent = "Microsoft Teams Client"
)

const (
	methodPing        = "ping"
	methodSetPresence = "setUserPresence"

	defaultDialTimeout  = 2 * time.Second
	defaultReplyTimeout = 2 * time.Second
)

// request is the outbound envelope: a fresh correlation id, the method
// name, and optional parameters.
type request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// presenceParams is the setUserPresence payload. The explicit nulls for
// expiry and deviceId are part of the shape the endpoint accepts.
type presenceParams struct {
	Status   string  `json:"status"`
	Expiry   *string `json:"expiry"`
	DeviceID *string `json:"deviceId"`
}

// Client owns at most one live session to the Teams IPC endpoint.
// Requests are serialized: a send blocks on its reply (or timeout), so
// there is never more than one outstanding correlation id.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
	port int
	logf func(format string, args ...interface{})

	dialTimeout  time.Duration
	replyTimeout time.Duration
}

// NewClient creates a disconnected client. logf may be nil.
func NewClient(logf func(string, ...interface{})) *Client {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Client{
		logf:         logf,
		dialTimeout:  defaultDialTimeout,
		replyTimeout: defaultReplyTimeout,
	}
}

// Open performs the WebSocket handshake against 127.0.0.1:port followed
// by a liveness round-trip. On any failure the client stays disconnected
// and the error wraps ErrUnreachable, ErrHandshake, ErrProtocol or
// ErrTimeout.
func (c *Client) Open(ctx context.Context, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.closeLocked()
	}

	dctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dctx, fmt.Sprintf("ws://127.0.0.1:%d", port), &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Origin":     []string{wsOrigin},
			"User-Agent": []string{wsUserAgent},
		},
	})
	if err != nil {
		// A response means we reached an HTTP server that refused the
		// upgrade; no response means the transport itself failed.
		if resp != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	conn.SetReadLimit(1 << 20)

	c.conn = conn
	c.port = port

	// The session only counts as open once the endpoint answers a ping.
	if _, err := c.sendLocked(ctx, methodPing, nil); err != nil {
		c.closeLocked()
		return err
	}

	c.logf("teams: session open on port %d", port)
	return nil
}

// Send issues a request and waits for the matching reply. Returns
// ErrNotConnected immediately when no session is open.
func (c *Client) Send(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.sendLocked(ctx, method, params)
}

// SendStatus issues a setUserPresence request. Protocol acknowledgment
// is all we can verify here; the visible change happens in the Teams UI.
func (c *Client) SendStatus(ctx context.Context, st Status) error {
	_, err := c.Send(ctx, methodSetPresence, presenceParams{Status: st.Token})
	return err
}

// Ping runs the liveness round-trip on the open session.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Send(ctx, methodPing, nil)
	return err
}

func (c *Client) sendLocked(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req := request{ID: uuid.NewString(), Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, c.replyTimeout)
	defer cancel()

	if err := c.conn.Write(rctx, websocket.MessageText, payload); err != nil {
		c.closeLocked()
		if rctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
		}
		return nil, fmt.Errorf("%w: write: %v", ErrUnreachable, err)
	}

	for {
		_, data, err := c.conn.Read(rctx)
		if err != nil {
			// Canceling the read context tears down the connection, so
			// a timed-out session is a dead session either way.
			c.closeLocked()
			if rctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
			}
			return nil, fmt.Errorf("%w: read: %v", ErrUnreachable, err)
		}

		id, hasError, wellFormed := parseReply(data)
		if !wellFormed {
			return nil, fmt.Errorf("%w: unparsable reply", ErrProtocol)
		}
		if id != "" && id != req.ID {
			// Unsolicited frame; keep waiting for our correlation id.
			c.logf("teams: ignoring frame for id %q", id)
			continue
		}
		if hasError {
			return nil, fmt.Errorf("%w: reply to %s carries error", ErrProtocol, method)
		}
		return json.RawMessage(data), nil
	}
}

// parseReply accepts any JSON value. Objects expose their id (for
// correlation) and whether an error field is present.
func parseReply(data []byte) (id string, hasError, wellFormed bool) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return "", false, false
	}
	if m, ok := v.(map[string]interface{}); ok {
		id, _ = m["id"].(string)
		_, hasError = m["error"]
	}
	return id, hasError, true
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Port returns the port of the open session, 0 when disconnected.
func (c *Client) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

// Close tears the session down. The transport close is best effort; the
// client always ends up disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.conn = nil
	c.port = 0
	return err
}
