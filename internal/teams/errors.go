package teams

import "errors"

// Error taxonomy for the session client. The prober and locator never
// surface these; they reduce every failure to a negative result.
var (
	// ErrUnreachable means no transport-level connection could be made
	// (or an established one was lost mid-operation).
	ErrUnreachable = errors.New("teams: endpoint unreachable")

	// ErrHandshake means the TCP connection succeeded but the WebSocket
	// upgrade was rejected.
	ErrHandshake = errors.New("teams: websocket handshake failed")

	// ErrProtocol means the reply was not well-formed JSON or carried an
	// error field.
	ErrProtocol = errors.New("teams: protocol error")

	// ErrTimeout means no reply arrived within the configured bound.
	ErrTimeout = errors.New("teams: reply timeout")

	// ErrNotConnected is returned immediately when an operation needs an
	// open session and there is none.
	ErrNotConnected = errors.New("teams: not connected")
)
