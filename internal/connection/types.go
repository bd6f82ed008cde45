package connection

import (
	"errors"
	"time"

	"github.com/rickgao/livequote/internal/model"
)

// Errors
var (
	ErrAlreadyConnected  = errors.New("already connecting or connected")
	ErrTornDown          = errors.New("connection manager torn down")
	ErrInactive          = errors.New("lifecycle guard inactive")
	ErrNotConnected      = errors.New("not connected")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrMissingSymbol     = errors.New("frame has no symbol")
)

// Handler receives transport events. Every method is invoked on the event
// loop. OnClose is delivered exactly once per Conn, after any OnError.
type Handler interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose(code int, reason string)
}

// Conn is one underlying transport connection.
type Conn interface {
	// Send writes a text frame.
	Send(data []byte) error

	// Close shuts the connection down. OnClose still follows.
	Close() error

	// IsOpen reports whether the handshake completed and the
	// connection has not closed since.
	IsOpen() bool
}

// Dialer opens transport connections. Dial must not block: the outcome is
// reported through h.
type Dialer interface {
	Dial(url string, h Handler) Conn
}

// UpdateHandler consumes decoded updates from the active generation.
type UpdateHandler interface {
	HandleUpdate(u model.Update)
}

// UpdateHandlerFunc adapts a function to UpdateHandler.
type UpdateHandlerFunc func(u model.Update)

// HandleUpdate calls f(u).
func (f UpdateHandlerFunc) HandleUpdate(u model.Update) {
	f(u)
}

// ClientConfig configures the WebSocket transport.
type ClientConfig struct {
	HandshakeTimeout time.Duration // Max time for the opening handshake
	WriteTimeout     time.Duration // Write deadline for sends
	ReadLimit        int64         // Max inbound frame size in bytes (0 = unlimited)
	UserAgent        string        // Sent on the handshake request
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Channel           string        // Symbol or OverviewChannel; used as a metrics label
	HeartbeatInterval time.Duration // Interval between heartbeat frames
	HeartbeatMessage  string        // Heartbeat payload
	ReconnectDelay    time.Duration // Fixed wait after a close before reconnecting
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HeartbeatInterval: 10 * time.Second,
		HeartbeatMessage:  "ping",
		ReconnectDelay:    3 * time.Second,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State               model.ConnectionState `json:"state"`
	Generation          uint64                `json:"generation"`
	FramesReceived      int64                 `json:"frames_received"`
	FramesDropped       int64                 `json:"frames_dropped"`
	HeartbeatsSent      int64                 `json:"heartbeats_sent"`
	ReconnectsScheduled int64                 `json:"reconnects_scheduled"`
}
