package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/livequote/internal/eventloop"
)

// wsDialer opens gorilla WebSocket connections and reports their events on
// an event loop.
type wsDialer struct {
	cfg    ClientConfig
	loop   eventloop.Loop
	logger *slog.Logger
}

// NewDialer creates a WebSocket Dialer whose handler callbacks run on loop.
func NewDialer(cfg ClientConfig, loop eventloop.Loop, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultClientConfig().HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultClientConfig().WriteTimeout
	}

	return &wsDialer{
		cfg:    cfg,
		loop:   loop,
		logger: logger,
	}
}

// Dial starts the handshake in the background and returns immediately.
func (d *wsDialer) Dial(url string, h Handler) Conn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &wsConn{
		cfg:     d.cfg,
		loop:    d.loop,
		logger:  d.logger.With("url", url),
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.run(url)

	return c
}

// wsConn implements Conn over a gorilla connection.
type wsConn struct {
	cfg     ClientConfig
	loop    eventloop.Loop
	logger  *slog.Logger
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc

	// Write serialization
	writeMu sync.Mutex

	// State
	mu     sync.RWMutex
	conn   *websocket.Conn
	open   bool
	closed bool

	closeOnce sync.Once
}

func (c *wsConn) run(url string) {
	defer c.cancel()

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(c.ctx, url, header)
	if err != nil {
		if !c.isClosed() {
			c.post(func() { c.handler.OnError(fmt.Errorf("dial: %w", err)) })
		}
		c.finish(websocket.CloseAbnormalClosure, err.Error())
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		c.finish(websocket.CloseNormalClosure, "closed during handshake")
		return
	}
	c.conn = conn
	c.open = true
	c.mu.Unlock()

	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}

	// Server pings get a pong; gorilla's default handler would race our writes.
	conn.SetPingHandler(func(data string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	c.logger.Debug("websocket connected")
	c.post(c.handler.OnOpen)

	c.readLoop(conn)
}

// readLoop posts every inbound frame to the loop until the connection fails
// or is closed.
func (c *wsConn) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closedLocally := c.closed
			c.open = false
			c.mu.Unlock()

			code, reason := closeInfo(err)

			var ce *websocket.CloseError
			if !closedLocally && !errors.As(err, &ce) {
				c.post(func() { c.handler.OnError(err) })
			}
			c.finish(code, reason)
			return
		}

		c.post(func() { c.handler.OnMessage(data) })
	}
}

// Close gracefully closes the connection.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.open = false
	conn := c.conn
	c.mu.Unlock()

	// Abort a handshake still in progress
	c.cancel()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	return conn.Close()
}

// Send writes a text frame.
func (c *wsConn) Send(data []byte) error {
	c.mu.RLock()
	if !c.open {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// IsOpen returns the current connection state.
func (c *wsConn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

func (c *wsConn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *wsConn) post(fn func()) {
	c.loop.Post(fn)
}

// finish delivers the single OnClose for this connection.
func (c *wsConn) finish(code int, reason string) {
	c.closeOnce.Do(func() {
		c.logger.Debug("websocket closed", "code", code, "reason", reason)
		c.post(func() { c.handler.OnClose(code, reason) })
	})
}

func closeInfo(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
