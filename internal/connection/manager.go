package connection

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/livequote/internal/eventloop"
	"github.com/rickgao/livequote/internal/lifecycle"
	"github.com/rickgao/livequote/internal/metrics"
	"github.com/rickgao/livequote/internal/model"
)

// Manager owns the single live connection of a client instance.
//
// Connect and Teardown must be called on the event loop. Connected, State,
// Generation and Stats may be called from any goroutine.
type Manager interface {
	// Connect opens a new underlying connection to url.
	Connect(url string) error

	// Teardown stops everything. Idempotent; the manager cannot be reused.
	Teardown()

	// Connected reports whether the connection is open.
	Connected() bool

	// State returns the current connection state.
	State() model.ConnectionState

	// Generation returns the active connection generation.
	Generation() uint64

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// transitions lists the legal state changes.
var transitions = map[model.ConnectionState][]model.ConnectionState{
	model.Disconnected: {model.Connecting},
	model.Connecting:   {model.Connected, model.Disconnected, model.Closing},
	model.Connected:    {model.Disconnected, model.Closing},
	model.Closing:      {model.Disconnected},
}

func canTransition(from, to model.ConnectionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// manager implements the Manager interface.
type manager struct {
	cfg     ManagerConfig
	loop    eventloop.Loop
	dialer  Dialer
	guard   *lifecycle.Guard
	handler UpdateHandler
	logger  *slog.Logger

	timers *eventloop.Timers

	// Owned by the event loop
	state      model.ConnectionState
	url        string
	conn       Conn
	generation uint64
	heartbeat  *eventloop.Timer
	reconnect  *eventloop.Timer
	tornDown   bool

	// Published for readers on other goroutines
	pubState       atomic.Int32
	pubGeneration  atomic.Uint64
	framesReceived atomic.Int64
	framesDropped  atomic.Int64
	heartbeatsSent atomic.Int64
	reconnects     atomic.Int64
}

// NewManager creates a connection manager. Every callback is ignored once
// guard is inactive.
func NewManager(cfg ManagerConfig, loop eventloop.Loop, dialer Dialer, guard *lifecycle.Guard, handler UpdateHandler, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultManagerConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.HeartbeatMessage == "" {
		cfg.HeartbeatMessage = defaults.HeartbeatMessage
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}

	m := &manager{
		cfg:     cfg,
		loop:    loop,
		dialer:  dialer,
		guard:   guard,
		handler: handler,
		logger:  logger,
		timers:  eventloop.NewTimers(loop),
		state:   model.Disconnected,
	}
	m.publishState()

	return m
}

// Connect opens a new underlying connection to url.
func (m *manager) Connect(url string) error {
	if m.tornDown {
		return ErrTornDown
	}
	if !m.guard.Active() {
		return ErrInactive
	}
	if m.state != model.Disconnected {
		return ErrAlreadyConnected
	}

	if err := m.transition(model.Connecting); err != nil {
		return err
	}

	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}

	m.url = url
	m.generation++
	m.pubGeneration.Store(m.generation)

	m.logger.Info("connecting", "url", url, "generation", m.generation)

	m.conn = m.dialer.Dial(url, &connHandler{m: m, gen: m.generation})
	return nil
}

// Teardown stops the heartbeat and any pending reconnect, closes the
// connection and deactivates the guard.
func (m *manager) Teardown() {
	if m.tornDown {
		return
	}
	m.tornDown = true
	m.guard.Deactivate()

	if m.state == model.Connecting || m.state == model.Connected {
		m.transition(model.Closing)
	}

	cancelled := m.timers.StopAll()
	m.heartbeat = nil
	m.reconnect = nil

	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debug("close on teardown", "error", err)
		}
		m.conn = nil
	}

	if m.state == model.Closing {
		m.transition(model.Disconnected)
	}

	m.logger.Info("connection torn down", "generation", m.generation, "timers_cancelled", cancelled)
}

// Connected reports whether the connection is open.
func (m *manager) Connected() bool {
	return m.State() == model.Connected
}

// State returns the published connection state.
func (m *manager) State() model.ConnectionState {
	return model.ConnectionState(m.pubState.Load())
}

// Generation returns the active connection generation.
func (m *manager) Generation() uint64 {
	return m.pubGeneration.Load()
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	return ManagerStats{
		State:               m.State(),
		Generation:          m.Generation(),
		FramesReceived:      m.framesReceived.Load(),
		FramesDropped:       m.framesDropped.Load(),
		HeartbeatsSent:      m.heartbeatsSent.Load(),
		ReconnectsScheduled: m.reconnects.Load(),
	}
}

func (m *manager) transition(to model.ConnectionState) error {
	from := m.state
	if !canTransition(from, to) {
		m.logger.Error("rejected state transition", "from", from, "to", to)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	m.state = to
	m.publishState()
	m.logger.Debug("state transition", "from", from, "to", to, "generation", m.generation)
	return nil
}

func (m *manager) publishState() {
	m.pubState.Store(int32(m.state))
	metrics.ConnectionState.WithLabelValues(m.cfg.Channel).Set(float64(m.state))
}

// live reports whether events from generation gen may act on the manager.
func (m *manager) live(gen uint64) bool {
	return m.guard.Active() && !m.tornDown && gen == m.generation
}

func (m *manager) onOpen(gen uint64) {
	if !m.live(gen) {
		return
	}
	if err := m.transition(model.Connected); err != nil {
		return
	}

	m.logger.Info("connected", "generation", gen)
	m.startHeartbeat()
}

func (m *manager) onMessage(gen uint64, data []byte) {
	if !m.guard.Active() || m.tornDown {
		return
	}

	m.framesReceived.Add(1)
	metrics.FramesReceived.WithLabelValues(m.cfg.Channel).Inc()

	u, err := Decode(data)
	if err != nil {
		reason := metrics.ReasonMalformed
		if errors.Is(err, ErrMissingSymbol) {
			reason = metrics.ReasonMissingSymbol
		}
		m.drop(reason)
		m.logger.Debug("dropping frame", "reason", reason, "error", err)
		return
	}

	u.Generation = gen
	u.ReceivedAt = m.loop.Now()

	if u.Generation != m.generation {
		m.drop(metrics.ReasonStale)
		m.logger.Debug("dropping frame from stale generation",
			"symbol", u.Symbol,
			"frame_generation", u.Generation,
			"active_generation", m.generation,
		)
		return
	}

	m.handler.HandleUpdate(u)
}

func (m *manager) onError(gen uint64, err error) {
	if !m.live(gen) {
		return
	}

	m.logger.Warn("connection error", "generation", gen, "error", err)

	// The close event that follows drives the state change.
	if m.conn != nil {
		m.conn.Close()
	}
}

func (m *manager) onClose(gen uint64, code int, reason string) {
	if !m.live(gen) {
		return
	}

	m.stopHeartbeat()
	m.conn = nil

	if err := m.transition(model.Disconnected); err != nil {
		return
	}

	m.logger.Info("connection closed",
		"generation", gen,
		"code", code,
		"reason", reason,
		"reconnect_in", m.cfg.ReconnectDelay,
	)

	m.scheduleReconnect()
}

func (m *manager) scheduleReconnect() {
	if m.reconnect != nil && m.reconnect.Active() {
		return
	}

	m.reconnects.Add(1)
	metrics.ReconnectsScheduled.WithLabelValues(m.cfg.Channel).Inc()

	m.reconnect = m.timers.After(m.cfg.ReconnectDelay, func() {
		m.reconnect = nil
		if !m.guard.Active() || m.tornDown {
			return
		}
		if err := m.Connect(m.url); err != nil {
			m.logger.Debug("reconnect skipped", "error", err)
		}
	})
}

func (m *manager) startHeartbeat() {
	m.stopHeartbeat()

	var hb *eventloop.Timer
	hb = m.timers.Every(m.cfg.HeartbeatInterval, func() {
		if m.state != model.Connected || m.conn == nil || !m.conn.IsOpen() {
			hb.Stop()
			return
		}
		if err := m.conn.Send([]byte(m.cfg.HeartbeatMessage)); err != nil {
			m.logger.Debug("heartbeat failed", "error", err)
			return
		}
		m.heartbeatsSent.Add(1)
		metrics.HeartbeatsSent.WithLabelValues(m.cfg.Channel).Inc()
	})
	m.heartbeat = hb
}

func (m *manager) stopHeartbeat() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
}

func (m *manager) drop(reason string) {
	m.framesDropped.Add(1)
	metrics.FramesDropped.WithLabelValues(m.cfg.Channel, reason).Inc()
}

// connHandler routes transport events for one generation to the manager.
type connHandler struct {
	m   *manager
	gen uint64
}

func (h *connHandler) OnOpen()                         { h.m.onOpen(h.gen) }
func (h *connHandler) OnMessage(data []byte)           { h.m.onMessage(h.gen, data) }
func (h *connHandler) OnError(err error)               { h.m.onError(h.gen, err) }
func (h *connHandler) OnClose(code int, reason string) { h.m.onClose(h.gen, code, reason) }
