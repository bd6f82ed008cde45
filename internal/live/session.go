package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/livequote/internal/connection"
	"github.com/rickgao/livequote/internal/eventloop"
	"github.com/rickgao/livequote/internal/flash"
	"github.com/rickgao/livequote/internal/lifecycle"
	"github.com/rickgao/livequote/internal/metrics"
	"github.com/rickgao/livequote/internal/model"
	"github.com/rickgao/livequote/internal/quotes"
	"github.com/rickgao/livequote/internal/recorder"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
)

// SnapshotSource loads the initial quotes for a channel.
type SnapshotSource interface {
	FetchQuotes(ctx context.Context, channel string) ([]model.Quote, error)
}

// TickRecorder receives every reconciled quote. Record must not block.
type TickRecorder interface {
	Record(t recorder.Tick) bool
}

// DialerFactory builds the transport dialer once the session's loop exists.
type DialerFactory func(loop eventloop.Loop, logger *slog.Logger) connection.Dialer

// Config configures a Session.
type Config struct {
	ID              uuid.UUID
	Channel         string
	URL             string // Live channel URL
	Manager         connection.ManagerConfig
	Client          connection.ClientConfig
	Flash           flash.Config
	LoopBuffer      int
	SnapshotTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the overview channel.
func DefaultConfig() Config {
	return Config{
		Channel:         connection.OverviewChannel,
		Manager:         connection.DefaultManagerConfig(),
		Client:          connection.DefaultClientConfig(),
		Flash:           flash.Config{Window: flash.DefaultWindow, Policy: flash.PolicyIndependent},
		LoopBuffer:      1024,
		SnapshotTimeout: 10 * time.Second,
	}
}

// Stats is a point-in-time view of the session.
type Stats struct {
	ID         uuid.UUID               `json:"id"`
	Channel    string                  `json:"channel"`
	Symbols    int                     `json:"symbols"`
	Flashing   int                     `json:"flashing"`
	Updates    int64                   `json:"updates"`
	Recorded   int64                   `json:"recorded"`
	Unrecorded int64                   `json:"unrecorded"`
	Connection connection.ManagerStats `json:"connection"`
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the WebSocket dialer.
func WithDialer(f DialerFactory) Option {
	return func(s *Session) {
		s.dialerFactory = f
	}
}

// WithRecorder forwards reconciled quotes to r.
func WithRecorder(r TickRecorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// Session owns one live view of a channel: its loop, lifecycle guard, quote
// store, flash scheduler and connection manager.
type Session struct {
	cfg      Config
	logger   *slog.Logger
	loop     *eventloop.Runner
	guard    *lifecycle.Guard
	store    *quotes.Store
	flash    *flash.Scheduler
	manager  connection.Manager
	snapshot SnapshotSource
	recorder TickRecorder

	dialerFactory DialerFactory

	started  atomic.Bool
	stopOnce sync.Once
	runDone  chan error

	updates    atomic.Int64
	recorded   atomic.Int64
	unrecorded atomic.Int64
}

// NewSession creates a session. snapshot may be nil.
func NewSession(cfg Config, snapshot SnapshotSource, logger *slog.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Channel == "" {
		cfg.Channel = connection.OverviewChannel
	}
	if cfg.URL == "" {
		url, err := connection.LiveURL("", "", cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("build live url: %w", err)
		}
		cfg.URL = url
	}
	if cfg.Flash.Window <= 0 {
		cfg.Flash.Window = flash.DefaultWindow
	}
	if cfg.Flash.Policy == "" {
		cfg.Flash.Policy = flash.PolicyIndependent
	}
	if err := cfg.Flash.Validate(); err != nil {
		return nil, err
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = DefaultConfig().SnapshotTimeout
	}
	cfg.Manager.Channel = cfg.Channel

	logger = logger.With("session_id", cfg.ID.String(), "channel", cfg.Channel)

	s := &Session{
		cfg:      cfg,
		logger:   logger,
		loop:     eventloop.NewRunner(cfg.LoopBuffer, logger),
		guard:    lifecycle.NewGuard(),
		store:    quotes.NewStore(),
		snapshot: snapshot,
		runDone:  make(chan error, 1),
		dialerFactory: func(loop eventloop.Loop, logger *slog.Logger) connection.Dialer {
			return connection.NewDialer(cfg.Client, loop, logger)
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.flash = flash.NewScheduler(cfg.Flash, s.loop, s.guard, logger)
	s.manager = connection.NewManager(cfg.Manager, s.loop, s.dialerFactory(s.loop, logger), s.guard, s, logger)

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.cfg.ID
}

// Start activates the session, loads the snapshot and opens the live
// connection. A failed snapshot is logged and not retried; the live
// connection is opened regardless.
func (s *Session) Start(ctx context.Context) error {
	if err := s.guard.Activate(); err != nil {
		return ErrStopped
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.logger.Info("starting session", "url", s.cfg.URL)

	go func() {
		s.runDone <- s.loop.Run(context.Background())
	}()

	s.loadSnapshot(ctx)

	var connectErr error
	if err := s.loop.Do(ctx, func() {
		connectErr = s.manager.Connect(s.cfg.URL)
	}); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if connectErr != nil {
		return fmt.Errorf("connect: %w", connectErr)
	}

	return nil
}

func (s *Session) loadSnapshot(ctx context.Context) {
	if s.snapshot == nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.SnapshotTimeout)
	defer cancel()

	start := time.Now()
	qs, err := s.snapshot.FetchQuotes(fetchCtx, s.cfg.Channel)
	if err != nil {
		metrics.SnapshotErrors.WithLabelValues(s.cfg.Channel).Inc()
		s.logger.Warn("snapshot load failed", "error", err)
		return
	}

	var loaded int
	if err := s.loop.Do(ctx, func() {
		if !s.guard.Active() {
			return
		}
		loaded = s.store.Load(qs)
		metrics.QuotesTracked.WithLabelValues(s.cfg.Channel).Set(float64(s.store.Len()))
	}); err != nil {
		s.logger.Warn("snapshot not applied", "error", err)
		return
	}

	s.logger.Info("snapshot loaded",
		"quotes", loaded,
		"duration", time.Since(start),
	)
}

// Stop tears the connection down, cancels pending flash timers and stops
// the loop. Safe to call more than once.
func (s *Session) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if !s.started.Load() {
			s.guard.Deactivate()
			return
		}

		s.logger.Info("stopping session")

		if doErr := s.loop.Do(ctx, func() {
			s.manager.Teardown()
			s.flash.Stop()
		}); doErr != nil && !errors.Is(doErr, eventloop.ErrStopped) {
			err = fmt.Errorf("teardown: %w", doErr)
		}
		s.guard.Deactivate()
		s.loop.Close()

		select {
		case <-s.runDone:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}

		s.logger.Info("session stopped",
			"updates", s.updates.Load(),
			"symbols", s.store.Len(),
		)
	})
	return err
}

// Done is closed once the session's loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}

// HandleUpdate reconciles one live update. Runs on the loop.
func (s *Session) HandleUpdate(u model.Update) {
	if !s.guard.Active() {
		return
	}

	dir := s.store.Apply(u)
	s.updates.Add(1)

	if dir != model.FlashNone {
		s.flash.Trigger(u.Symbol, dir)
		metrics.FlashesTriggered.WithLabelValues(s.cfg.Channel, dir.String()).Inc()
	}
	metrics.QuotesTracked.WithLabelValues(s.cfg.Channel).Set(float64(s.store.Len()))

	if s.recorder == nil {
		return
	}
	q, ok := s.store.Priced(u.Symbol)
	if !ok {
		return
	}
	if s.recorder.Record(recorder.Tick{Quote: q, Flash: dir, Generation: u.Generation}) {
		s.recorded.Add(1)
	} else {
		s.unrecorded.Add(1)
	}
}

// Quotes returns every known quote sorted by symbol.
func (s *Session) Quotes() []model.Quote {
	return s.store.Snapshot()
}

// Quote returns the quote for symbol.
func (s *Session) Quote(symbol string) (model.Quote, bool) {
	return s.store.Get(symbol)
}

// Flash returns the visible flash direction for symbol.
func (s *Session) Flash(symbol string) model.FlashDirection {
	return s.flash.Direction(symbol)
}

// Flashes returns every visible flash.
func (s *Session) Flashes() []model.FlashEntry {
	return s.flash.Active()
}

// Connected reports whether the live connection is open.
func (s *Session) Connected() bool {
	return s.manager.Connected()
}

// State returns the connection state.
func (s *Session) State() model.ConnectionState {
	return s.manager.State()
}

// Stats returns session counters.
func (s *Session) Stats() Stats {
	return Stats{
		ID:         s.cfg.ID,
		Channel:    s.cfg.Channel,
		Symbols:    s.store.Len(),
		Flashing:   len(s.flash.Active()),
		Updates:    s.updates.Load(),
		Recorded:   s.recorded.Load(),
		Unrecorded: s.unrecorded.Load(),
		Connection: s.manager.Stats(),
	}
}
