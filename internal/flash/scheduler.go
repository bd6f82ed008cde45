// Package flash derives short-lived up/down highlights from price moves.
//
// A trigger records a FlashEntry and schedules its removal after the flash
// window. All mutation happens on the event loop; readers on other goroutines
// see a consistent view through Get.
package flash

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/livequote/internal/eventloop"
	"github.com/rickgao/livequote/internal/lifecycle"
	"github.com/rickgao/livequote/internal/model"
)

// DefaultWindow is how long a flash stays visible.
const DefaultWindow = 600 * time.Millisecond

// Policy decides what happens when a symbol is re-triggered while its
// previous flash is still showing.
type Policy string

const (
	// PolicyIndependent keeps one removal timer per trigger. The first timer
	// to fire clears the entry, even if a newer trigger replaced it.
	PolicyIndependent Policy = "independent"

	// PolicyLatest only lets the timer belonging to the current entry
	// remove it.
	PolicyLatest Policy = "latest"
)

// Config configures a Scheduler.
type Config struct {
	Window time.Duration
	Policy Policy
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window < 0 {
		return errors.New("flash window must not be negative")
	}
	switch c.Policy {
	case "", PolicyIndependent, PolicyLatest:
		return nil
	default:
		return fmt.Errorf("unknown flash policy %q", c.Policy)
	}
}

// Scheduler tracks the active flash entry per symbol.
type Scheduler struct {
	cfg    Config
	loop   eventloop.Loop
	timers *eventloop.Timers
	guard  *lifecycle.Guard
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]model.FlashEntry
}

// NewScheduler creates a scheduler whose timers run on loop. Triggers are
// ignored once guard is inactive.
func NewScheduler(cfg Config, loop eventloop.Loop, guard *lifecycle.Guard, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyIndependent
	}

	return &Scheduler{
		cfg:     cfg,
		loop:    loop,
		timers:  eventloop.NewTimers(loop),
		guard:   guard,
		logger:  logger,
		entries: make(map[string]model.FlashEntry),
	}
}

// Trigger records a flash for symbol and schedules its removal.
// FlashNone is ignored. Must be called on the loop.
func (s *Scheduler) Trigger(symbol string, dir model.FlashDirection) {
	if dir == model.FlashNone || !s.guard.Active() {
		return
	}

	expiresAt := s.loop.Now().Add(s.cfg.Window)

	s.mu.Lock()
	s.entries[symbol] = model.FlashEntry{
		Symbol:    symbol,
		Direction: dir,
		ExpiresAt: expiresAt,
	}
	s.mu.Unlock()

	s.timers.After(s.cfg.Window, func() {
		s.expire(symbol, expiresAt)
	})
}

func (s *Scheduler) expire(symbol string, expiresAt time.Time) {
	if !s.guard.Active() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[symbol]
	if !ok {
		return
	}
	if s.cfg.Policy == PolicyLatest && !cur.ExpiresAt.Equal(expiresAt) {
		return
	}
	delete(s.entries, symbol)
}

// Get returns the current flash entry for symbol, if any.
func (s *Scheduler) Get(symbol string) (model.FlashEntry, bool) {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()

	if !ok || !s.loop.Now().Before(e.ExpiresAt) {
		return model.FlashEntry{}, false
	}
	return e, true
}

// Direction returns the flash direction for symbol, FlashNone if there is none.
func (s *Scheduler) Direction(symbol string) model.FlashDirection {
	e, ok := s.Get(symbol)
	if !ok {
		return model.FlashNone
	}
	return e.Direction
}

// Active returns every unexpired flash entry.
func (s *Scheduler) Active() []model.FlashEntry {
	now := s.loop.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FlashEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if now.Before(e.ExpiresAt) {
			out = append(out, e)
		}
	}
	return out
}

// Stop cancels every pending removal timer. Must be called on the loop.
func (s *Scheduler) Stop() {
	n := s.timers.StopAll()
	s.logger.Debug("flash timers cancelled", "count", n)
}
