// Package lifecycle provides the active/inactive flag that gates every
// callback belonging to a presentation context.
package lifecycle

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrDeactivated is returned when activating a guard that has already been
// deactivated.
var ErrDeactivated = errors.New("guard already deactivated")

const (
	stateNew int32 = iota
	stateActive
	stateInactive
)

// Guard is a one-way switch: new -> active -> inactive.
// Once inactive it never becomes active again.
type Guard struct {
	state  atomic.Int32
	done   chan struct{}
	doneMu sync.Once
}

// NewGuard returns a guard that has not been activated yet.
func NewGuard() *Guard {
	return &Guard{done: make(chan struct{})}
}

// Activate marks the guard active. Calling it again while active is a no-op.
func (g *Guard) Activate() error {
	if g.state.CompareAndSwap(stateNew, stateActive) {
		return nil
	}
	if g.state.Load() == stateActive {
		return nil
	}
	return ErrDeactivated
}

// Deactivate marks the guard inactive. Returns true only for the call that
// performed the transition.
func (g *Guard) Deactivate() bool {
	for {
		cur := g.state.Load()
		if cur == stateInactive {
			return false
		}
		if g.state.CompareAndSwap(cur, stateInactive) {
			g.doneMu.Do(func() { close(g.done) })
			return true
		}
	}
}

// Active reports whether callbacks may still mutate state.
func (g *Guard) Active() bool {
	return g.state.Load() == stateActive
}

// Done is closed once the guard is deactivated.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}
