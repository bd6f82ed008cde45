package eventloop

import (
	"sync"
	"time"
)

// Loop executes callbacks serially.
type Loop interface {
	// Post queues fn to run on the loop.
	Post(fn func())

	// AfterFunc runs fn on the loop once d has elapsed, unless the
	// returned timer is stopped first.
	AfterFunc(d time.Duration, fn func()) *Timer

	// Now returns the loop's clock.
	Now() time.Time
}

// Timer is a revocable handle for a scheduled callback.
//
// Once Stop returns, the callback never runs, even if its firing was
// already queued on the loop.
type Timer struct {
	mu      sync.Mutex
	done    bool
	cancel  func()
	release func()
}

func newTimer() *Timer {
	return &Timer{}
}

// Stop revokes the timer. Returns false if it had already fired or been stopped.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	cancel := t.cancel
	release := t.release
	t.cancel = nil
	t.release = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if release != nil {
		release()
	}
	return true
}

// Active reports whether the timer may still fire.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.done
}

// setCancel installs the function that releases the underlying clock resource.
func (t *Timer) setCancel(cancel func()) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		cancel()
		return
	}
	t.cancel = cancel
	t.mu.Unlock()
}

// setRelease installs the function that drops the timer from its group
// once it is stopped.
func (t *Timer) setRelease(release func()) {
	t.mu.Lock()
	t.release = release
	t.mu.Unlock()
}

// claim marks a one-shot timer as fired. Returns false if it was stopped.
func (t *Timer) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.cancel = nil
	t.release = nil
	return true
}

// Timers is a group of timers owned by one component.
//
// Not safe for concurrent use; call it and stop its timers from the loop.
type Timers struct {
	loop    Loop
	active  map[*Timer]struct{}
	revoked bool
}

// NewTimers creates an empty group bound to loop.
func NewTimers(loop Loop) *Timers {
	return &Timers{
		loop:   loop,
		active: make(map[*Timer]struct{}),
	}
}

// After schedules fn once after d.
func (g *Timers) After(d time.Duration, fn func()) *Timer {
	if g.revoked {
		return stoppedTimer()
	}

	var t *Timer
	t = g.loop.AfterFunc(d, func() {
		delete(g.active, t)
		fn()
	})
	g.track(t)
	return t
}

// Every runs fn every d until the returned timer is stopped.
func (g *Timers) Every(d time.Duration, fn func()) *Timer {
	if g.revoked {
		return stoppedTimer()
	}

	handle := newTimer()
	g.track(handle)

	var arm func()
	arm = func() {
		next := g.loop.AfterFunc(d, func() {
			if !handle.Active() {
				return
			}
			fn()
			if handle.Active() {
				arm()
			}
		})
		handle.setCancel(func() { next.Stop() })
	}
	arm()

	return handle
}

// StopAll stops every timer in the group. The group stays revoked:
// later After/Every calls return already-stopped timers.
func (g *Timers) StopAll() int {
	g.revoked = true

	stopped := 0
	for t := range g.active {
		if t.Stop() {
			stopped++
		}
		delete(g.active, t)
	}
	return stopped
}

// Len returns the number of timers that may still fire.
func (g *Timers) Len() int {
	return len(g.active)
}

// track adds t to the group until it fires or is stopped.
func (g *Timers) track(t *Timer) {
	g.active[t] = struct{}{}
	t.setRelease(func() { delete(g.active, t) })
}

func stoppedTimer() *Timer {
	t := newTimer()
	t.done = true
	return t
}
