package eventloop

import (
	"sync"
	"time"
)

// Manual is a Loop driven by the caller. Time only moves on Advance and
// callbacks only run on RunPending/Advance, on the caller's goroutine.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    uint64
}

type manualTimer struct {
	when  time.Time
	seq   uint64
	timer *Timer
	fn    func()
}

// NewManual creates a manual loop starting at start.
func NewManual(start time.Time) *Manual {
	if start.IsZero() {
		start = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	}
	return &Manual{now: start}
}

// Post queues fn for the next RunPending.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// AfterFunc schedules fn at Now()+d on the virtual clock.
func (m *Manual) AfterFunc(d time.Duration, fn func()) *Timer {
	t := newTimer()

	m.mu.Lock()
	m.seq++
	mt := &manualTimer{
		when:  m.now.Add(d),
		seq:   m.seq,
		timer: t,
		fn:    fn,
	}
	m.timers = append(m.timers, mt)
	m.mu.Unlock()

	t.setCancel(func() { m.remove(mt) })
	return t
}

// Now returns the virtual clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// RunPending runs posted callbacks until the queue is empty.
// Returns the number executed.
func (m *Manual) RunPending() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
		n++
	}
}

// Advance moves the clock forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.RunPending()

		m.mu.Lock()
		next := m.popDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			break
		}
		if next.when.After(m.now) {
			m.now = next.when
		}
		m.mu.Unlock()

		if next.timer.claim() {
			next.fn()
		}
	}

	m.RunPending()
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// popDue removes and returns the earliest timer due at or before target.
// Must be called with mu held.
func (m *Manual) popDue(target time.Time) *manualTimer {
	idx := -1
	for i, mt := range m.timers {
		if mt.when.After(target) {
			continue
		}
		if idx == -1 || mt.when.Before(m.timers[idx].when) ||
			(mt.when.Equal(m.timers[idx].when) && mt.seq < m.timers[idx].seq) {
			idx = i
		}
	}
	if idx == -1 {
		return nil
	}

	mt := m.timers[idx]
	m.timers = append(m.timers[:idx], m.timers[idx+1:]...)
	return mt
}

func (m *Manual) remove(target *manualTimer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mt := range m.timers {
		if mt == target {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}
