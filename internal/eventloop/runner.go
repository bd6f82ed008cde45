package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Do once the runner has exited.
var ErrStopped = errors.New("event loop stopped")

// Runner is a Loop backed by a single goroutine.
type Runner struct {
	logger *slog.Logger

	queue chan func()
	quit  chan struct{}
	done  chan struct{}

	closeOnce sync.Once
}

// NewRunner creates a runner whose queue holds up to bufferSize callbacks.
// Posting to a full queue blocks the poster, not the loop.
func NewRunner(bufferSize int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize < 1 {
		bufferSize = 1
	}

	return &Runner{
		logger: logger,
		queue:  make(chan func(), bufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run executes queued callbacks until ctx is cancelled or Close is called.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.quit:
			return nil
		case fn := <-r.queue:
			r.invoke(fn)
		}
	}
}

// Close stops the loop. Callbacks still queued are discarded.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
	})
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Post queues fn. Dropped if the loop has stopped.
func (r *Runner) Post(fn func()) {
	select {
	case r.queue <- fn:
	case <-r.quit:
	case <-r.done:
	}
}

// Do runs fn on the loop and waits for it to return.
// Must not be called from the loop itself.
func (r *Runner) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	r.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrStopped
	case <-r.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc schedules fn on the loop after d.
func (r *Runner) AfterFunc(d time.Duration, fn func()) *Timer {
	t := newTimer()
	rt := time.AfterFunc(d, func() {
		r.Post(func() {
			if t.claim() {
				fn()
			}
		})
	})
	t.setCancel(func() { rt.Stop() })
	return t
}

// Now returns wall-clock time.
func (r *Runner) Now() time.Time {
	return time.Now()
}

func (r *Runner) invoke(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("event loop callback panicked", "panic", p)
		}
	}()
	fn()
}
