// Package looper provides the single logical thread every acquisition
// session runs on. Collaborators that block (serial reads, HTTP calls,
// terminal prompts) do so on their own goroutines and hand results back
// through Post.
package looper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Looper runs posted callbacks one at a time on the goroutine that called Run.
type Looper struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	stopped bool
	logger  *zap.Logger
}

// New creates an idle looper. Callbacks posted before Run are queued.
func New(logger *zap.Logger) *Looper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Looper{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Run drains the queue until ctx is cancelled.
func (l *Looper) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.pending = nil
			l.mu.Unlock()
			return ctx.Err()
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.pending) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.pending[0]
			l.pending[0] = nil
			l.pending = l.pending[1:]
			l.mu.Unlock()

			l.dispatch(fn)
		}
	}
}

func (l *Looper) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("looper callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Post queues fn. It reports false once the looper has stopped.
func (l *Looper) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// PostDelayed queues fn after d. The returned cancel func is idempotent and
// also suppresses a callback that was already queued but has not run yet.
func (l *Looper) PostDelayed(fn func(), d time.Duration) func() {
	var cancelled atomic.Bool
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled.Load() {
				fn()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		t.Stop()
	}
}

// Now returns the wall clock.
func (l *Looper) Now() time.Time { return time.Now() }

// Call runs fn on the loop and waits for it to finish.
func (l *Looper) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return context.Canceled
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
