// Package control provides the serialized control context that owns all
// mutable controller state. Pollers, timers, and the watchdog run on their
// own schedules but marshal their findings onto the loop before touching
// shared state; within the loop, work runs in arrival order.
package control

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Executor runs funcs on the control context. Loop implements it; tests
// substitute an inline executor.
type Executor interface {
	Post(fn func())
}

// Loop is a single-goroutine work queue.
type Loop struct {
	queue chan func()

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewLoop returns a loop ready to Run.
func NewLoop() *Loop {
	return &Loop{queue: make(chan func(), 256)}
}

// Run drains the queue until ctx is canceled, then finishes any work
// already queued and returns. It must be called exactly once.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.mu.Unlock()
			// Drain whatever was queued before cancellation.
			for {
				select {
				case fn := <-l.queue:
					fn()
				default:
					return
				}
			}
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post queues fn to run on the loop. Safe from any goroutine. Posts after
// shutdown are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}
	select {
	case l.queue <- fn:
	default:
		// Queue full: block rather than drop; callers are pollers that
		// can afford the backpressure.
		l.queue <- fn
	}
}

// Call runs fn on the loop and waits for it to finish. Must not be called
// from the loop itself.
func (l *Loop) Call(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	<-done
}

// Handle is a cancelable scheduled work item. Cancel is idempotent and
// guarantees the work will not run after it returns from the loop's point
// of view: a fire that already won the race is suppressed by the flag.
type Handle struct {
	canceled atomic.Bool
	timer    Timer
}

// Cancel prevents the work from running.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.canceled.Store(true)
	if h.timer != nil {
		h.timer.Stop()
	}
}

// Canceled reports whether Cancel was called.
func (h *Handle) Canceled() bool {
	return h != nil && h.canceled.Load()
}

// Schedule arms a one-shot timer that posts fn onto exec after d. The
// returned handle must be stored by the owner and canceled on teardown;
// replacing a pending item means canceling the old handle first, never
// stacking.
func Schedule(clock Clock, exec Executor, d time.Duration, fn func()) *Handle {
	h := &Handle{}
	h.timer = clock.AfterFunc(d, func() {
		exec.Post(func() {
			if h.canceled.Load() {
				return
			}
			fn()
		})
	})
	return h
}
