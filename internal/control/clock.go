package control

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time for components that arm timers, so tests can drive
// them deterministically.
type Clock interface {
	Now() time.Time
	// AfterFunc runs fn on an arbitrary goroutine after d. The returned
	// timer's Stop reports whether the call was prevented.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancelable pending call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// ManualClock is a deterministic clock for tests. Time only moves when
// Advance is called; due timers fire synchronously on the advancing
// goroutine, in deadline order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

// NewManualClock returns a manual clock starting at an arbitrary fixed time.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(1700000000, 0)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward, firing every timer due on the way.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		sort.Slice(c.pending, func(i, j int) bool {
			return c.pending[i].when.Before(c.pending[j].when)
		})
		var next *manualTimer
		for _, t := range c.pending {
			if !t.stopped && !t.when.After(target) {
				next = t
				break
			}
		}
		if next == nil {
			break
		}
		c.now = next.when
		next.stopped = true
		c.remove(next)
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (c *ManualClock) remove(t *manualTimer) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

type manualTimer struct {
	clock   *ManualClock
	when    time.Time
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.clock.remove(t)
	return true
}
