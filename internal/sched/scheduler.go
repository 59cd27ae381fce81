// Package sched owns the debounce timers that turn sustained hover into an
// expand request and hover loss into a delayed collapse request.
package sched

import (
	"log/slog"
	"time"

	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/events"
)

type timerKind int

const (
	kindExpand timerKind = iota
	kindCollapse
)

func (k timerKind) String() string {
	if k == kindExpand {
		return "expand"
	}
	return "collapse"
}

type pendingKey struct {
	monitorID string
	kind      timerKind
}

// Delays holds the scheduler's debounce settings. Changing them affects
// timers armed afterwards; in-flight timers run out with their original
// delay.
type Delays struct {
	Expand   time.Duration
	Collapse time.Duration
	Grace    time.Duration
}

// Scheduler maintains at most one pending timer per (monitor, kind).
// Arming always cancels any prior pending timer of the same kind, never
// stacks. All methods must be called from the control loop; fired timers
// marshal back onto it before publishing.
type Scheduler struct {
	clock  control.Clock
	exec   control.Executor
	bus    *events.Bus
	logger *slog.Logger

	delays  Delays
	pending map[pendingKey]*control.Handle
}

// New creates a scheduler publishing to bus.
func New(clock control.Clock, exec control.Executor, bus *events.Bus, delays Delays, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		clock:   clock,
		exec:    exec,
		bus:     bus,
		logger:  logger,
		delays:  delays,
		pending: make(map[pendingKey]*control.Handle),
	}
}

// SetDelays replaces the debounce settings.
func (s *Scheduler) SetDelays(d Delays) { s.delays = d }

// ArmExpand schedules an ExpandRequested for the monitor after the expand
// delay. check runs at fire time; the request is dropped if it returns
// false (state re-checked, never assumed).
func (s *Scheduler) ArmExpand(monitorID string, check func() bool) {
	s.arm(monitorID, kindExpand, s.delays.Expand, check, func() {
		s.bus.Publish(events.ExpandRequested{MonitorID: monitorID})
	})
}

// ArmCollapse schedules a CollapseRequested after the collapse delay.
func (s *Scheduler) ArmCollapse(monitorID string, check func() bool) {
	s.arm(monitorID, kindCollapse, s.delays.Collapse, check, func() {
		s.bus.Publish(events.CollapseRequested{MonitorID: monitorID})
	})
}

// ArmGraceCollapse schedules a CollapseRequested after the click-outside
// grace window, long enough for a drag-out-of-the-window gesture to
// establish itself first.
func (s *Scheduler) ArmGraceCollapse(monitorID string, check func() bool) {
	s.arm(monitorID, kindCollapse, s.delays.Grace, check, func() {
		s.bus.Publish(events.CollapseRequested{MonitorID: monitorID})
	})
}

func (s *Scheduler) arm(monitorID string, kind timerKind, delay time.Duration, check func() bool, fire func()) {
	key := pendingKey{monitorID, kind}
	if old, ok := s.pending[key]; ok {
		old.Cancel()
	}

	if delay <= 0 {
		// Zero debounce still goes through the loop queue once, so the
		// triggering event finishes processing first.
		delay = 0
	}

	var h *control.Handle
	h = control.Schedule(s.clock, s.exec, delay, func() {
		if s.pending[key] == h {
			delete(s.pending, key)
		}
		if check != nil && !check() {
			s.logger.Debug("timer fired stale, dropped", "monitor", monitorID, "kind", kind.String())
			return
		}
		fire()
	})
	s.pending[key] = h
}

// CancelExpand invalidates a pending expand timer, if any.
func (s *Scheduler) CancelExpand(monitorID string) {
	s.cancel(pendingKey{monitorID, kindExpand})
}

// CancelCollapse invalidates a pending collapse timer, if any.
func (s *Scheduler) CancelCollapse(monitorID string) {
	s.cancel(pendingKey{monitorID, kindCollapse})
}

// CancelAll drops every pending timer for a monitor. Called when the
// monitor is removed.
func (s *Scheduler) CancelAll(monitorID string) {
	s.CancelExpand(monitorID)
	s.CancelCollapse(monitorID)
}

func (s *Scheduler) cancel(key pendingKey) {
	if h, ok := s.pending[key]; ok {
		h.Cancel()
		delete(s.pending, key)
	}
}
