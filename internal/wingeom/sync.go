// Package wingeom applies surface height changes to the hosting windows.
// Requests are throttled and coalesced: under a burst, exactly one frame
// change lands, carrying the latest requested height.
package wingeom

import (
	"log/slog"
	"math"
	"time"

	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/events"
	"github.com/edgedock/edgedock/internal/geometry"
)

// ApplyFunc applies a frame to a monitor's hosting window.
type ApplyFunc func(monitorID string, frame geometry.Rect) error

// FrameFunc computes the hosting window frame for a height.
type FrameFunc func(monitorID string, height float64) geometry.Rect

type entry struct {
	// expected is the durable source of truth, written before any frame
	// mutation and re-read when a deferred apply fires.
	expected      float64
	applied       float64
	lastAppliedAt time.Time
	pending       *control.Handle
}

// Synchronizer tracks one WindowGeometry per monitor. All methods run on
// the control loop.
type Synchronizer struct {
	clock  control.Clock
	exec   control.Executor
	bus    *events.Bus
	logger *slog.Logger

	throttle time.Duration
	frame    FrameFunc
	apply    ApplyFunc

	entries map[string]*entry
}

// New creates a synchronizer.
func New(clock control.Clock, exec control.Executor, bus *events.Bus,
	throttle time.Duration, frame FrameFunc, apply ApplyFunc, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		clock:    clock,
		exec:     exec,
		bus:      bus,
		logger:   logger,
		throttle: throttle,
		frame:    frame,
		apply:    apply,
		entries:  make(map[string]*entry),
	}
}

// SetThrottle replaces the minimum spacing between applied updates.
func (s *Synchronizer) SetThrottle(d time.Duration) { s.throttle = d }

// Register starts tracking a monitor with its current height.
func (s *Synchronizer) Register(monitorID string, height float64) {
	s.entries[monitorID] = &entry{expected: height, applied: height}
}

// Remove stops tracking a monitor and cancels any deferred update.
func (s *Synchronizer) Remove(monitorID string) {
	if e, ok := s.entries[monitorID]; ok {
		e.pending.Cancel()
		delete(s.entries, monitorID)
	}
}

// Expected returns the expected height for a monitor.
func (s *Synchronizer) Expected(monitorID string) (float64, bool) {
	e, ok := s.entries[monitorID]
	if !ok {
		return 0, false
	}
	return e.expected, true
}

// Applied returns the last applied height for a monitor.
func (s *Synchronizer) Applied(monitorID string) (float64, bool) {
	e, ok := s.entries[monitorID]
	if !ok {
		return 0, false
	}
	return e.applied, true
}

// RequestHeight records the wanted height and applies it, throttled. The
// expected height is written immediately so the watchdog sees it even
// while the apply is deferred.
func (s *Synchronizer) RequestHeight(monitorID string, height float64) {
	e, ok := s.entries[monitorID]
	if !ok {
		s.logger.Debug("height request for unknown monitor", "monitor", monitorID)
		return
	}

	e.expected = height

	if e.pending != nil && !e.pending.Canceled() {
		// A deferred apply is already scheduled; it re-reads expected at
		// fire time, so the latest value wins without queueing another.
		return
	}

	elapsed := s.clock.Now().Sub(e.lastAppliedAt)
	if elapsed < s.throttle {
		wait := s.throttle - elapsed
		e.pending = control.Schedule(s.clock, s.exec, wait, func() {
			e.pending = nil
			s.applyNow(monitorID, e)
		})
		return
	}

	s.applyNow(monitorID, e)
}

// ForceApply overrides the throttle and noise floor: the watchdog uses it
// to correct drift. Writes expected first, like every other path.
func (s *Synchronizer) ForceApply(monitorID string, height float64) {
	e, ok := s.entries[monitorID]
	if !ok {
		return
	}
	e.expected = height
	e.pending.Cancel()
	e.pending = nil
	s.applyFrame(monitorID, e)
}

func (s *Synchronizer) applyNow(monitorID string, e *entry) {
	if math.Abs(e.expected-e.applied) <= geometry.HeightNoiseFloor {
		// Micro-jitter; not worth a frame change.
		return
	}
	s.applyFrame(monitorID, e)
}

func (s *Synchronizer) applyFrame(monitorID string, e *entry) {
	target := e.expected
	frame := s.frame(monitorID, target)
	if err := s.apply(monitorID, frame); err != nil {
		s.logger.Warn("frame apply failed", "monitor", monitorID, "height", target, "error", err)
		return
	}
	e.applied = target
	e.lastAppliedAt = s.clock.Now()
	s.bus.Publish(events.WindowFrameApplied{MonitorID: monitorID, Frame: frame})

	// Immediate validation pass: a request that landed while the apply
	// ran re-reads expected and corrects a partial application.
	s.exec.Post(func() {
		if _, ok := s.entries[monitorID]; !ok {
			return
		}
		if math.Abs(e.expected-e.applied) > geometry.HeightNoiseFloor && e.pending == nil {
			s.applyNow(monitorID, e)
		}
	})
}
