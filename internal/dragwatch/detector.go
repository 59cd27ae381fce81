// Package dragwatch infers external drag sessions. No drag start/end
// signal exists, so a fixed-interval poll watches the shared drag buffer's
// change counter together with the primary button state: a counter change
// while the button is held starts a session, button release ends it.
package dragwatch

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/events"
	"github.com/edgedock/edgedock/internal/geometry"
)

// BufferSource exposes the shared system drag buffer. ChangeCount must be
// monotonically increasing across drag starts.
type BufferSource interface {
	ChangeCount() (uint64, error)
	NonEmpty() (bool, error)
}

// PointerFunc samples the pointer location and primary button state.
type PointerFunc func() (geometry.Point, bool, error)

// Params tunes the jiggle recognizer.
type Params struct {
	MinDisplacement float64       // below this the sample is too small to be directional
	ReversalDot     float64       // dot product below this counts as a reversal
	Window          time.Duration // reversals must fall inside this window
	Reversals       int           // reversals required to fire
	Renotify        time.Duration // suppression after a fire
	Interval        time.Duration // poll interval
}

// Session is a snapshot of the process-wide drag session. The session is a
// singleton: a drag is one global gesture regardless of which monitor the
// pointer occupies.
type Session struct {
	Active       bool
	StartMarker  uint64
	LastLocation geometry.Point
}

// Detector is the drag-session poller. The poll goroutine gathers values
// and marshals them onto the control loop; all state lives on the loop.
type Detector struct {
	clock   control.Clock
	exec    control.Executor
	bus     *events.Bus
	logger  *slog.Logger
	pointer PointerFunc
	buffer  BufferSource
	params  Params

	// Control-loop state.
	active        bool
	startMarker   uint64
	lastCount     uint64
	haveCount     bool
	lastLocation  geometry.Point
	lastDirection geometry.Point // unit vector, zero when none
	reversals     []time.Time
	notifiedAt    time.Time
	jiggleArmed   bool

	// activeHint mirrors `active` for the poll goroutine's cheap
	// early-out. A stale read only costs one extra buffer inspection.
	activeHint atomic.Bool
}

// New creates a detector.
func New(clock control.Clock, exec control.Executor, bus *events.Bus,
	pointer PointerFunc, buffer BufferSource, params Params, logger *slog.Logger) *Detector {
	if params.Interval <= 0 {
		params.Interval = 100 * time.Millisecond
	}
	return &Detector{
		clock:   clock,
		exec:    exec,
		bus:     bus,
		logger:  logger,
		pointer: pointer,
		buffer:  buffer,
		params:  params,
	}
}

// Active reports whether a session is running. Control loop only.
func (d *Detector) Active() bool { return d.active }

// Snapshot returns the current session state. Control loop only.
func (d *Detector) Snapshot() Session {
	return Session{Active: d.active, StartMarker: d.startMarker, LastLocation: d.lastLocation}
}

// SetParams replaces the jiggle tuning. Control loop only.
func (d *Detector) SetParams(p Params) {
	if p.Interval <= 0 {
		p.Interval = d.params.Interval
	}
	d.params = p
}

// Run polls until ctx is canceled. Each tick does O(1) work and returns;
// the expensive buffer inspection is skipped entirely while the button is
// up and no session is active.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.params.Interval)
	defer ticker.Stop()

	d.logger.Info("drag detector started", "interval", d.params.Interval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("drag detector stopped")
			return
		case <-ticker.C:
			p, buttonDown, err := d.pointer()
			if err != nil {
				d.logger.Debug("pointer sample failed", "error", err)
				continue
			}

			var count uint64
			var nonEmpty, checked bool
			if buttonDown || d.activeHint.Load() {
				if c, err := d.buffer.ChangeCount(); err == nil {
					count = c
					checked = true
				}
				if checked {
					nonEmpty, _ = d.buffer.NonEmpty()
				}
			}

			d.exec.Post(func() {
				d.Observe(p, buttonDown, count, nonEmpty, checked)
			})
		}
	}
}

// Observe applies one poll's findings. Control loop only.
func (d *Detector) Observe(p geometry.Point, buttonDown bool, count uint64, nonEmpty, checked bool) {
	now := d.clock.Now()

	if d.active {
		if !buttonDown {
			d.endSession(p)
			if checked {
				d.lastCount = count
				d.haveCount = true
			}
			return
		}
		d.detectJiggle(p, now)
		d.lastLocation = p
		if checked {
			d.lastCount = count
			d.haveCount = true
		}
		return
	}

	if !checked {
		return
	}

	if buttonDown && d.haveCount && count != d.lastCount && nonEmpty {
		d.startSession(p, count)
	}
	d.lastCount = count
	d.haveCount = true
}

func (d *Detector) startSession(p geometry.Point, marker uint64) {
	d.active = true
	d.activeHint.Store(true)
	d.startMarker = marker
	d.lastLocation = p
	d.lastDirection = geometry.Point{}
	d.reversals = d.reversals[:0]
	d.jiggleArmed = true
	d.logger.Debug("drag session started", "marker", marker, "x", p.X, "y", p.Y)
	d.bus.Publish(events.DragSessionChanged{Active: true, Location: p})
}

func (d *Detector) endSession(p geometry.Point) {
	d.active = false
	d.activeHint.Store(false)
	d.lastDirection = geometry.Point{}
	d.reversals = d.reversals[:0]
	d.jiggleArmed = false
	d.logger.Debug("drag session ended", "x", p.X, "y", p.Y)
	d.bus.Publish(events.DragSessionChanged{Active: false, Location: p})
}

// detectJiggle runs once per poll during a session: normalize the
// displacement since the last sample, count direction reversals inside the
// window, fire once when enough accumulate.
func (d *Detector) detectJiggle(p geometry.Point, now time.Time) {
	dx := p.X - d.lastLocation.X
	dy := p.Y - d.lastLocation.Y
	mag := math.Hypot(dx, dy)
	if mag <= d.params.MinDisplacement {
		return
	}

	dir := geometry.Point{X: dx / mag, Y: dy / mag}
	prev := d.lastDirection
	d.lastDirection = dir

	if prev == (geometry.Point{}) {
		return
	}
	if dir.X*prev.X+dir.Y*prev.Y >= d.params.ReversalDot {
		return
	}

	d.reversals = append(d.reversals, now)
	d.pruneReversals(now)

	if len(d.reversals) < d.params.Reversals {
		return
	}
	if !d.jiggleArmed && now.Sub(d.notifiedAt) < d.params.Renotify {
		return
	}

	d.jiggleArmed = false
	d.notifiedAt = now
	d.reversals = d.reversals[:0]
	d.logger.Debug("jiggle detected", "x", p.X, "y", p.Y)
	d.bus.Publish(events.JiggleDetected{Location: p})
}

func (d *Detector) pruneReversals(now time.Time) {
	cutoff := now.Add(-d.params.Window)
	i := 0
	for ; i < len(d.reversals); i++ {
		if d.reversals[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		d.reversals = append(d.reversals[:0], d.reversals[i:]...)
	}
}
