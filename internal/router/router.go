// Package router dispatches raw pointer samples to the single monitor
// whose frame contains them. Samples reach it from two independent
// sources (the global poller and in-process window events); both funnel
// through Route on the control loop.
package router

import (
	"log/slog"

	"github.com/edgedock/edgedock/internal/geometry"
)

// Kind classifies a pointer sample.
type Kind int

const (
	// KindMove is an ordinary movement sample.
	KindMove Kind = iota
	// KindButtonPress is a primary-button press.
	KindButtonPress
	// KindDragMove is a movement sample taken during an external drag.
	// Forwarded only while a drag session is active or starting.
	KindDragMove
)

// Sample is one routed pointer observation.
type Sample struct {
	Location geometry.Point
	Kind     Kind
}

// Target consumes samples for one monitor. Implemented by the hover
// machine.
type Target interface {
	HandleMove(p geometry.Point)
	HandleButton(p geometry.Point)
	Reset()
}

type entry struct {
	monitor geometry.Monitor
	target  Target
}

// Router owns the monitor → target mapping. All methods run on the
// control loop.
type Router struct {
	entries    []entry
	dragActive func() bool
	logger     *slog.Logger
}

// New creates a router. dragActive gates drag-specific samples.
func New(dragActive func() bool, logger *slog.Logger) *Router {
	return &Router{dragActive: dragActive, logger: logger}
}

// Register adds a monitor and its sample target.
func (r *Router) Register(m geometry.Monitor, t Target) {
	r.entries = append(r.entries, entry{monitor: m, target: t})
}

// Unregister removes a monitor. Pending work keyed to it is the caller's
// problem; the router only stops routing.
func (r *Router) Unregister(monitorID string) {
	for i, e := range r.entries {
		if e.monitor.ID == monitorID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// UpdateMonitor replaces a registered monitor's snapshot.
func (r *Router) UpdateMonitor(m geometry.Monitor) {
	for i := range r.entries {
		if r.entries[i].monitor.ID == m.ID {
			r.entries[i].monitor = m
			return
		}
	}
}

// Route dispatches one sample to the containing monitor's target only;
// samples are never broadcast, so a gesture on one monitor cannot leak
// state changes into another. A location over no attached monitor
// (disconnected display mid-drag) resets any hovering monitor instead,
// keeping the hover-implies-pointer-present invariant.
func (r *Router) Route(s Sample) {
	if s.Kind == KindDragMove && (r.dragActive == nil || !r.dragActive()) {
		return
	}

	var hit *entry
	for i := range r.entries {
		if r.entries[i].monitor.Frame.Contains(s.Location) {
			hit = &r.entries[i]
			break
		}
	}

	if hit == nil {
		r.logger.Debug("pointer over no attached monitor, resetting hover",
			"x", s.Location.X, "y", s.Location.Y)
		for _, e := range r.entries {
			e.target.Reset()
		}
		return
	}

	switch s.Kind {
	case KindMove, KindDragMove:
		hit.target.HandleMove(s.Location)
	case KindButtonPress:
		hit.target.HandleButton(s.Location)
	}
}
