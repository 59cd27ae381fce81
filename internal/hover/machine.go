// Package hover implements the per-monitor hover state machine. Entry uses
// the wide zone, maintenance the tight zone; the asymmetry absorbs motion
// noise at the boundary, and edge-snapping covers the pointer being pressed
// against the physical top edge where movement samples stop arriving.
package hover

import (
	"log/slog"
	"time"

	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/events"
	"github.com/edgedock/edgedock/internal/geometry"
	"github.com/edgedock/edgedock/internal/sched"
)

// StalenessWindow bounds how long a hover may outlive its last pointer
// sample before the watchdog expires it.
const StalenessWindow = 2 * time.Second

// Phase is the derived interaction phase, used for logging and status.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseHovering
	PhaseExpanded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseHovering:
		return "hovering"
	case PhaseExpanded:
		return "expanded"
	default:
		return "unknown"
	}
}

// State is the interaction state of one monitor. Mutated only from the
// control loop. Expanded=true implies the surface accepts pointer input
// regardless of Hovering.
type State struct {
	Hovering         bool
	Expanded         bool
	DropTargeted     bool
	LastTransitionAt time.Time
}

// Phase derives the coarse phase from the flags.
func (s State) Phase() Phase {
	switch {
	case s.Expanded:
		return PhaseExpanded
	case s.Hovering:
		return PhaseHovering
	default:
		return PhaseIdle
	}
}

// Machine converts routed pointer samples into hover transitions for one
// monitor. All methods must be called from the control loop.
type Machine struct {
	monitor  geometry.Monitor
	region   geometry.Region
	expanded geometry.Rect

	clock  control.Clock
	bus    *events.Bus
	sched  *sched.Scheduler
	logger *slog.Logger

	state        State
	lastSampleAt time.Time

	dragActive     bool
	dragOverRegion bool

	// ClickExpandAllowed gates click-to-expand on the anchor; the UI sets
	// it when the anchor hosts interactive children that should win the
	// click instead. Nil means allowed.
	ClickExpandAllowed func() bool
}

// NewMachine creates the state machine for one monitor.
func NewMachine(m geometry.Monitor, region geometry.Region, expandedRect geometry.Rect,
	clock control.Clock, bus *events.Bus, scheduler *sched.Scheduler, logger *slog.Logger) *Machine {
	return &Machine{
		monitor:  m,
		region:   region,
		expanded: expandedRect,
		clock:    clock,
		bus:      bus,
		sched:    scheduler,
		logger:   logger,
	}
}

// MonitorID returns the owning monitor's id.
func (m *Machine) MonitorID() string { return m.monitor.ID }

// State returns a copy of the interaction state.
func (m *Machine) State() State { return m.state }

// LastSampleAt returns when the machine last saw a pointer sample.
func (m *Machine) LastSampleAt() time.Time { return m.lastSampleAt }

// AcceptsInput reports whether the hosting window must accept pointer
// input right now.
func (m *Machine) AcceptsInput() bool {
	return m.state.Expanded || m.state.Hovering || m.state.DropTargeted ||
		(m.dragActive && m.dragOverRegion)
}

// UpdateGeometry replaces the monitor snapshot and regions after a display
// or content change.
func (m *Machine) UpdateGeometry(mon geometry.Monitor, region geometry.Region, expandedRect geometry.Rect) {
	m.monitor = mon
	m.region = region
	m.expanded = expandedRect
}

// edgeSnapped treats pointer proximity to the absolute top edge as hover,
// horizontally bounded by the expanded surface.
func (m *Machine) edgeSnapped(p geometry.Point) bool {
	return geometry.EdgeSnapped(m.monitor, m.expanded.X, m.expanded.MaxX(), p)
}

// HandleMove processes a routed movement sample.
func (m *Machine) HandleMove(p geometry.Point) {
	m.lastSampleAt = m.clock.Now()

	if m.dragActive {
		m.updateDropTarget(p)
		if !m.dragOverRegion {
			// Mid-drag outside the drop region: do not fight the gesture
			// with hover transitions.
			return
		}
	}

	snap := m.edgeSnapped(p)
	entered := m.region.Enter.Contains(p) || snap
	maintained := m.region.Exit.Contains(p) || snap
	if m.state.Expanded {
		maintained = maintained || m.expanded.Contains(p)
	}

	switch {
	case !m.state.Hovering && entered:
		m.setHovering(true)
	case m.state.Hovering && !maintained:
		m.setHovering(false)
	}
}

// HandleButton processes a routed button press at p. Release samples are
// consumed by the drag detector, not here.
func (m *Machine) HandleButton(p geometry.Point) {
	m.lastSampleAt = m.clock.Now()

	if !m.state.Expanded {
		if m.region.Exit.Contains(p) && m.clickExpandAllowed() {
			m.bus.Publish(events.ExpandRequested{MonitorID: m.monitor.ID})
		}
		return
	}

	if m.expanded.Contains(p) || m.region.Enter.Contains(p) {
		return
	}

	// Click outside both rects: collapse after the grace window so an
	// in-progress drag-out gesture is not canceled.
	m.sched.ArmGraceCollapse(m.monitor.ID, func() bool {
		return m.state.Expanded
	})
}

func (m *Machine) clickExpandAllowed() bool {
	return m.ClickExpandAllowed == nil || m.ClickExpandAllowed()
}

// SetExpanded records the surrounding UI's expanded toggle. The UI owns
// the visual state; the machine only tracks it.
func (m *Machine) SetExpanded(expanded bool) {
	if m.state.Expanded == expanded {
		return
	}
	m.state.Expanded = expanded
	m.state.LastTransitionAt = m.clock.Now()
	if expanded {
		m.sched.CancelExpand(m.monitor.ID)
		m.sched.CancelCollapse(m.monitor.ID)
	} else {
		m.sched.CancelCollapse(m.monitor.ID)
	}
	m.logger.Debug("expanded state changed", "monitor", m.monitor.ID, "expanded", expanded)
}

// SetDragState records the global drag session as seen by this monitor.
func (m *Machine) SetDragState(active bool, p geometry.Point) {
	m.dragActive = active
	if !active {
		m.dragOverRegion = false
		if m.state.DropTargeted {
			m.state.DropTargeted = false
			m.state.LastTransitionAt = m.clock.Now()
		}
		return
	}
	m.updateDropTarget(p)
}

func (m *Machine) updateDropTarget(p geometry.Point) {
	over := m.region.Enter.Contains(p) || m.edgeSnapped(p)
	if m.state.Expanded {
		over = over || m.expanded.Contains(p)
	}
	m.dragOverRegion = over
	if m.state.DropTargeted != over {
		m.state.DropTargeted = over
		m.state.LastTransitionAt = m.clock.Now()
	}
}

// Reset drops hover state without waiting for an exit sample. The router
// calls this when the pointer is over no attached monitor, the watchdog
// when a hover has outlived the staleness window.
func (m *Machine) Reset() {
	if !m.state.Hovering {
		return
	}
	m.setHovering(false)
}

func (m *Machine) setHovering(hovering bool) {
	m.state.Hovering = hovering
	m.state.LastTransitionAt = m.clock.Now()
	m.bus.Publish(events.HoverChanged{MonitorID: m.monitor.ID, Hovering: hovering})

	if hovering {
		m.sched.CancelCollapse(m.monitor.ID)
		if !m.state.Expanded {
			m.sched.ArmExpand(m.monitor.ID, func() bool {
				// Re-checked at fire time, never assumed.
				if m.dragActive && !m.dragOverRegion {
					return false
				}
				return m.state.Hovering && !m.state.Expanded
			})
		}
		return
	}

	m.sched.CancelExpand(m.monitor.ID)
	if m.state.Expanded {
		m.sched.ArmCollapse(m.monitor.ID, func() bool {
			return m.state.Expanded && !m.state.Hovering && !m.dragActive
		})
	}
}
