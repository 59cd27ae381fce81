// Package shelf assembles the per-monitor controller: it owns the hover
// machines, the pointer router, the debounce scheduler and the geometry
// synchronizer, and reacts to the events they publish. All state lives on
// the control loop.
package shelf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgedock/edgedock/internal/config"
	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/events"
	"github.com/edgedock/edgedock/internal/geometry"
	"github.com/edgedock/edgedock/internal/hover"
	"github.com/edgedock/edgedock/internal/router"
	"github.com/edgedock/edgedock/internal/sched"
	"github.com/edgedock/edgedock/internal/wingeom"
)

// shelfRowHeight is the rendered height of one shelf item row.
const shelfRowHeight = 88.0

// DefaultHeight reports the content height needed for itemCount rows. The
// expanded rect computation clamps it to the minimum shelf height and the
// monitor, so zero items is fine.
func DefaultHeight(m geometry.Monitor, itemCount int) float64 {
	return float64(itemCount) * shelfRowHeight
}

// Host owns the shelf surface windows. ApplyFrame and SetAcceptsInput are
// called from the control loop and must not block on the window system for
// long.
type Host interface {
	EnsureWindow(monitorID string, frame geometry.Rect) error
	DestroyWindow(monitorID string) error
	ApplyFrame(monitorID string, frame geometry.Rect) error
	SetAcceptsInput(monitorID string, accept bool) error
	// InputFlag reports the last applied input-acceptance flag. ok is false
	// when the host has no window for the monitor yet.
	InputFlag(monitorID string) (accept bool, ok bool)
}

// DisplaySource enumerates attached monitors.
type DisplaySource interface {
	Displays() ([]geometry.Monitor, error)
}

// Options configures a Controller.
type Options struct {
	Clock    control.Clock
	Exec     control.Executor
	Bus      *events.Bus
	Host     Host
	Displays DisplaySource
	Config   *config.Config
	Logger   *slog.Logger
	// HeightFor computes content height from item count. Nil means
	// DefaultHeight.
	HeightFor geometry.HeightFunc
}

type monitorEntry struct {
	monitor      geometry.Monitor
	region       geometry.Region
	expandedRect geometry.Rect
	machine      *hover.Machine
	itemCount    int
}

// MonitorStatus is one monitor's externally visible state.
type MonitorStatus struct {
	MonitorID      string
	Frame          geometry.Rect
	Phase          string
	Hovering       bool
	Expanded       bool
	DropTargeted   bool
	ExpectedHeight float64
	AppliedHeight  float64
}

// Status is the controller's externally visible state.
type Status struct {
	StartedAt  time.Time
	DragActive bool
	Monitors   []MonitorStatus
}

// Controller is the shelf region controller. All methods run on the
// control loop unless noted otherwise.
type Controller struct {
	clock    control.Clock
	exec     control.Executor
	bus      *events.Bus
	host     Host
	displays DisplaySource
	logger   *slog.Logger

	cfg       *config.Config
	params    geometry.Params
	heightFor geometry.HeightFunc

	// pollInterval is fixed at startup; the poller goroutine must not
	// read cfg, which the control loop replaces on reload.
	pollInterval time.Duration

	scheduler *sched.Scheduler
	router    *router.Router
	sync      *wingeom.Synchronizer

	entries map[string]*monitorEntry
	order   []string

	dragActive   bool
	dragLocation geometry.Point

	startedAt      time.Time
	degradedLogged bool
}

// New creates the controller and subscribes it to the bus. Start must be
// called on the control loop before samples arrive.
func New(opts Options) *Controller {
	heightFor := opts.HeightFor
	if heightFor == nil {
		heightFor = DefaultHeight
	}
	c := &Controller{
		clock:        opts.Clock,
		exec:         opts.Exec,
		bus:          opts.Bus,
		host:         opts.Host,
		displays:     opts.Displays,
		logger:       opts.Logger,
		cfg:          opts.Config,
		params:       paramsFrom(opts.Config),
		heightFor:    heightFor,
		pollInterval: opts.Config.PointerPoll(),
		entries:      make(map[string]*monitorEntry),
	}
	c.scheduler = sched.New(opts.Clock, opts.Exec, opts.Bus, delaysFrom(opts.Config), opts.Logger)
	c.router = router.New(func() bool { return c.dragActive }, opts.Logger)
	c.sync = wingeom.New(opts.Clock, opts.Exec, opts.Bus,
		opts.Config.HeightThrottle(), c.frameFor, opts.Host.ApplyFrame, opts.Logger)
	opts.Bus.Subscribe(c.handleEvent)
	return c
}

func paramsFrom(cfg *config.Config) geometry.Params {
	return geometry.Params{
		AnchorWidth:    cfg.Shelf.AnchorWidth,
		AnchorHeight:   cfg.Shelf.AnchorHeight,
		ExpandedWidth:  cfg.Shelf.ExpandedWidth,
		EnterPadX:      cfg.Shelf.EnterPadX,
		EnterPadY:      cfg.Shelf.EnterPadY,
		MinShelfHeight: cfg.Shelf.MinShelfHeight,
	}
}

func delaysFrom(cfg *config.Config) sched.Delays {
	return sched.Delays{
		Expand:   cfg.ExpandDelay(),
		Collapse: cfg.CollapseDelay(),
		Grace:    cfg.GraceDelay(),
	}
}

// Start queries the displays and registers every monitor.
func (c *Controller) Start() error {
	c.startedAt = c.clock.Now()
	if err := c.RefreshDisplays(); err != nil {
		return fmt.Errorf("initial display query: %w", err)
	}
	c.logger.Info("shelf controller started", "monitors", len(c.order))
	return nil
}

// RefreshDisplays re-queries the display source and reconciles the monitor
// set: new monitors are registered, departed ones removed with their
// pending timers and updates, surviving ones get fresh geometry.
func (c *Controller) RefreshDisplays() error {
	monitors, err := c.displays.Displays()
	if err != nil {
		return fmt.Errorf("display query: %w", err)
	}

	seen := make(map[string]bool, len(monitors))
	for _, m := range monitors {
		seen[m.ID] = true
		if _, ok := c.entries[m.ID]; ok {
			c.updateMonitor(m)
		} else {
			c.addMonitor(m)
		}
	}
	for _, id := range append([]string(nil), c.order...) {
		if !seen[id] {
			c.removeMonitor(id)
		}
	}
	return nil
}

func (c *Controller) addMonitor(m geometry.Monitor) {
	region, expanded := c.computeRects(m, 0)
	e := &monitorEntry{
		monitor:      m,
		region:       region,
		expandedRect: expanded,
	}
	e.machine = hover.NewMachine(m, region, expanded, c.clock, c.bus, c.scheduler, c.logger)

	if err := c.host.EnsureWindow(m.ID, region.Exit); err != nil {
		c.logger.Warn("shelf window creation failed", "monitor", m.ID, "error", err)
	}
	c.entries[m.ID] = e
	c.order = append(c.order, m.ID)
	c.sync.Register(m.ID, region.Exit.Height)
	c.router.Register(m, e.machine)
	c.applyInputFlag(e)

	c.logger.Info("monitor attached", "monitor", m.ID,
		"width", m.Frame.Width, "height", m.Frame.Height, "cutout", m.SafeAreaInset > 0)
}

func (c *Controller) removeMonitor(id string) {
	if _, ok := c.entries[id]; !ok {
		return
	}
	c.scheduler.CancelAll(id)
	c.sync.Remove(id)
	c.router.Unregister(id)
	if err := c.host.DestroyWindow(id); err != nil {
		c.logger.Warn("shelf window teardown failed", "monitor", id, "error", err)
	}
	delete(c.entries, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.logger.Info("monitor detached", "monitor", id)
}

func (c *Controller) updateMonitor(m geometry.Monitor) {
	e := c.entries[m.ID]
	e.monitor = m
	c.refreshRects(e)
	c.router.UpdateMonitor(m)
	// The frame may have moved without a height change, so the noise
	// floor must not swallow this.
	c.sync.ForceApply(m.ID, c.desiredHeight(e))
}

// computeRects derives the hover region and expanded rect for a monitor.
// Monitors with a physical cutout get the prominent resting mode.
func (c *Controller) computeRects(m geometry.Monitor, itemCount int) (geometry.Region, geometry.Rect) {
	mode := geometry.ModeCompact
	if m.SafeAreaInset > 0 {
		mode = geometry.ModeProminent
	}
	region := geometry.AnchorRegion(m, mode, c.params)
	expanded := geometry.ExpandedRect(m, c.params, c.heightFor(m, itemCount))
	return region, expanded
}

func (c *Controller) refreshRects(e *monitorEntry) {
	e.region, e.expandedRect = c.computeRects(e.monitor, e.itemCount)
	e.machine.UpdateGeometry(e.monitor, e.region, e.expandedRect)
}

// desiredHeight is the height the surface should have for the entry's
// current state. The watchdog uses the same computation.
func (c *Controller) desiredHeight(e *monitorEntry) float64 {
	if e.machine.State().Expanded {
		return e.expandedRect.Height
	}
	return e.region.Exit.Height
}

// frameFor is the synchronizer's frame callback: expanded surfaces use the
// wide rect, collapsed ones the anchor strip.
func (c *Controller) frameFor(monitorID string, height float64) geometry.Rect {
	e, ok := c.entries[monitorID]
	if !ok {
		return geometry.Rect{}
	}
	var r geometry.Rect
	if e.machine.State().Expanded {
		r = e.expandedRect
	} else {
		r = e.region.Exit
	}
	r.Height = height
	return r
}

// SetItemCount updates a monitor's shelf content size. While expanded the
// surface resizes to fit, throttled by the synchronizer.
func (c *Controller) SetItemCount(monitorID string, itemCount int) {
	e, ok := c.entries[monitorID]
	if !ok {
		return
	}
	if itemCount < 0 {
		itemCount = 0
	}
	e.itemCount = itemCount
	c.refreshRects(e)
	if e.machine.State().Expanded {
		c.sync.RequestHeight(monitorID, e.expandedRect.Height)
	}
}

// ApplyConfig installs a reloaded configuration. Delays affect timers
// armed afterwards; regions and heights are recomputed immediately.
func (c *Controller) ApplyConfig(cfg *config.Config) {
	c.cfg = cfg
	c.params = paramsFrom(cfg)
	c.scheduler.SetDelays(delaysFrom(cfg))
	c.sync.SetThrottle(cfg.HeightThrottle())
	for _, id := range c.order {
		e := c.entries[id]
		c.refreshRects(e)
		// Width and centering may change at constant height.
		c.sync.ForceApply(id, c.desiredHeight(e))
	}
	c.logger.Info("configuration applied",
		"expand_delay", cfg.ExpandDelay(), "collapse_delay", cfg.CollapseDelay())
	c.bus.Publish(events.SettingsChanged{})
}

// RouteSample feeds one pointer sample through the router. Control loop
// only; goroutines use PostSample.
func (c *Controller) RouteSample(s router.Sample) {
	c.router.Route(s)
	if c.dragActive {
		// Drop targeting changes silently during a drag; keep the input
		// flags current without waiting for the watchdog.
		for _, id := range c.order {
			c.applyInputFlag(c.entries[id])
		}
	}
}

// PostSample marshals a sample onto the control loop. Safe from any
// goroutine; this is the entry point for in-process window events.
func (c *Controller) PostSample(s router.Sample) {
	c.exec.Post(func() { c.RouteSample(s) })
}

// RunPointerPoller samples the global pointer until ctx is canceled.
// A failing query degrades to in-process samples only, logged once.
func (c *Controller) RunPointerPoller(ctx context.Context, query func() (geometry.Point, bool, error)) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	c.logger.Info("pointer poller started", "interval", c.pollInterval)

	var prevDown bool
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("pointer poller stopped")
			return
		case <-ticker.C:
			p, down, err := query()
			if err != nil {
				c.exec.Post(func() {
					if !c.degradedLogged {
						c.degradedLogged = true
						c.logger.Warn("global pointer query failed, using in-process samples only", "error", err)
					}
				})
				continue
			}
			pressed := down && !prevDown
			prevDown = down
			c.exec.Post(func() {
				c.RouteSample(router.Sample{Location: p, Kind: router.KindMove})
				if pressed {
					c.RouteSample(router.Sample{Location: p, Kind: router.KindButtonPress})
				}
			})
		}
	}
}

func (c *Controller) handleEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.ExpandRequested:
		if entry, ok := c.entries[e.MonitorID]; ok {
			c.expand(entry)
		}
	case events.CollapseRequested:
		if entry, ok := c.entries[e.MonitorID]; ok {
			c.collapse(entry)
		}
	case events.HoverChanged:
		if entry, ok := c.entries[e.MonitorID]; ok {
			c.applyInputFlag(entry)
		}
	case events.DragSessionChanged:
		c.dragActive = e.Active
		c.dragLocation = e.Location
		for _, id := range c.order {
			entry := c.entries[id]
			entry.machine.SetDragState(e.Active, e.Location)
			c.applyInputFlag(entry)
		}
	case events.JiggleDetected:
		c.expandAt(e.Location)
	case events.DisplaysChanged:
		if err := c.RefreshDisplays(); err != nil {
			c.logger.Warn("display refresh failed", "error", err)
		}
	}
}

func (c *Controller) expand(e *monitorEntry) {
	if e.machine.State().Expanded {
		return
	}
	e.machine.SetExpanded(true)
	c.refreshRects(e)
	c.applyInputFlag(e)
	c.sync.RequestHeight(e.monitor.ID, e.expandedRect.Height)
	c.logger.Debug("shelf expanded", "monitor", e.monitor.ID, "height", e.expandedRect.Height)
}

func (c *Controller) collapse(e *monitorEntry) {
	if !e.machine.State().Expanded {
		return
	}
	e.machine.SetExpanded(false)
	c.applyInputFlag(e)
	c.sync.RequestHeight(e.monitor.ID, e.region.Exit.Height)
	c.logger.Debug("shelf collapsed", "monitor", e.monitor.ID)
}

// expandAt expands the shelf on the monitor containing p. A jiggle is an
// explicit request, so the expand debounce is skipped.
func (c *Controller) expandAt(p geometry.Point) {
	for _, id := range c.order {
		e := c.entries[id]
		if e.monitor.Frame.Contains(p) {
			c.expand(e)
			return
		}
	}
}

func (c *Controller) applyInputFlag(e *monitorEntry) {
	want := e.machine.AcceptsInput()
	have, ok := c.host.InputFlag(e.monitor.ID)
	if ok && have == want {
		return
	}
	if err := c.host.SetAcceptsInput(e.monitor.ID, want); err != nil {
		c.logger.Warn("input flag update failed", "monitor", e.monitor.ID, "error", err)
	}
}

// Status snapshots the controller state. Control loop only; IPC handlers
// marshal onto the loop first.
func (c *Controller) Status() Status {
	st := Status{StartedAt: c.startedAt, DragActive: c.dragActive}
	for _, id := range c.order {
		e := c.entries[id]
		ms := e.machine.State()
		expected, _ := c.sync.Expected(id)
		applied, _ := c.sync.Applied(id)
		st.Monitors = append(st.Monitors, MonitorStatus{
			MonitorID:      id,
			Frame:          e.monitor.Frame,
			Phase:          ms.Phase().String(),
			Hovering:       ms.Hovering,
			Expanded:       ms.Expanded,
			DropTargeted:   ms.DropTargeted,
			ExpectedHeight: expected,
			AppliedHeight:  applied,
		})
	}
	return st
}

// Monitors snapshots the registered monitor geometry. Control loop only.
func (c *Controller) Monitors() []geometry.Monitor {
	out := make([]geometry.Monitor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id].monitor)
	}
	return out
}
