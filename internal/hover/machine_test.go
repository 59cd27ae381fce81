package hover

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/events"
	"github.com/edgedock/edgedock/internal/geometry"
	"github.com/edgedock/edgedock/internal/sched"
)

// directExec runs posted work inline, which together with the manual clock
// makes timer tests deterministic.
type directExec struct{}

func (directExec) Post(fn func()) { fn() }

type recorder struct {
	events []events.Event
}

func (r *recorder) record(ev events.Event) { r.events = append(r.events, ev) }

func (r *recorder) ofType(match func(events.Event) bool) int {
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func (r *recorder) hoverChanges() []events.HoverChanged {
	var out []events.HoverChanged
	for _, ev := range r.events {
		if h, ok := ev.(events.HoverChanged); ok {
			out = append(out, h)
		}
	}
	return out
}

func testDelays() sched.Delays {
	return sched.Delays{
		Expand:   250 * time.Millisecond,
		Collapse: 100 * time.Millisecond,
		Grace:    150 * time.Millisecond,
	}
}

func newTestMachine(t *testing.T) (*Machine, *control.ManualClock, *recorder) {
	t.Helper()

	clock := control.NewManualClock()
	bus := events.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.record)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler := sched.New(clock, directExec{}, bus, testDelays(), logger)

	mon := geometry.Monitor{ID: "m0", Frame: geometry.Rect{X: 0, Y: 0, Width: 1440, Height: 900}}
	params := geometry.DefaultParams()
	region := geometry.AnchorRegion(mon, geometry.ModeCompact, params)
	expanded := geometry.ExpandedRect(mon, params, 300)

	return NewMachine(mon, region, expanded, clock, bus, scheduler, logger), clock, rec
}

func TestHysteresis_PathInsideExitRectNeverToggles(t *testing.T) {
	m, _, rec := newTestMachine(t)

	// Enter once.
	m.HandleMove(geometry.Point{X: 700, Y: 10})
	if got := len(rec.hoverChanges()); got != 1 {
		t.Fatalf("expected 1 hover change after entry, got %d", got)
	}

	// Wander within the exit rect at a high sample rate.
	for i := 0; i < 200; i++ {
		x := 610.0 + float64(i%230)
		y := float64(i % 30)
		m.HandleMove(geometry.Point{X: x, Y: y})
	}

	if got := len(rec.hoverChanges()); got != 1 {
		t.Fatalf("hover toggled inside exit rect: %d changes", got)
	}
	if !m.State().Hovering {
		t.Fatal("expected hover maintained")
	}
}

func TestEnterViaWideZone_ExitViaTightZone(t *testing.T) {
	m, _, rec := newTestMachine(t)

	// Default params: exit x=[600,840), enter x=[580,860) with extra
	// height. A point inside enter but outside exit must not flap.
	m.HandleMove(geometry.Point{X: 585, Y: 10})
	if !m.State().Hovering {
		t.Fatal("expected entry via wide zone")
	}

	// Same point is outside the tight zone but edge-snapped? No: x=585 is
	// outside the expanded surface bounds too only if < expanded.X (420).
	// Use a point below the snap margin to check exit behavior.
	m.HandleMove(geometry.Point{X: 585, Y: 50})
	if m.State().Hovering {
		t.Fatal("expected exit once outside tight zone and snap margin")
	}

	hc := rec.hoverChanges()
	if len(hc) != 2 || hc[0].Hovering != true || hc[1].Hovering != false {
		t.Fatalf("unexpected hover sequence: %+v", hc)
	}
}

func TestEdgeSnap_MaintainsHoverAtTopEdge(t *testing.T) {
	m, _, _ := newTestMachine(t)

	m.HandleMove(geometry.Point{X: 700, Y: 10})
	if !m.State().Hovering {
		t.Fatal("expected hover")
	}

	// Pointer pressed against the physical edge, outside the anchor's x
	// range but within the expanded surface bounds (x=[420,1020)).
	m.HandleMove(geometry.Point{X: 500, Y: 0})
	if !m.State().Hovering {
		t.Fatal("edge snap should maintain hover at the top edge")
	}

	// Same x, below the snap margin and outside every rect: hover drops.
	m.HandleMove(geometry.Point{X: 500, Y: geometry.EdgeSnapMargin + 25})
	if m.State().Hovering {
		t.Fatal("expected hover loss below snap margin")
	}
}

func TestScenario_HoverExpandCollapse(t *testing.T) {
	m, clock, rec := newTestMachine(t)

	// Pointer enters the anchor zone.
	m.HandleMove(geometry.Point{X: 700, Y: 10})
	hc := rec.hoverChanges()
	if len(hc) != 1 || !hc[0].Hovering {
		t.Fatalf("expected HoverChanged(true), got %+v", hc)
	}

	// No further movement for the expand delay.
	clock.Advance(250 * time.Millisecond)
	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.ExpandRequested); return ok }); got != 1 {
		t.Fatalf("expected exactly one ExpandRequested, got %d", got)
	}

	// The surrounding UI honors the request.
	m.SetExpanded(true)

	// Pointer leaves for the far corner.
	m.HandleMove(geometry.Point{X: 50, Y: 850})
	hc = rec.hoverChanges()
	if len(hc) != 2 || hc[1].Hovering {
		t.Fatalf("expected HoverChanged(false), got %+v", hc)
	}

	clock.Advance(100 * time.Millisecond)
	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.CollapseRequested); return ok }); got != 1 {
		t.Fatalf("expected exactly one CollapseRequested, got %d", got)
	}
}

func TestExpandTimer_CanceledByHoverLoss(t *testing.T) {
	m, clock, rec := newTestMachine(t)

	m.HandleMove(geometry.Point{X: 700, Y: 10})
	clock.Advance(100 * time.Millisecond)
	m.HandleMove(geometry.Point{X: 50, Y: 500})
	clock.Advance(time.Second)

	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.ExpandRequested); return ok }); got != 0 {
		t.Fatalf("expand fired after hover loss: %d", got)
	}
}

func TestExpandTimer_RearmingReplacesNotStacks(t *testing.T) {
	m, clock, rec := newTestMachine(t)

	// Flap in and out of hover several times, then settle.
	for i := 0; i < 5; i++ {
		m.HandleMove(geometry.Point{X: 700, Y: 10})
		clock.Advance(50 * time.Millisecond)
		m.HandleMove(geometry.Point{X: 50, Y: 500})
		clock.Advance(10 * time.Millisecond)
	}
	m.HandleMove(geometry.Point{X: 700, Y: 10})
	clock.Advance(time.Second)

	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.ExpandRequested); return ok }); got != 1 {
		t.Fatalf("expected exactly one ExpandRequested after settling, got %d", got)
	}
}

func TestDragSuppressesTransitionsOutsideRegion(t *testing.T) {
	m, clock, rec := newTestMachine(t)

	m.SetDragState(true, geometry.Point{X: 700, Y: 400})
	if m.State().DropTargeted {
		t.Fatal("drop target should be false away from the region")
	}

	// Samples over the anchor would normally enter hover, but the drag is
	// outside the valid drop region when these arrive from elsewhere.
	m.HandleMove(geometry.Point{X: 700, Y: 400})
	if m.State().Hovering {
		t.Fatal("hover must be suppressed mid-drag outside the region")
	}

	// Drag moves over the region: drop targeting engages.
	m.HandleMove(geometry.Point{X: 700, Y: 10})
	if !m.State().DropTargeted {
		t.Fatal("expected drop targeting over the region")
	}
	if !m.AcceptsInput() {
		t.Fatal("surface must accept input while drop-targeted")
	}

	// Drag ends: targeting clears.
	m.SetDragState(false, geometry.Point{})
	if m.State().DropTargeted {
		t.Fatal("drop targeting must clear on drag end")
	}

	clock.Advance(time.Second)
	_ = rec
}

func TestClickOutside_CollapsesAfterGrace(t *testing.T) {
	m, clock, rec := newTestMachine(t)

	m.SetExpanded(true)
	m.HandleButton(geometry.Point{X: 50, Y: 850})

	// Not yet: grace window pending.
	clock.Advance(100 * time.Millisecond)
	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.CollapseRequested); return ok }); got != 0 {
		t.Fatalf("collapse fired before grace elapsed: %d", got)
	}

	clock.Advance(50 * time.Millisecond)
	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.CollapseRequested); return ok }); got != 1 {
		t.Fatalf("expected one CollapseRequested after grace, got %d", got)
	}
}

func TestClickInsideExpandedSurface_NoCollapse(t *testing.T) {
	m, clock, rec := newTestMachine(t)

	m.SetExpanded(true)
	m.HandleButton(geometry.Point{X: 700, Y: 150})
	clock.Advance(time.Second)

	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.CollapseRequested); return ok }); got != 0 {
		t.Fatalf("collapse fired for a click inside the surface: %d", got)
	}
}

func TestClickOnAnchor_RequestsExpandImmediately(t *testing.T) {
	m, _, rec := newTestMachine(t)

	m.HandleButton(geometry.Point{X: 700, Y: 10})
	if got := rec.ofType(func(ev events.Event) bool { _, ok := ev.(events.ExpandRequested); return ok }); got != 1 {
		t.Fatalf("expected immediate ExpandRequested, got %d", got)
	}

	// With interactive children claiming the click, no expand.
	m2, _, rec2 := newTestMachine(t)
	m2.ClickExpandAllowed = func() bool { return false }
	m2.HandleButton(geometry.Point{X: 700, Y: 10})
	if got := rec2.ofType(func(ev events.Event) bool { _, ok := ev.(events.ExpandRequested); return ok }); got != 0 {
		t.Fatalf("expected no ExpandRequested, got %d", got)
	}
}

func TestReset_ClearsHoverOnce(t *testing.T) {
	m, _, rec := newTestMachine(t)

	m.HandleMove(geometry.Point{X: 700, Y: 10})
	m.Reset()
	m.Reset() // idempotent

	hc := rec.hoverChanges()
	if len(hc) != 2 || hc[1].Hovering {
		t.Fatalf("unexpected hover sequence after reset: %+v", hc)
	}
}
