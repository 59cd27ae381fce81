package router

import (
	"io"
	"log/slog"
	"testing"

	"github.com/edgedock/edgedock/internal/geometry"
)

type fakeTarget struct {
	moves   []geometry.Point
	buttons []geometry.Point
	resets  int
}

func (f *fakeTarget) HandleMove(p geometry.Point)   { f.moves = append(f.moves, p) }
func (f *fakeTarget) HandleButton(p geometry.Point) { f.buttons = append(f.buttons, p) }
func (f *fakeTarget) Reset()                        { f.resets++ }

func twoMonitorRouter(dragActive bool) (*Router, *fakeTarget, *fakeTarget) {
	r := New(func() bool { return dragActive }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a, b := &fakeTarget{}, &fakeTarget{}
	r.Register(geometry.Monitor{ID: "a", Frame: geometry.Rect{X: 0, Y: 0, Width: 1440, Height: 900}}, a)
	r.Register(geometry.Monitor{ID: "b", Frame: geometry.Rect{X: 1440, Y: 0, Width: 1920, Height: 1080}}, b)
	return r, a, b
}

func TestRoute_TargetsContainingMonitorOnly(t *testing.T) {
	r, a, b := twoMonitorRouter(false)

	r.Route(Sample{Location: geometry.Point{X: 700, Y: 10}, Kind: KindMove})
	r.Route(Sample{Location: geometry.Point{X: 2000, Y: 10}, Kind: KindMove})
	r.Route(Sample{Location: geometry.Point{X: 700, Y: 10}, Kind: KindButtonPress})

	if len(a.moves) != 1 || len(a.buttons) != 1 {
		t.Fatalf("monitor a: moves=%d buttons=%d, want 1/1", len(a.moves), len(a.buttons))
	}
	if len(b.moves) != 1 || len(b.buttons) != 0 {
		t.Fatalf("monitor b: moves=%d buttons=%d, want 1/0", len(b.moves), len(b.buttons))
	}
	if a.resets != 0 || b.resets != 0 {
		t.Fatal("no resets expected while pointer is over a monitor")
	}
}

func TestRoute_NoMonitorResetsAll(t *testing.T) {
	r, a, b := twoMonitorRouter(false)

	// Pointer over detached space (e.g. a display unplugged mid-drag).
	r.Route(Sample{Location: geometry.Point{X: 9999, Y: 9999}, Kind: KindMove})

	if a.resets != 1 || b.resets != 1 {
		t.Fatalf("expected both targets reset, got a=%d b=%d", a.resets, b.resets)
	}
	if len(a.moves) != 0 || len(b.moves) != 0 {
		t.Fatal("no moves should be forwarded for a contained-by-nothing sample")
	}
}

func TestRoute_DragSamplesGatedBySession(t *testing.T) {
	r, a, _ := twoMonitorRouter(false)
	r.Route(Sample{Location: geometry.Point{X: 700, Y: 10}, Kind: KindDragMove})
	if len(a.moves) != 0 {
		t.Fatal("drag sample forwarded without an active session")
	}

	r2, a2, _ := twoMonitorRouter(true)
	r2.Route(Sample{Location: geometry.Point{X: 700, Y: 10}, Kind: KindDragMove})
	if len(a2.moves) != 1 {
		t.Fatal("drag sample dropped despite active session")
	}
}

func TestUnregister_StopsRouting(t *testing.T) {
	r, a, b := twoMonitorRouter(false)
	r.Unregister("a")

	r.Route(Sample{Location: geometry.Point{X: 700, Y: 10}, Kind: KindMove})
	if len(a.moves) != 0 {
		t.Fatal("unregistered target still receiving samples")
	}
	// The point is over no remaining monitor, so b gets a reset.
	if b.resets != 1 {
		t.Fatalf("expected reset on remaining monitor, got %d", b.resets)
	}
}

func TestUpdateMonitor_ReplacesFrame(t *testing.T) {
	r, a, _ := twoMonitorRouter(false)
	r.UpdateMonitor(geometry.Monitor{ID: "a", Frame: geometry.Rect{X: 0, Y: 0, Width: 800, Height: 600}})

	r.Route(Sample{Location: geometry.Point{X: 700, Y: 10}, Kind: KindMove})
	if len(a.moves) != 1 {
		t.Fatal("sample inside updated frame not routed")
	}
	r.Route(Sample{Location: geometry.Point{X: 1000, Y: 10}, Kind: KindMove})
	if len(a.moves) != 1 {
		t.Fatal("sample outside updated frame still routed")
	}
}
