package wingeom

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/events"
	"github.com/edgedock/edgedock/internal/geometry"
)

type directExec struct{}

func (directExec) Post(fn func()) { fn() }

type applyLog struct {
	frames []geometry.Rect
	ids    []string
	fail   bool
}

func (a *applyLog) apply(monitorID string, frame geometry.Rect) error {
	if a.fail {
		return errTestApply
	}
	a.ids = append(a.ids, monitorID)
	a.frames = append(a.frames, frame)
	return nil
}

var errTestApply = &applyError{}

type applyError struct{}

func (*applyError) Error() string { return "apply failed" }

func testFrame(monitorID string, height float64) geometry.Rect {
	return geometry.Rect{X: 420, Y: 0, Width: 600, Height: height}
}

func newTestSync(t *testing.T) (*Synchronizer, *control.ManualClock, *applyLog, *events.Bus) {
	t.Helper()
	clock := control.NewManualClock()
	bus := events.NewBus()
	log := &applyLog{}
	s := New(clock, directExec{}, bus, 50*time.Millisecond, testFrame, log.apply, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s, clock, log, bus
}

func TestRequestHeight_AppliesWhenQuiescent(t *testing.T) {
	s, _, log, _ := newTestSync(t)
	s.Register("m0", 32)

	s.RequestHeight("m0", 300)
	if len(log.frames) != 1 || log.frames[0].Height != 300 {
		t.Fatalf("expected one apply at 300, got %+v", log.frames)
	}
	if h, _ := s.Applied("m0"); h != 300 {
		t.Fatalf("applied = %v, want 300", h)
	}
}

func TestRequestHeight_BurstCoalescesToLatest(t *testing.T) {
	s, clock, log, _ := newTestSync(t)
	s.Register("m0", 32)

	s.RequestHeight("m0", 300)
	if len(log.frames) != 1 {
		t.Fatalf("priming apply missing: %+v", log.frames)
	}

	// A burst inside the throttle window.
	clock.Advance(10 * time.Millisecond)
	for _, h := range []float64{350, 400, 450, 500, 520} {
		s.RequestHeight("m0", h)
	}
	if len(log.frames) != 1 {
		t.Fatalf("burst applied eagerly: %d applies", len(log.frames))
	}
	// Expected is already the latest, even though nothing was applied.
	if h, _ := s.Expected("m0"); h != 520 {
		t.Fatalf("expected height = %v, want 520", h)
	}

	clock.Advance(50 * time.Millisecond)
	if len(log.frames) != 2 {
		t.Fatalf("expected exactly one deferred apply, got %d total", len(log.frames))
	}
	if log.frames[1].Height != 520 {
		t.Fatalf("deferred apply used %v, want the latest 520", log.frames[1].Height)
	}
}

func TestRequestHeight_NoiseFloorSkipsApply(t *testing.T) {
	s, clock, log, _ := newTestSync(t)
	s.Register("m0", 300)

	clock.Advance(time.Second)
	s.RequestHeight("m0", 305)
	if len(log.frames) != 0 {
		t.Fatalf("micro-jitter applied: %+v", log.frames)
	}
	// Expected still tracks the request.
	if h, _ := s.Expected("m0"); h != 305 {
		t.Fatalf("expected = %v, want 305", h)
	}
}

func TestRemove_CancelsPendingUpdate(t *testing.T) {
	s, clock, log, _ := newTestSync(t)
	s.Register("m0", 32)

	s.RequestHeight("m0", 300)
	clock.Advance(10 * time.Millisecond)
	s.RequestHeight("m0", 400) // deferred
	s.Remove("m0")

	clock.Advance(time.Second)
	if len(log.frames) != 1 {
		t.Fatalf("pending update survived removal: %d applies", len(log.frames))
	}
}

func TestForceApply_BypassesThrottleAndNoiseFloor(t *testing.T) {
	s, clock, log, _ := newTestSync(t)
	s.Register("m0", 300)

	clock.Advance(time.Second)
	s.ForceApply("m0", 305) // inside the noise floor, still applied
	if len(log.frames) != 1 || log.frames[0].Height != 305 {
		t.Fatalf("force apply skipped: %+v", log.frames)
	}

	s.ForceApply("m0", 400) // immediately again, throttle ignored
	if len(log.frames) != 2 || log.frames[1].Height != 400 {
		t.Fatalf("force apply throttled: %+v", log.frames)
	}
}

func TestApplyFailure_KeepsAppliedUnchanged(t *testing.T) {
	s, clock, log, _ := newTestSync(t)
	s.Register("m0", 32)
	log.fail = true

	clock.Advance(time.Second)
	s.RequestHeight("m0", 300)

	if h, _ := s.Applied("m0"); h != 32 {
		t.Fatalf("applied advanced despite failure: %v", h)
	}
	if h, _ := s.Expected("m0"); h != 300 {
		t.Fatalf("expected must still record the request: %v", h)
	}
}

func TestFrameAppliedEventPublished(t *testing.T) {
	s, clock, _, bus := newTestSync(t)
	var got []events.WindowFrameApplied
	bus.Subscribe(func(ev events.Event) {
		if e, ok := ev.(events.WindowFrameApplied); ok {
			got = append(got, e)
		}
	})

	s.Register("m0", 32)
	clock.Advance(time.Second)
	s.RequestHeight("m0", 300)

	if len(got) != 1 || got[0].MonitorID != "m0" || got[0].Frame.Height != 300 {
		t.Fatalf("unexpected WindowFrameApplied events: %+v", got)
	}
}
