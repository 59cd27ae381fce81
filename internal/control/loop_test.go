package control

import (
	"context"
	"testing"
	"time"
)

type inlineExec struct{}

func (inlineExec) Post(fn func()) { fn() }

func TestLoopRunsPostedWorkInOrder(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	loop.Call(func() {})

	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}

	cancel()
	<-done
}

func TestLoopDrainsQueueOnCancel(t *testing.T) {
	loop := NewLoop()
	ran := false
	loop.Post(func() { ran = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx)

	if !ran {
		t.Fatal("queued work dropped at shutdown")
	}
}

func TestPostAfterShutdownIsDropped(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx)

	loop.Post(func() { t.Fatal("ran after shutdown") })
}

func TestScheduleFiresOnExecutor(t *testing.T) {
	clock := NewManualClock()
	fired := 0
	Schedule(clock, inlineExec{}, 100*time.Millisecond, func() { fired++ })

	clock.Advance(99 * time.Millisecond)
	if fired != 0 {
		t.Fatal("fired early")
	}
	clock.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	clock.Advance(time.Second)
	if fired != 1 {
		t.Fatal("one-shot timer fired again")
	}
}

func TestCancelSuppressesFire(t *testing.T) {
	clock := NewManualClock()
	h := Schedule(clock, inlineExec{}, 50*time.Millisecond, func() {
		t.Fatal("canceled work ran")
	})
	h.Cancel()
	if !h.Canceled() {
		t.Fatal("Canceled() = false after Cancel")
	}
	clock.Advance(time.Second)
}

func TestCancelAfterTimerFireStillSuppresses(t *testing.T) {
	// The timer callback may have been posted before Cancel; the flag check
	// at execution time must still win.
	clock := NewManualClock()
	var posted []func()
	deferExec := execFunc(func(fn func()) { posted = append(posted, fn) })

	fired := false
	h := Schedule(clock, deferExec, 10*time.Millisecond, func() { fired = true })
	clock.Advance(10 * time.Millisecond)
	h.Cancel()
	for _, fn := range posted {
		fn()
	}
	if fired {
		t.Fatal("work ran despite cancel before execution")
	}
}

type execFunc func(fn func())

func (f execFunc) Post(fn func()) { f(fn) }

func TestManualClockFiresInDeadlineOrder(t *testing.T) {
	clock := NewManualClock()
	var got []string
	clock.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	clock.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	clock.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })

	clock.Advance(time.Second)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("fire order = %v", got)
	}
}

func TestManualTimerStop(t *testing.T) {
	clock := NewManualClock()
	timer := clock.AfterFunc(10*time.Millisecond, func() {
		t.Fatal("stopped timer fired")
	})
	if !timer.Stop() {
		t.Fatal("first Stop = false")
	}
	if timer.Stop() {
		t.Fatal("second Stop = true")
	}
	clock.Advance(time.Second)
}
