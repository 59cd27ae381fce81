// Package events carries the typed notifications the region controller
// publishes to its collaborators. The controller emits events, never
// commands; rendering and item handling live elsewhere.
package events

import (
	"sync"

	"github.com/edgedock/edgedock/internal/geometry"
)

// Event is implemented by every notification type.
type Event interface {
	event()
}

// HoverChanged reports a hover transition on one monitor.
type HoverChanged struct {
	MonitorID string
	Hovering  bool
}

// ExpandRequested asks the surrounding UI to expand the shelf on a monitor.
type ExpandRequested struct {
	MonitorID string
}

// CollapseRequested asks the surrounding UI to collapse the shelf.
type CollapseRequested struct {
	MonitorID string
}

// DragSessionChanged reports the start or end of an external drag.
type DragSessionChanged struct {
	Active   bool
	Location geometry.Point
}

// JiggleDetected reports an intentional shake gesture during a drag.
type JiggleDetected struct {
	Location geometry.Point
}

// WindowFrameApplied reports that a hosting window's frame was changed.
type WindowFrameApplied struct {
	MonitorID string
	Frame     geometry.Rect
}

// SettingsChanged reports that the configuration was reloaded.
type SettingsChanged struct{}

// DisplaysChanged reports a display attach/detach/reconfigure.
type DisplaysChanged struct{}

func (HoverChanged) event()       {}
func (ExpandRequested) event()    {}
func (CollapseRequested) event()  {}
func (DragSessionChanged) event() {}
func (JiggleDetected) event()     {}
func (WindowFrameApplied) event() {}
func (SettingsChanged) event()    {}
func (DisplaysChanged) event()    {}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine, which for controller-internal events is the
// control loop; they must not block.
type Handler func(Event)

// Bus is a minimal publish/subscribe fan-out. Subscriptions are persistent
// until explicitly removed; there is no one-shot re-arm.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
	order    []int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, oid := range b.order {
			if oid == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers ev to every handler in subscription order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		if h, ok := b.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}
