package events

import "testing"

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		bus.Subscribe(func(Event) { got = append(got, i) })
	}

	bus.Publish(HoverChanged{MonitorID: "m0", Hovering: true})

	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("delivery order = %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	count := 0
	unsub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(SettingsChanged{})
	unsub()
	bus.Publish(SettingsChanged{})

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestHandlersSeeTypedEvents(t *testing.T) {
	bus := NewBus()
	var seen []string
	bus.Subscribe(func(ev Event) {
		switch e := ev.(type) {
		case ExpandRequested:
			seen = append(seen, "expand:"+e.MonitorID)
		case CollapseRequested:
			seen = append(seen, "collapse:"+e.MonitorID)
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	})

	bus.Publish(ExpandRequested{MonitorID: "m0"})
	bus.Publish(CollapseRequested{MonitorID: "m1"})

	if len(seen) != 2 || seen[0] != "expand:m0" || seen[1] != "collapse:m1" {
		t.Fatalf("seen = %v", seen)
	}
}
