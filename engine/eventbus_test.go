package engine

import "testing"

func TestEventBusFanOut(t *testing.T) {
	eb := NewEventBus()

	var all, filtered int
	eb.Subscribe(func(e Event) { all++ })
	eb.SubscribeTypes(func(e Event) { filtered++ }, EventTripCompleted)

	eb.Emit(Event{Type: EventTokenIssued})
	eb.Emit(Event{Type: EventTripCompleted})
	eb.Emit(Event{Type: EventTripCancelled})

	if all != 3 {
		t.Errorf("unfiltered handler saw %d events, want 3", all)
	}
	if filtered != 1 {
		t.Errorf("filtered handler saw %d events, want 1", filtered)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := NewEventBus()
	var n int
	id := eb.Subscribe(func(e Event) { n++ })

	eb.Emit(Event{Type: EventTokenIssued})
	eb.Unsubscribe(id)
	eb.Emit(Event{Type: EventTokenIssued})

	if n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}
}

func TestEventBusStampsTimestamp(t *testing.T) {
	eb := NewEventBus()
	var got Event
	eb.Subscribe(func(e Event) { got = e })
	eb.Emit(Event{Type: EventAllocation})
	if got.Timestamp.IsZero() {
		t.Error("emit should stamp a zero timestamp")
	}
}
