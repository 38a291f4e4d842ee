package engine

import (
	"sync"
	"time"
)

type EventType int

type SubscriberID int

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type subscriber struct {
	fn     func(Event)
	filter map[EventType]struct{}
}

// EventBus is the in-process fan-out between the queue, trips, the web
// layer and messaging. Delivery is synchronous on the emitter's
// goroutine; handlers must not block.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[SubscriberID]subscriber
	nextID      SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[SubscriberID]subscriber)}
}

// Subscribe registers a handler for all event types.
func (eb *EventBus) Subscribe(fn func(Event)) SubscriberID {
	return eb.subscribe(fn, nil)
}

// SubscribeTypes registers a handler for specific event types only.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	filter := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}
	return eb.subscribe(fn, filter)
}

func (eb *EventBus) subscribe(fn func(Event), filter map[EventType]struct{}) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.subscribers[eb.nextID] = subscriber{fn: fn, filter: filter}
	return eb.nextID
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.subscribers, id)
}

// Emit sends an event to every matching subscriber.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	subs := make([]subscriber, 0, len(eb.subscribers))
	for _, s := range eb.subscribers {
		subs = append(subs, s)
	}
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.filter != nil {
			if _, ok := s.filter[evt.Type]; !ok {
				continue
			}
		}
		s.fn(evt)
	}
}
