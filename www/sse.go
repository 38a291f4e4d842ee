package www

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"gasflow/engine"
)

type SSEEvent struct {
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	select {
	case h.stopChan <- struct{}{}:
	default:
	}
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- evt:
				default:
					// drop if full
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- SSEEvent{Event: "keepalive", Data: "ping"}:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: data}:
	default:
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners wires engine events to SSE broadcasts, feeding the
// station queue boards and trip screens.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TokenIssuedEvent)
		h.Broadcast("queue-update", fmt.Sprintf(`{"type":"issued","station_id":%d,"token_no":"%s","seq":%d}`, ev.StationID, ev.TokenNo, ev.Seq))
	}, engine.EventTokenIssued)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TokenCancelledEvent)
		h.Broadcast("queue-update", fmt.Sprintf(`{"type":"cancelled","token_no":"%s"}`, ev.TokenNo))
	}, engine.EventTokenCancelled)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.AllocationEvent)
		h.Broadcast("queue-update", fmt.Sprintf(`{"type":"allocated","station_id":%d,"trip_id":%d,"driver_id":%d}`, ev.OriginStationID, ev.TripID, ev.DriverID))
	}, engine.EventAllocation)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.RequestApprovedEvent)
		h.Broadcast("request-update", fmt.Sprintf(`{"type":"approved","request_id":%d,"station_id":%d}`, ev.RequestID, ev.StationID))
	}, engine.EventRequestApproved)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.AssignmentExpiredEvent)
		h.Broadcast("request-update", fmt.Sprintf(`{"type":"assignment_expired","request_id":%d,"driver_id":%d}`, ev.RequestID, ev.DriverID))
	}, engine.EventAssignmentExpired)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TripStepChangedEvent)
		h.Broadcast("trip-update", fmt.Sprintf(`{"type":"step","trip":"%s","step":%d,"status":"%s"}`, ev.PublicID, ev.NewStep, ev.Status))
	}, engine.EventTripStepChanged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TripCompletedEvent)
		h.Broadcast("trip-update", fmt.Sprintf(`{"type":"completed","trip":"%s","delivered_kg":%.1f}`, ev.PublicID, ev.DeliveredKg))
	}, engine.EventTripCompleted)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.TripCancelledEvent)
		h.Broadcast("trip-update", fmt.Sprintf(`{"type":"cancelled","trip":"%s"}`, ev.PublicID))
	}, engine.EventTripCancelled)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"connected"}`)
	}, engine.EventMessagingConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"disconnected"}`)
	}, engine.EventMessagingDisconnected)
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
