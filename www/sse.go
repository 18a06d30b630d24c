package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"warehouse/engine"
)

// SSEEvent is one message on the stream. ID is the engine event sequence,
// or empty for keepalives.
type SSEEvent struct {
	ID    string
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	keepalive time.Duration
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
		keepalive: 30 * time.Second,
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.fanOut(evt)
		case <-keepalive.C:
			h.fanOut(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

// fanOut drops the event for any client whose buffer is full.
func (h *EventHub) fanOut(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *EventHub) Broadcast(evt SSEEvent) {
	select {
	case h.broadcast <- evt:
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

// eventStreams maps engine events to the SSE event name clients listen on.
var eventStreams = map[engine.EventType]string{
	engine.EventOrderConfirmed:        "order-update",
	engine.EventOrderStatusChanged:    "order-update",
	engine.EventLowStock:              "inventory-update",
	engine.EventRestocked:             "inventory-update",
	engine.EventTruckDocked:           "dock-update",
	engine.EventDockAssigned:          "dock-update",
	engine.EventDockDone:              "dock-update",
	engine.EventRobotAdded:            "robot-update",
	engine.EventFleetConnected:        "system-status",
	engine.EventFleetDisconnected:     "system-status",
	engine.EventMessagingConnected:    "system-status",
	engine.EventMessagingDisconnected: "system-status",
}

// SetupEngineListeners wires engine events to SSE broadcasts. Each data line
// is {"type": <event>, "data": <payload>}.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	types := make([]engine.EventType, 0, len(eventStreams))
	for t := range eventStreams {
		types = append(types, t)
	}
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		data, err := json.Marshal(struct {
			Type string `json:"type"`
			Data any    `json:"data"`
		}{evt.Type.String(), evt.Payload})
		if err != nil {
			log.Printf("sse: encode %s: %v", evt.Type, err)
			return
		}
		h.Broadcast(SSEEvent{
			ID:    strconv.FormatUint(evt.Seq, 10),
			Event: eventStreams[evt.Type],
			Data:  string(data),
		})
	}, types...)
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
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if evt.ID != "" {
				fmt.Fprintf(w, "id: %s\n", evt.ID)
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
