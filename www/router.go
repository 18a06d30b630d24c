// Package www is the controller's status API: docks, inventory, orders,
// queues and robots as JSON, plus a server-sent event stream.
package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"warehouse/engine"
)

type Handlers struct {
	engine   *engine.Engine
	eventHub *EventHub
}

// NewRouter builds the HTTP handler. The returned func stops the event hub.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{engine: eng, eventHub: hub}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// SSE responses must not sit in a compression buffer.
	r.Get("/events", hub.SSEHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/health", h.apiHealthCheck)
		r.Get("/docks", h.apiListDocks)
		r.Get("/inventory", h.apiListInventory)
		r.Get("/inventory/{id}", h.apiGetItem)
		r.Get("/orders", h.apiListOrders)
		r.Get("/orders/{num}", h.apiGetOrder)
		r.Get("/queues", h.apiQueueDepths)
		r.Get("/robots", h.apiListRobots)
		r.Post("/robots", h.apiAddRobot)
		r.Get("/audit", h.apiAuditLog)
		r.Get("/dock-events", h.apiDockEvents)
	})

	return r, hub.Stop
}
