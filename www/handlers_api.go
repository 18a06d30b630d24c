package www

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"warehouse/inventory"
	"warehouse/orders"
	"warehouse/store"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	fleetOK := h.engine.Fleet().Ping(ctx) == nil
	msgOK := false
	if c := h.engine.MsgClient(); c != nil {
		msgOK = c.IsConnected()
	}
	pending, err := h.engine.DB().CountPendingOutbox()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"status":         "ok",
		"fleet":          fleetOK,
		"messaging":      msgOK,
		"clients":        h.engine.Server().Sessions(),
		"robots":         h.engine.Pool().Size(),
		"outbox_pending": pending,
		"sse_clients":    h.eventHub.ClientCount(),
	})
}

func (h *Handlers) apiListDocks(w http.ResponseWriter, r *http.Request) {
	docks, err := h.engine.State().Bay.Snapshot(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonOK(w, docks)
}

func (h *Handlers) apiListInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.jsonOK(w, h.engine.Ledger().List())
		return
	}
	h.jsonOK(w, h.engine.Ledger().Find(q, inventory.NoID))
}

func (h *Handlers) apiGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	item, err := h.engine.Ledger().Get(id)
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, item)
}

func (h *Handlers) apiListOrders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "journal" {
		list, err := h.engine.DB().ListOrders(queryLimit(r, 100))
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.jsonOK(w, list)
		return
	}
	status := orders.Status(r.URL.Query().Get("status"))
	all := h.engine.Orders().List()
	list := make([]orders.Order, 0, len(all))
	for _, o := range all {
		if status == "" || o.Status == status {
			list = append(list, o)
		}
	}
	h.jsonOK(w, list)
}

type orderDetail struct {
	orders.Order
	History []*store.OrderHistory `json:"history"`
}

func (h *Handlers) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	num, err := strconv.ParseInt(chi.URLParam(r, "num"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid order number", http.StatusBadRequest)
		return
	}
	o, err := h.engine.Orders().Get(num)
	if errors.Is(err, orders.ErrNotFound) {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hist, err := h.engine.DB().ListOrderHistory(num)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, orderDetail{Order: o, History: hist})
}

func (h *Handlers) apiQueueDepths(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Pipeline().Depths())
}

func (h *Handlers) apiListRobots(w http.ResponseWriter, r *http.Request) {
	robots, err := h.engine.State().Roster.Robots(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonOK(w, robots)
}

func (h *Handlers) apiAddRobot(w http.ResponseWriter, r *http.Request) {
	id, err := h.engine.AddRobot()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int{"id": id})
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	f := store.AuditFilter{Limit: queryLimit(r, 100)}
	if entity := r.URL.Query().Get("entity"); entity != "" {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			h.jsonError(w, "entity filter needs a numeric id", http.StatusBadRequest)
			return
		}
		f = store.AuditFilter{EntityType: entity, EntityID: id}
	}
	entries, err := h.engine.DB().ListAudit(f)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiDockEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.DB().ListDockEvents(queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, events)
}

func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
