package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tradewind/internal/orders"
	"tradewind/internal/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Handler serves the order API. Submit only declares the saga; callers watch
// the order's state (or the websocket feed) for the outcome.
type Handler struct {
	service  *orders.Service
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logf     func(format string, args ...any)
}

// NewHandler constructs the handler. The hub may be nil, disabling the
// websocket endpoint. A nil logf falls back to log.Printf.
func NewHandler(service *orders.Service, hub *realtime.Hub, logf func(string, ...any)) *Handler {
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{
		service: service,
		hub:     hub,
		logf:    logf,
	}
}

// CreateOrder persists a new OPEN order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items := make([]orders.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	order, err := h.service.Create(r.Context(), req.CustomerID, items)
	if err != nil {
		if errors.Is(err, orders.ErrCustomerRequired) || errors.Is(err, orders.ErrItemsRequired) || errors.Is(err, orders.ErrInvalidItem) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "create_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder returns a single order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SubmitOrder declares the submit-order saga for an OPEN order and returns
// 202 with the saga id. The order state is unchanged until the saga lands.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	sagaID, err := h.service.Submit(r.Context(), orderID)
	if err != nil {
		h.writeTransitionError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{SagaID: sagaID, OrderID: orderID})
}

// CancelOrder moves an OPEN order to CANCELLED.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

// StartDelivery moves a SUBMITTED order to ON_DELIVERY.
func (h *Handler) StartDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.StartDelivery)
}

// CompleteDelivery moves an ON_DELIVERY order to DELIVERED.
func (h *Handler) CompleteDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteDelivery)
}

// CloseOrder moves a DELIVERED order to CLOSED.
func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Close)
}

// ServeWS upgrades the connection and registers it with the hub for order
// state pushes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotFound, "realtime_disabled", "")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf("api: websocket upgrade: %v", err)
		return
	}
	h.hub.Register <- conn
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id string) (orders.Order, error)) {
	orderID := chi.URLParam(r, "id")
	order, err := apply(r.Context(), orderID)
	if err != nil {
		h.writeTransitionError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, orderID string, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "")
	case errors.Is(err, orders.ErrConflict):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	default:
		h.logf("api: order %s: %v", orderID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
