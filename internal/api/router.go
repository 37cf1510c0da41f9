package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the order API.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/orders", handler.CreateOrder)
	r.Get("/orders/{id}", handler.GetOrder)
	r.Post("/orders/{id}/submit", handler.SubmitOrder)
	r.Post("/orders/{id}/cancel", handler.CancelOrder)
	r.Post("/orders/{id}/start-delivery", handler.StartDelivery)
	r.Post("/orders/{id}/complete-delivery", handler.CompleteDelivery)
	r.Post("/orders/{id}/close", handler.CloseOrder)
	r.Get("/ws/orders", handler.ServeWS)

	return r
}
