// Package handler exposes the order lifecycle, reviews and statistics over
// HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/catering-orders/internal/domain/order"
	"github.com/xenking/catering-orders/internal/domain/review"
	"github.com/xenking/catering-orders/internal/domain/stats"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the /api routes.
type Handler struct {
	orders  *order.Service
	reviews *review.Service
	stats   *stats.Service
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(orders *order.Service, reviews *review.Service, stats *stats.Service) *Handler {
	return &Handler{
		orders:  orders,
		reviews: reviews,
		stats:   stats,
	}
}

// Register mounts the API under /api on r. Every route except the public
// testimonials requires authn.
func (h *Handler) Register(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/reviews", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Put("/orders/{id}", h.ModifyOrder)
			r.Delete("/orders/{id}", h.CancelOrder)
			r.Put("/orders/{id}/status", h.AdvanceStatus)
			r.Post("/orders/{id}/review", h.CreateReview)

			r.Put("/reviews/{id}", h.ModerateReview)

			r.Get("/stats/menus", h.MenuStats)
			r.Get("/stats/revenue", h.Revenue)
		})
	})
}
