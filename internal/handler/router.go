package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the optional parts of the HTTP surface.
type RouterConfig struct {
	// StaticDir, when set, is served at the root.
	StaticDir string
	// AdminToken guards /api/admin; empty disables it.
	AdminToken string
}

// NewRouter builds the full HTTP surface.
func NewRouter(h *BookingHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/services", h.ListServices)
		r.Get("/services/{id}/slots", h.ListSlots)

		// The gateway is not a logged-in user; the notification is
		// authenticated by its hash.
		r.Post("/payments/payu/callback", h.PayUCallback)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/bookings", h.CreateBooking)
			r.Get("/bookings", h.ListBookings)
			r.Get("/bookings/{id}", h.GetBooking)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(cfg.AdminToken))
			r.Get("/reviews", h.ListReviews)
		})
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return r
}
