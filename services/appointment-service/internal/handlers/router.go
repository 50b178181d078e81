package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Trio-Ads/saloneo/libs/httpx"
)

type Routes struct {
	Booking *BookingHandler
	Public  *PublicHandler
	Stats   *StatsHandler
	// PublicMiddleware wraps only the token-gated routes, typically rate
	// limiting and CORS.
	PublicMiddleware []httpx.Middleware
}

func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/schedule", rt.Booking.Schedule)
		r.Get("/slots", rt.Booking.Slots)
		r.Get("/availability", rt.Booking.Availability)

		r.Post("/prebookings", rt.Booking.CreatePreBooking)
		r.Delete("/prebookings/{id}", rt.Booking.DeletePreBooking)

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", rt.Booking.List)
			r.Post("/", rt.Booking.Create)
			r.Get("/overdue", rt.Booking.Overdue)
			r.Post("/reconcile", rt.Booking.Reconcile)
			r.Post("/reload", rt.Booking.Reload)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.Booking.Get)
				r.Patch("/", rt.Booking.Update)
				r.Post("/confirm", rt.Booking.Confirm)
				r.Post("/cancel", rt.Booking.Cancel)
				r.Post("/complete", rt.Booking.Complete)
				r.Post("/no-show", rt.Booking.NoShow)
			})
		})

		r.Get("/stats", rt.Stats.Global)
		r.Get("/clients/{clientID}/stats", rt.Stats.Client)

		r.Route("/public", func(r chi.Router) {
			for _, m := range rt.PublicMiddleware {
				r.Use(m)
			}
			r.Get("/appointments/{token}", rt.Public.View)
			r.Get("/modifications/{token}", rt.Public.Validate)
			r.Post("/modifications/{token}/modify", rt.Public.Modify)
			r.Post("/modifications/{token}/cancel", rt.Public.Cancel)
		})
	})
	return r
}
