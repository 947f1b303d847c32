/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/contracts/*   Contract activation and plan listing
  /api/lines/*       Delivery and return events
  /api/plans/*       Plan detail, status lifecycle, manual items
  /api/admin/*       Extension sweep trigger
  /healthz           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.ActivateContract)
			r.Get("/{id}", h.GetContract)
			r.Get("/{id}/plans", h.ListContractPlans)
			r.Post("/{id}/recalculate", h.RecalculateContract)
		})

		// Rental line routes
		r.Route("/lines", func(r chi.Router) {
			r.Post("/{id}/delivery", h.RecordDelivery)
			r.Post("/{id}/return", h.RecordReturn)
		})

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/{id}", h.GetPlan)
			r.Post("/{id}/status", h.TransitionPlan)
			r.Post("/{id}/items", h.AddManualItem)
			r.Delete("/{id}/items/{itemID}", h.RemoveManualItem)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/extension-sweep", h.TriggerExtensionSweep)
		})
	})

	// Liveness probe
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
