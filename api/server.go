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
  4. CORS:       Cross-origin requests for the desktop frontend

ROUTE GROUPS:
  /api/balance/*     Balance runs, checks, audit rows
  /api/facilities/*  Facility definitions and history
  /api/runway        Days-of-operation estimate
  /api/pumps/*       Pump transfer simulation and apply
  /api/topology/*    Flow edges and validation
  /api/scenarios/*   Demo scenarios
  /api/reset         Database reset (dev only)

SECURITY NOTE:
  No authentication middleware. The engine is a desktop companion
  service expected to bind to localhost only.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		// Balance routes
		r.Route("/balance", func(r chi.Router) {
			r.Post("/run", h.RunBalance)
			r.Post("/check", h.CheckBalance)
			r.Get("/results", h.ListBalanceResults)
		})

		// Facility routes
		r.Route("/facilities", func(r chi.Router) {
			r.Get("/", h.ListFacilities)
			r.Get("/{code}", h.GetFacility)
			r.Get("/{code}/history", h.GetFacilityHistory)
			r.Post("/{code}/history", h.UpsertFacilityHistory)
		})

		// Operational routes
		r.Get("/runway", h.GetRunway)
		r.Route("/pumps", func(r chi.Router) {
			r.Get("/plan", h.GetPumpPlan)
			r.Post("/apply", h.ApplyPumpPlan)
		})

		// Topology routes
		r.Route("/topology", func(r chi.Router) {
			r.Get("/connections", h.ListConnections)
			r.Get("/validate", h.ValidateTopology)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Post("/reset", h.ResetDatabase)
		r.Get("/health", h.Health)
	})

	return r
}
