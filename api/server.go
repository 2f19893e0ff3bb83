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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/auth/*        Login (public)
  /api/admin/*       Admin surface, gated on the admin token
  /api/technician/*  Technician surface, gated on a live technician token

SEE ALSO:
  - handlers.go, reports.go: Handler implementations
  - auth.go: RequireAdmin / RequireTechnician gates
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

	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.TechnicianLogin)
			r.Post("/admin/login", h.AdminLogin)
		})

		// Admin surface
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Route("/countries", func(r chi.Router) {
				r.Get("/", h.ListCountries)
				r.Post("/", h.SaveCountry)
			})
			r.Route("/cities", func(r chi.Router) {
				r.Get("/", h.ListCities)
				r.Post("/", h.SaveCity)
			})
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.ListClients)
				r.Post("/", h.SaveClient)
				r.Put("/{id}/active", h.SetClientActive)
			})
			r.Route("/data-centers", func(r chi.Router) {
				r.Get("/", h.ListDataCenters)
				r.Post("/", h.SaveDataCenter)
				r.Put("/{id}/active", h.SetDataCenterActive)
			})
			r.Route("/client-data-centers", func(r chi.Router) {
				r.Post("/", h.LinkClientDataCenter)
				r.Delete("/", h.UnlinkClientDataCenter)
			})
			r.Route("/ft-companies", func(r chi.Router) {
				r.Get("/", h.ListFTCompanies)
				r.Post("/", h.SaveFTCompany)
				r.Get("/{id}", h.GetFTCompany)
				r.Put("/{id}/active", h.SetFTCompanyActive)
			})
			r.Route("/client-engineers", func(r chi.Router) {
				r.Get("/", h.ListClientEngineers)
				r.Post("/", h.SaveClientEngineer)
				r.Delete("/{id}", h.DeleteClientEngineer)
				r.Put("/{id}/active", h.SetClientEngineerActive)
			})
			r.Route("/rates", func(r chi.Router) {
				r.Get("/", h.ListRates)
				r.Post("/", h.SaveRate)
				r.Delete("/{id}", h.DeleteRate)
			})
			r.Route("/technicians", func(r chi.Router) {
				r.Get("/", h.ListTechnicians)
				r.Post("/", h.CreateTechnician)
				r.Get("/{id}", h.GetTechnician)
				r.Put("/{id}", h.UpdateTechnician)
				r.Put("/{id}/active", h.SetTechnicianActive)
			})
			r.Route("/reports", func(r chi.Router) {
				r.Get("/daily", h.DailyWorkReport)
				r.Get("/summary", h.WorkSummaryReport)
				r.Get("/detailed", h.DetailedWorkLogReport)
				r.Get("/data-center-work", h.DataCenterWorkReport)
				r.Get("/data-center-durations", h.DataCenterDurationReport)
			})
		})

		// Technician surface
		r.Route("/technician", func(r chi.Router) {
			r.Use(h.RequireTechnician)

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", h.ListMyEntries)
				r.Post("/", h.CreateEntry)
				r.Put("/{id}", h.UpdateEntry)
			})
			r.Get("/data-centers", h.PermittedDataCenters)
			r.Get("/countries", h.PermittedCountries)
			r.Get("/cities", h.PermittedCities)
			r.Get("/co-technicians", h.CoTechnicians)
			r.Get("/client-engineers", h.ClientEngineers)
		})
	})

	return r
}
