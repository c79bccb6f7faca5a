/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/staff/*       Staff and per-staff client listings
  /api/clients/*     Client tree, lifecycle flags, child records
  /api/history/*     KPI history ledger
  /api/retention/*   Sweep preview, export, execute
  /api/audit         Audit trail queries

SECURITY NOTE:
  No authentication middleware; the deployment fronts this service with the
  dashboard's auth proxy, which sets the X-Actor header.

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Staff routes
		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.Post("/", h.CreateStaff)
			r.Get("/{id}/clients", h.ListStaffClients)
		})

		// Client lifecycle and child records
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Post("/{id}/archive", h.ArchiveClient)
			r.Post("/{id}/unarchive", h.UnarchiveClient)
			r.Delete("/{id}", h.SoftDeleteClient)
			r.Post("/{id}/restore", h.RestoreClient)

			r.Put("/{id}/care-plan", h.SaveCarePlan)
			r.Post("/{id}/gfp-plans", h.SaveGFPPlan)
			r.Put("/{id}/weekly-docs", h.SaveWeeklyDoc)
			r.Put("/{id}/monthly-reports", h.SaveMonthlyReport)
			r.Put("/{id}/visma-weeks", h.SaveVismaWeek)

			r.Delete("/{id}/records/{kind}/{key}", h.SoftDeleteChild)
			r.Post("/{id}/records/{kind}/{key}/restore", h.RestoreChild)
		})

		// History ledger
		r.Route("/history", func(r chi.Router) {
			r.Post("/", h.UpsertHistory)
			r.Get("/", h.QueryHistory)
		})

		// Retention pipeline
		r.Route("/retention", func(r chi.Router) {
			r.Get("/preview", h.PreviewSweep)
			r.Get("/export", h.ExportSweep)
			r.Post("/execute", h.ExecuteSweep)
		})

		// Audit trail
		r.Get("/audit", h.QueryAudit)
	})

	return r
}
