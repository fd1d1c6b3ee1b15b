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
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/packages/*       Billing package management
  /api/enrollments/*    Enrollments, schedules, payments, balances
  /api/schedules/*      Direct schedule settlement
  /api/students/*       Student number allocation
  /api/admin/*          Overdue updater trigger

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
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

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/packages", func(r chi.Router) {
			r.Get("/", h.ListPackages)
			r.Post("/", h.CreatePackage)
			r.Get("/{id}", h.GetPackage)
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", h.ListEnrollments)
			r.Post("/", h.CreateEnrollment)
			r.Get("/{id}", h.GetEnrollment)
			r.Get("/{id}/schedules", h.ListSchedules)
			r.Post("/{id}/schedules", h.RegenerateSchedules)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/balance", h.GetBalance)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/adjustments", h.RecordAdjustment)
			r.Post("/{id}/refunds", h.RecordRefund)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/{id}/pay", h.MarkSchedulePaid)
		})

		r.Route("/students", func(r chi.Router) {
			r.Post("/numbers", h.GenerateStudentNumber)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/overdue/run", h.RunOverdueUpdate)
		})
	})

	return r
}
