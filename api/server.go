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
  /api/students/*          Students + ledger statements
  /api/classes, /api/subjects, /api/fee-categories, /api/transport-routes
  /api/bills, /api/payments
  /api/exams, /api/exam-details, /api/results
  /api/scenarios/*         Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Get("/{id}/ledger", h.GetLedger)
		})

		// Academic structure routes
		r.Route("/classes", func(r chi.Router) {
			r.Get("/", h.ListClasses)
			r.Post("/", h.CreateClass)
		})
		r.Route("/subjects", func(r chi.Router) {
			r.Get("/", h.ListSubjects)
			r.Post("/", h.CreateSubject)
		})

		// Fee definition routes
		r.Route("/fee-categories", func(r chi.Router) {
			r.Get("/", h.ListFeeCategories)
			r.Post("/", h.CreateFeeCategory)
		})
		r.Route("/transport-routes", func(r chi.Router) {
			r.Get("/", h.ListTransportRoutes)
			r.Post("/", h.CreateTransportRoute)
		})

		// Finance routes
		r.Route("/bills", func(r chi.Router) {
			r.Post("/", h.CreateBill)
			r.Get("/{number}", h.GetBill)
		})
		r.Post("/payments", h.CreatePayment)

		// Exam routes
		r.Route("/exams", func(r chi.Router) {
			r.Get("/", h.ListExams)
			r.Post("/", h.CreateExam)
			r.Post("/{id}/publish", h.PublishExam)
			r.Get("/{id}/classes/{classID}/rankings", h.GetRankings)
		})
		r.Post("/exam-details", h.CreateExamDetail)

		// Result routes
		r.Route("/results", func(r chi.Router) {
			r.Post("/", h.RecordResult)
			r.Put("/", h.UpdateResult)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
