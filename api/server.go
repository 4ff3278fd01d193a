/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address from proxy headers
  3. RequestLogger: zap request logging (middleware.go)
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for frontend
  6. Authenticate:  Actor resolution, /api only (health excluded)

ROUTE GROUPS:
  /healthz              Liveness + storage ping (no auth)
  /api/time-records/*   Time records
  /api/reports/*        Daily and weekly reports
  /api/costs/*          Personal and project cost calculation
  /api/cost-reports/*   Frozen cost report snapshots
  /api/scenarios/*      Demo scenarios (only when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterOptions struct {
	Auth         AuthOptions
	AllowOrigins []string
	// Scenarios mounts the demo scenario routes.
	Scenarios bool
	Logger    *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   allowedHeaders(opts.Auth),
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.Auth))

		// Time record routes
		r.Route("/time-records", func(r chi.Router) {
			r.Get("/", h.ListTimeRecords)
			r.Post("/", h.CreateTimeRecord)
			r.Get("/statistics", h.TimeStatistics)
			r.Get("/work-types", h.ListWorkTypes)
			r.Post("/work-types", h.CreateWorkType)
			r.Get("/{id}", h.GetTimeRecord)
			r.Put("/{id}", h.UpdateTimeRecord)
			r.Delete("/{id}", h.DeleteTimeRecord)
			r.Post("/{id}/approve", h.DecideTimeRecord)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/statistics", h.ReportStatistics)

			r.Route("/daily", func(r chi.Router) {
				r.Get("/", h.ListDailyReports)
				r.Post("/", h.CreateDailyReport)
				r.Get("/{id}", h.GetDailyReport)
				r.Put("/{id}", h.UpdateDailyReport)
				r.Delete("/{id}", h.DeleteDailyReport)
				r.Post("/{id}/approve", h.DecideDailyReport)
			})

			r.Route("/weekly", func(r chi.Router) {
				r.Get("/", h.ListWeeklyReports)
				r.Post("/", h.CreateWeeklyReport)
				r.Get("/{id}", h.GetWeeklyReport)
				r.Put("/{id}", h.UpdateWeeklyReport)
				r.Delete("/{id}", h.DeleteWeeklyReport)
				r.Post("/{id}/approve", h.DecideWeeklyReport)
				r.Post("/{id}/recalculate", h.RecalculateWeeklyReport)
			})
		})

		// Cost routes
		r.Route("/costs", func(r chi.Router) {
			r.Get("/personal", h.ListCalculations)
			r.Post("/personal", h.CalculatePersonalCost)
			r.Get("/projects", h.ListProjectCosts)
			r.Post("/projects", h.CalculateProjectCost)
			r.Get("/statistics", h.CostStatistics)
		})

		// Cost report routes
		r.Route("/cost-reports", func(r chi.Router) {
			r.Get("/", h.ListCostReports)
			r.Post("/", h.GenerateCostReport)
			r.Get("/{id}", h.GetCostReport)
		})

		// Scenario routes
		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}

func allowedHeaders(auth AuthOptions) []string {
	headers := []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"}
	if auth.DevHeader != "" {
		headers = append(headers, auth.DevHeader)
	}
	return headers
}
