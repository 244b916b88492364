// Package api assembles the HTTP routes of the scoring service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dvloznov/spend-signals/internal/api/handlers"
	"github.com/dvloznov/spend-signals/internal/api/middleware"
	"github.com/dvloznov/spend-signals/internal/jobs"
	"github.com/dvloznov/spend-signals/internal/metrics"
)

// RouterDeps are the services behind the routes.
type RouterDeps struct {
	Assessor  handlers.Assessor
	Snapshots handlers.SnapshotInvalidator
	Publisher jobs.Publisher
	JobStore  jobs.JobStore

	// Limiter throttles /api routes when set.
	Limiter *rate.Limiter
}

// NewRouter builds the chi router with middleware applied.
func NewRouter(deps RouterDeps, log zerolog.Logger) http.Handler {
	assessments := handlers.NewAssessmentsHandler(deps.Assessor, deps.Snapshots)
	jobsHandler := handlers.NewJobsHandler(deps.Publisher, deps.JobStore)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.RequestID(log))
	r.Use(middleware.CORS)

	r.Route("/api", func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(middleware.RateLimit(deps.Limiter))
		}

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/assessments", assessments.Assess)
			r.Post("/signals", assessments.Signals)
			r.Delete("/snapshot", assessments.InvalidateSnapshot)
			r.Post("/batches", jobsHandler.EnqueueBatch)
		})

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{jobID}", jobsHandler.GetJob)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})

	return r
}
