package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/api/middleware"
	"github.com/dvloznov/spend-signals/internal/jobs"
	"github.com/dvloznov/spend-signals/internal/logger"
)

// maxBatchSize caps the candidates of one batch.
const maxBatchSize = 10000

// JobsHandler handles batch and job endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
	}
}

type batchRequest struct {
	Candidates []analytics.RawRecord `json:"candidates"`
}

// EnqueueBatch handles POST /api/users/{userID}/batches
func (h *JobsHandler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	userID := chi.URLParam(r, "userID")

	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Candidates) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "candidates is required")
		return
	}
	if len(req.Candidates) > maxBatchSize {
		middleware.WriteError(w, http.StatusBadRequest, "too many candidates")
		return
	}

	// The queue owns the job once published, so the response uses the
	// values set here.
	jobID := uuid.New().String()
	job := &jobs.ScoreBatchJob{
		JobID:      jobID,
		UserID:     userID,
		Candidates: req.Candidates,
		Status:     jobs.JobStatusPending,
	}
	if err := h.publisher.PublishScoreBatch(ctx, job); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue batch")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue batch")
		return
	}

	log.Info().
		Str("job_id", jobID).
		Str("user_id", userID).
		Int("candidates", len(req.Candidates)).
		Msg("Batch enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     jobID,
		"status":     jobs.JobStatusPending,
		"candidates": len(req.Candidates),
	})
}

// GetJob handles GET /api/jobs/{jobID}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	jobID := chi.URLParam(r, "jobID")

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ScoreBatchJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
