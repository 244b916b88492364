// Package handlers implements the HTTP endpoints of the scoring API.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/api/middleware"
	"github.com/dvloznov/spend-signals/internal/logger"
	"github.com/dvloznov/spend-signals/internal/pipeline"
	"github.com/dvloznov/spend-signals/internal/reasoning"
)

// Assessor scores candidates of a user.
type Assessor interface {
	Assess(ctx context.Context, userID string, candidate analytics.RawRecord) (*pipeline.PipelineState, error)
	Signals(ctx context.Context, userID string, candidate analytics.RawRecord) (*analytics.Bundle, error)
}

// SnapshotInvalidator drops a user's cached history snapshot.
type SnapshotInvalidator interface {
	Invalidate(userID string)
}

// AssessmentsHandler handles scoring endpoints.
type AssessmentsHandler struct {
	assessor  Assessor
	snapshots SnapshotInvalidator
}

// NewAssessmentsHandler creates a new assessments handler.
func NewAssessmentsHandler(assessor Assessor, snapshots SnapshotInvalidator) *AssessmentsHandler {
	return &AssessmentsHandler{
		assessor:  assessor,
		snapshots: snapshots,
	}
}

// AssessmentResponse is the body of a successful assessment.
type AssessmentResponse struct {
	AssessmentID    string             `json:"assessment_id"`
	Bundle          *analytics.Bundle  `json:"bundle"`
	Verdict         *reasoning.Verdict `json:"verdict,omitempty"`
	EvaluationError string             `json:"evaluation_error,omitempty"`
	Stored          bool               `json:"stored"`
}

// Assess handles POST /api/users/{userID}/assessments
func (h *AssessmentsHandler) Assess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	userID := chi.URLParam(r, "userID")

	var candidate analytics.RawRecord
	if err := decodeJSON(r, &candidate); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.assessor.Assess(ctx, userID, candidate)
	if err != nil {
		writeScoringError(w, log, err, "Failed to assess candidate")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, AssessmentResponse{
		AssessmentID:    state.Assessment.AssessmentID,
		Bundle:          state.Bundle,
		Verdict:         state.Verdict,
		EvaluationError: state.EvaluationError,
		Stored:          state.Stored,
	})
}

// Signals handles POST /api/users/{userID}/signals
func (h *AssessmentsHandler) Signals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	userID := chi.URLParam(r, "userID")

	var candidate analytics.RawRecord
	if err := decodeJSON(r, &candidate); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	bundle, err := h.assessor.Signals(ctx, userID, candidate)
	if err != nil {
		writeScoringError(w, log, err, "Failed to score candidate")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, bundle)
}

// InvalidateSnapshot handles DELETE /api/users/{userID}/snapshot
func (h *AssessmentsHandler) InvalidateSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	h.snapshots.Invalidate(userID)

	log := logger.FromContext(r.Context())
	log.Info().Str("user_id", userID).Msg("Invalidated history snapshot")

	w.WriteHeader(http.StatusNoContent)
}
