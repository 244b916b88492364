package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/logger"
	"github.com/dvloznov/spend-signals/internal/reasoning"
)

// Deps are the collaborators of an Assessor. Evaluator and Store are
// optional.
type Deps struct {
	Engine    *analytics.Engine
	Datasets  DatasetProvider
	Evaluator reasoning.Evaluator
	Store     AssessmentStore
	Now       func() time.Time
}

// Assessor scores candidates of a user against the user's history.
type Assessor struct {
	assess *Pipeline
	score  *Pipeline
}

// NewAssessor wires the assessment and signals-only pipelines.
func NewAssessor(deps Deps) *Assessor {
	load := &LoadDatasetStep{Datasets: deps.Datasets}
	score := &ScoreStep{Engine: deps.Engine}

	return &Assessor{
		assess: NewPipeline(
			load,
			score,
			&EvaluateStep{Evaluator: deps.Evaluator},
			&StoreAssessmentStep{Store: deps.Store, Now: deps.Now},
		),
		score: NewPipeline(load, score),
	}
}

// Assess runs the full pipeline: load, score, evaluate and store.
func (a *Assessor) Assess(ctx context.Context, userID string, candidate analytics.RawRecord) (*PipelineState, error) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"user_id": userID})
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{UserID: userID, Candidate: candidate}
	if err := a.assess.Execute(ctx, state); err != nil {
		return nil, err
	}

	event := log.Info().
		Str("assessment_id", state.Assessment.AssessmentID).
		Bool("velocity_flag", state.Bundle.HighFreqLowVolume.Flag).
		Bool("stored", state.Stored)
	if state.Verdict != nil {
		event = event.Bool("anomaly", state.Verdict.Anomaly).Str("anomaly_type", state.Verdict.AnomalyType)
	}
	event.Msg("Assessed candidate")

	return state, nil
}

// Signals loads the snapshot and returns the bundle without evaluation or
// storage.
func (a *Assessor) Signals(ctx context.Context, userID string, candidate analytics.RawRecord) (*analytics.Bundle, error) {
	state := &PipelineState{UserID: userID, Candidate: candidate}
	if err := a.score.Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Bundle, nil
}
