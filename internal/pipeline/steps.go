package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/domain"
	"github.com/dvloznov/spend-signals/internal/logger"
	"github.com/dvloznov/spend-signals/internal/metrics"
	"github.com/dvloznov/spend-signals/internal/reasoning"
)

// PipelineStep represents a single step in the assessment pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID    string
	Candidate analytics.RawRecord

	Dataset *analytics.Dataset
	Bundle  *analytics.Bundle

	Verdict *reasoning.Verdict
	// EvaluationError is set when the reasoning model failed. The
	// assessment is still stored without a verdict.
	EvaluationError string

	Assessment *domain.Assessment
	Stored     bool
}

// Step 1: LoadDatasetStep fetches the user's history snapshot.
type LoadDatasetStep struct {
	Datasets DatasetProvider
}

func (s *LoadDatasetStep) Execute(ctx context.Context, state *PipelineState) error {
	ds, err := s.Datasets.Dataset(ctx, state.UserID)
	if err != nil {
		return err
	}
	state.Dataset = ds
	return nil
}

// Step 2: ScoreStep computes the signal bundle of the candidate.
type ScoreStep struct {
	Engine *analytics.Engine
}

func (s *ScoreStep) Execute(ctx context.Context, state *PipelineState) error {
	start := time.Now()
	bundle, err := s.Engine.Score(ctx, state.Dataset, state.Candidate)
	if err != nil {
		metrics.ObserveFailure(err)
		return err
	}
	metrics.ObserveBundle(bundle, time.Since(start))
	state.Bundle = bundle
	return nil
}

// Step 3: EvaluateStep asks the reasoning model for a verdict. It does
// nothing without an evaluator, and a model failure does not fail the run.
type EvaluateStep struct {
	Evaluator reasoning.Evaluator
}

func (s *EvaluateStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Evaluator == nil {
		return nil
	}

	verdict, err := s.Evaluator.Evaluate(ctx, state.Candidate, state.Bundle)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("user_id", state.UserID).Msg("Reasoning model failed")
		state.EvaluationError = err.Error()
		return nil
	}
	metrics.ObserveVerdict(verdict.AnomalyType)
	state.Verdict = verdict
	return nil
}

// Step 4: StoreAssessmentStep builds the assessment record and saves it
// when a store is configured.
type StoreAssessmentStep struct {
	Store AssessmentStore
	Now   func() time.Time
}

func (s *StoreAssessmentStep) Execute(ctx context.Context, state *PipelineState) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	a, err := newAssessment(state, now())
	if err != nil {
		return err
	}
	state.Assessment = a

	if s.Store == nil {
		return nil
	}
	if err := s.Store.SaveAssessment(ctx, a); err != nil {
		return fmt.Errorf("saving assessment %s: %w", a.AssessmentID, err)
	}
	state.Stored = true
	return nil
}

func newAssessment(state *PipelineState, createdAt time.Time) (*domain.Assessment, error) {
	if state.Bundle == nil {
		return nil, fmt.Errorf("newAssessment: no bundle")
	}

	bundleJSON, err := json.Marshal(state.Bundle)
	if err != nil {
		return nil, fmt.Errorf("newAssessment: marshal bundle: %w", err)
	}

	a := &domain.Assessment{
		AssessmentID:     uuid.NewString(),
		UserID:           state.UserID,
		TransactionTS:    state.Bundle.Metadata.CandidateTimestamp,
		Amount:           analytics.DecimalAmount(state.Candidate),
		Merchant:         candidateLabel(state.Candidate, analytics.FieldMerchant),
		MerchantCategory: candidateLabel(state.Candidate, analytics.FieldMerchantCategory),
		Bundle:           bundleJSON,
		VelocityFlag:     state.Bundle.HighFreqLowVolume.Flag,
		CreatedAt:        createdAt.UTC(),
	}

	if v := state.Verdict; v != nil {
		verdictJSON, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("newAssessment: marshal verdict: %w", err)
		}
		anomaly := v.Anomaly
		a.Verdict = verdictJSON
		a.Anomaly = &anomaly
		a.AnomalyType = v.AnomalyType
		a.Reason = v.Reason
	}
	return a, nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
