package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/reasoning"
)

type recordingStep struct {
	name  string
	calls *[]string
	err   error
}

func (s *recordingStep) Execute(ctx context.Context, state *PipelineState) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestPipeline_Execute(t *testing.T) {
	var calls []string
	boom := errors.New("boom")

	p := NewPipeline(
		&recordingStep{name: "a", calls: &calls},
		&recordingStep{name: "b", calls: &calls, err: boom},
		&recordingStep{name: "c", calls: &calls},
	)
	err := p.Execute(context.Background(), &PipelineState{})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "pipeline step 2 failed: boom", err.Error())
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestEvaluateStep(t *testing.T) {
	bundle := &analytics.Bundle{}

	t.Run("no evaluator", func(t *testing.T) {
		state := &PipelineState{Bundle: bundle}
		require.NoError(t, (&EvaluateStep{}).Execute(context.Background(), state))
		assert.Nil(t, state.Verdict)
	})

	t.Run("verdict", func(t *testing.T) {
		ev := &MockEvaluator{EvaluateFunc: func(ctx context.Context, c analytics.RawRecord, b *analytics.Bundle) (*reasoning.Verdict, error) {
			assert.Same(t, bundle, b)
			return &reasoning.Verdict{Anomaly: true, AnomalyType: reasoning.TypeStressEating, Reason: "late"}, nil
		}}
		state := &PipelineState{Bundle: bundle}
		require.NoError(t, (&EvaluateStep{Evaluator: ev}).Execute(context.Background(), state))
		require.NotNil(t, state.Verdict)
		assert.Equal(t, reasoning.TypeStressEating, state.Verdict.AnomalyType)
	})

	t.Run("model failure is not fatal", func(t *testing.T) {
		ev := &MockEvaluator{EvaluateFunc: func(ctx context.Context, c analytics.RawRecord, b *analytics.Bundle) (*reasoning.Verdict, error) {
			return nil, errors.New("quota exceeded")
		}}
		state := &PipelineState{Bundle: bundle}
		require.NoError(t, (&EvaluateStep{Evaluator: ev}).Execute(context.Background(), state))
		assert.Nil(t, state.Verdict)
		assert.Equal(t, "quota exceeded", state.EvaluationError)
	})
}

func TestNewAssessment(t *testing.T) {
	bundle := &analytics.Bundle{
		HighFreqLowVolume: analytics.FlagSignal{Flag: true},
		Metadata:          analytics.Metadata{CandidateTimestamp: fixedNow},
	}
	state := &PipelineState{
		UserID:    "u1",
		Candidate: analytics.RawRecord{"amount": json.Number("12.30"), "merchant": "  Cafe "},
		Bundle:    bundle,
		Verdict:   &reasoning.Verdict{Anomaly: false, AnomalyType: reasoning.TypeNone, Reason: "Normal Transaction"},
	}

	a, err := newAssessment(state, fixedNow)
	require.NoError(t, err)

	assert.NotEmpty(t, a.AssessmentID)
	assert.True(t, a.Amount.Equal(decimal.RequireFromString("12.3")))
	assert.Equal(t, "Cafe", a.Merchant)
	assert.Equal(t, analytics.DefaultLabel, a.MerchantCategory)
	assert.True(t, a.VelocityFlag)
	require.NotNil(t, a.Anomaly)
	assert.False(t, *a.Anomaly)
	assert.True(t, a.Flagged())
	assert.JSONEq(t, `{"anomaly":false,"anomaly_type":"None","reason":"Normal Transaction"}`, string(a.Verdict))
	assert.Contains(t, string(a.Bundle), `"high_freq_low_volume"`)
}

func TestNewAssessment_NoBundle(t *testing.T) {
	_, err := newAssessment(&PipelineState{}, fixedNow)
	assert.Error(t, err)
}

