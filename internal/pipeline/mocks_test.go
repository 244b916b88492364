package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/domain"
	"github.com/dvloznov/spend-signals/internal/reasoning"
)

// MockDatasetProvider is a mock implementation of DatasetProvider for testing.
type MockDatasetProvider struct {
	DatasetFunc func(ctx context.Context, userID string) (*analytics.Dataset, error)
}

func (m *MockDatasetProvider) Dataset(ctx context.Context, userID string) (*analytics.Dataset, error) {
	return m.DatasetFunc(ctx, userID)
}

// MockAssessmentStore is a mock implementation of AssessmentStore for testing.
type MockAssessmentStore struct {
	SaveAssessmentFunc func(ctx context.Context, a *domain.Assessment) error

	mu    sync.Mutex
	saved []*domain.Assessment
}

func (m *MockAssessmentStore) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	m.mu.Lock()
	m.saved = append(m.saved, a)
	m.mu.Unlock()
	if m.SaveAssessmentFunc != nil {
		return m.SaveAssessmentFunc(ctx, a)
	}
	return nil
}

// MockEvaluator is a mock implementation of reasoning.Evaluator for testing.
type MockEvaluator struct {
	EvaluateFunc func(ctx context.Context, candidate analytics.RawRecord, bundle *analytics.Bundle) (*reasoning.Verdict, error)
}

func (m *MockEvaluator) Evaluate(ctx context.Context, candidate analytics.RawRecord, bundle *analytics.Bundle) (*reasoning.Verdict, error) {
	return m.EvaluateFunc(ctx, candidate, bundle)
}

var fixedNow = time.Date(2024, 7, 31, 12, 0, 0, 0, time.UTC)

func testEngine() *analytics.Engine {
	cfg := analytics.DefaultConfig()
	cfg.Now = func() time.Time { return fixedNow }
	return analytics.NewEngine(cfg)
}

// testDataset builds two weeks of daily purchases.
func testDataset(t *testing.T) *analytics.Dataset {
	t.Helper()
	var records []analytics.RawRecord
	for day := 1; day <= 14; day++ {
		records = append(records, analytics.RawRecord{
			"timestamp":         time.Date(2024, 7, day, 12, 30, 0, 0, time.UTC),
			"amount":            float64(8 + day%3),
			"merchant":          "Cafe",
			"merchant_category": "Food",
		})
	}
	ds, err := testEngine().BuildDataset(context.Background(), records)
	require.NoError(t, err)
	return ds
}

func staticProvider(ds *analytics.Dataset) *MockDatasetProvider {
	return &MockDatasetProvider{DatasetFunc: func(ctx context.Context, userID string) (*analytics.Dataset, error) {
		return ds, nil
	}}
}

func testCandidate() analytics.RawRecord {
	return analytics.RawRecord{
		"timestamp":         "2024-07-15T13:00:00Z",
		"amount":            "9.50",
		"merchant":          "Cafe",
		"merchant_category": "Food",
	}
}
