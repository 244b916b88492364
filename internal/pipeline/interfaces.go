package pipeline

import (
	"context"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/domain"
)

// DatasetProvider returns the history snapshot of a user.
// snapshot.Cache is the production implementation.
type DatasetProvider interface {
	Dataset(ctx context.Context, userID string) (*analytics.Dataset, error)
}

// AssessmentStore persists scored candidates.
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, a *domain.Assessment) error
}
