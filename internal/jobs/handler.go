package jobs

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/logger"
	"github.com/dvloznov/spend-signals/internal/metrics"
)

// DatasetProvider returns the history snapshot of a user.
type DatasetProvider interface {
	Dataset(ctx context.Context, userID string) (*analytics.Dataset, error)
}

// NewScoreBatchHandler returns a handler that scores every candidate of a
// batch against one snapshot, at most concurrency at a time. A candidate
// that fails validation is recorded in its result and does not fail the
// job; a history load failure does, so the queue retries it.
func NewScoreBatchHandler(engine *analytics.Engine, datasets DatasetProvider, concurrency int) JobHandler {
	if concurrency < 1 {
		concurrency = 1
	}

	return func(ctx context.Context, job Job) error {
		batch, ok := job.(*ScoreBatchJob)
		if !ok {
			return fmt.Errorf("unsupported job type %q", job.GetType())
		}

		log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
			"job_id":  batch.JobID,
			"user_id": batch.UserID,
		})
		ctx = logger.WithContext(ctx, log)

		ds, err := datasets.Dataset(ctx, batch.UserID)
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}

		results := make([]CandidateResult, len(batch.Candidates))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for i, candidate := range batch.Candidates {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				results[i].Index = i
				bundle, err := engine.Score(gctx, ds, candidate)
				if err != nil {
					metrics.ObserveFailure(err)
					results[i].Error = err.Error()
					return nil
				}
				metrics.ObserveBundle(bundle, time.Since(start))
				results[i].Bundle = bundle
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("scoring batch: %w", err)
		}

		var summary BatchSummary
		for _, r := range results {
			switch {
			case r.Error != "":
				summary.Failed++
			case r.Bundle.HighFreqLowVolume.Flag:
				summary.Scored++
				summary.Flagged++
			default:
				summary.Scored++
			}
		}
		batch.Results = results
		batch.Summary = summary

		log.Info().
			Int("scored", summary.Scored).
			Int("failed", summary.Failed).
			Int("flagged", summary.Flagged).
			Msg("Scored batch")
		return nil
	}
}
