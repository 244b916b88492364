package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/spend-signals/internal/logger"
)

// Score computes the anomaly bundle of candidate against ds. It is a pure
// function of its inputs.
func (e *Engine) Score(ctx context.Context, ds *Dataset, candidate RawRecord) (*Bundle, error) {
	log := logger.FromContext(ctx)

	if ds.Len() == 0 {
		return nil, ErrEmptyHistory
	}

	rec, defaulted, err := e.parseCandidate(candidate)
	if err != nil {
		return nil, fmt.Errorf("Score: %w", err)
	}
	cand := e.enrich(rec)

	window := ds.TypicalDailyCount()
	subset := SelectWindow(ds, cand.WeekIndex, window)
	if subset.Insufficient() {
		log.Warn().
			Int("window", window).
			Int("rows", subset.Len()).
			Msg("History smaller than scoring window")
	}

	rolling, rollingStats := RollingStats(subset.LogAmounts(nil), window)

	merchant := cand.MerchantKey()
	category := cand.CategoryKey()

	bundle := &Bundle{
		RollingAmount: ZScoreSignal(cand.LogAmount, rolling.Avg, rolling.Std, rollingStats),
		BinHourAmount: e.conditioned(subset, cand.LogAmount, "amount in hour bin", func(r EnrichedTransaction) bool {
			return r.HourBin == cand.HourBin
		}),
		MerchantCatAmount: e.conditioned(subset, cand.LogAmount, "amount in merchant category", func(r EnrichedTransaction) bool {
			return r.CategoryKey() == category
		}),
		MerchantAmount: e.conditioned(subset, cand.LogAmount, "amount at merchant", func(r EnrichedTransaction) bool {
			return r.MerchantKey() == merchant
		}),
		HighFreqLowVolume: DetectHighFrequencyLowVolume(subset, cand, Thresholds{
			Time:   e.cfg.TimeZThreshold,
			Amount: e.cfg.AmountZThreshold,
		}),
		Metadata: Metadata{
			HistoryRows:                 ds.Len(),
			WindowRows:                  subset.Len(),
			TypicalDailyCount:           window,
			WeekThreshold:               subset.WeekThreshold(),
			InsufficientHistory:         subset.Insufficient(),
			CandidateTimestamp:          cand.Timestamp,
			CandidateTimestampDefaulted: defaulted,
		},
	}

	log.Debug().
		Int("window_rows", subset.Len()).
		Bool("velocity_flag", bundle.HighFreqLowVolume.Flag).
		Strs("undefined", bundle.UndefinedSignals()).
		Msg("Scored candidate")

	return bundle, nil
}

// ZScoreSignal standardises value against a precomputed baseline and keeps
// the given description.
func ZScoreSignal(value float64, mean, std NullFloat64, stats string) Signal {
	sig := ZScore(value, mean, std, "")
	sig.Stats = stats
	return sig
}

func (e *Engine) conditioned(subset WindowSubset, value float64, name string, keep func(EnrichedTransaction) bool) Signal {
	series := subset.LogAmounts(keep)
	return ZScore(value, Mean(series), StdDev(series), name)
}

func (e *Engine) parseCandidate(raw RawRecord) (TransactionRecord, bool, error) {
	rec, err := ParseRecord(raw, -1, e.cfg.Location)
	if err == nil {
		return rec, false, nil
	}

	var missing *MissingFieldError
	if !errors.As(err, &missing) || missing.Field != FieldTimestamp || missing.Err != nil || !e.cfg.DefaultCandidateTimestamp {
		return rec, false, err
	}

	withNow := make(RawRecord, len(raw)+1)
	for k, v := range raw {
		withNow[k] = v
	}
	withNow[FieldTimestamp] = e.cfg.Now()
	rec, err = ParseRecord(withNow, -1, e.cfg.Location)
	return rec, true, err
}
