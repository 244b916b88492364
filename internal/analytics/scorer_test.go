package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourWeekHistory returns 30 transactions between 2024-07-01 and 2024-07-28.
// Every Monday is a Tesco grocery shop with log-amount 3.5 and every Tuesday
// one with log-amount 2.5; other days are Starbucks coffee.
func fourWeekHistory() []RawRecord {
	start := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	var records []RawRecord
	for d := 0; d < 28; d++ {
		ts := start.AddDate(0, 0, d)
		switch d % 7 {
		case 0:
			records = append(records, RawRecord{"timestamp": ts, "amount": math.Exp(3.5), "merchant": "Tesco", "merchant_category": "Groceries"})
		case 1:
			records = append(records, RawRecord{"timestamp": ts, "amount": math.Exp(2.5), "merchant": "Tesco", "merchant_category": "Groceries"})
		default:
			records = append(records, RawRecord{"timestamp": ts, "amount": 3.0 + float64(d%5), "merchant": "Starbucks", "merchant_category": "Coffee"})
		}
	}
	for _, d := range []int{2, 3} {
		records = append(records, RawRecord{
			"timestamp":         start.AddDate(0, 0, d).Add(6 * time.Hour),
			"amount":            4.5,
			"merchant":          "Starbucks",
			"merchant_category": "Coffee",
		})
	}
	return records
}

func scoreCandidate(t *testing.T, engine *Engine, candidate RawRecord) *Bundle {
	t.Helper()
	ds, err := engine.BuildDataset(context.Background(), fourWeekHistory())
	require.NoError(t, err)
	require.Equal(t, 30, ds.Len())

	bundle, err := engine.Score(context.Background(), ds, candidate)
	require.NoError(t, err)
	return bundle
}

func TestScore_CategoryMeanGivesZeroZ(t *testing.T) {
	bundle := scoreCandidate(t, testEngine(), RawRecord{
		"timestamp":         "2024-07-28T20:00:00Z",
		"amount":            math.Exp(3.0),
		"merchant":          "Sainsbury's",
		"merchant_category": "groceries",
	})

	// one row per active day on average, so only the last week is used
	assert.Equal(t, 1, bundle.Metadata.TypicalDailyCount)
	assert.Equal(t, 7, bundle.Metadata.WindowRows)
	assert.Equal(t, 30, bundle.Metadata.HistoryRows)
	assert.False(t, bundle.Metadata.InsufficientHistory)

	require.True(t, bundle.MerchantCatAmount.ZScore.Valid)
	assert.InDelta(t, 0, bundle.MerchantCatAmount.ZScore.Float64, 1e-9)

	// no Sainsbury's in history
	assert.False(t, bundle.MerchantAmount.ZScore.Valid)
	// every row sits at 09:00, the candidate is in the 18:00-20:59 bin
	assert.False(t, bundle.BinHourAmount.ZScore.Valid)
	// a one-row rolling window has no deviation at its last position
	assert.False(t, bundle.RollingAmount.ZScore.Valid)
}

func TestScore_AbsentCategoryIsNull(t *testing.T) {
	bundle := scoreCandidate(t, testEngine(), RawRecord{
		"timestamp":         "2024-07-28T20:00:00Z",
		"amount":            120.0,
		"merchant":          "Currys",
		"merchant_category": "Electronics",
	})

	assert.False(t, bundle.MerchantCatAmount.ZScore.Valid)

	b, err := json.Marshal(bundle)
	require.NoError(t, err)

	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	for _, key := range []string{"rolling_amount", "bin_hour_amount", "merchant_cat_amount", "merchant_amount", "high_freq_low_volume", "metadata"} {
		assert.Contains(t, decoded, key)
	}
	assert.Nil(t, decoded["merchant_cat_amount"]["z_score"])
	assert.IsType(t, "", decoded["merchant_cat_amount"]["stats"])
	assert.IsType(t, false, decoded["high_freq_low_volume"]["flag"])
}

func TestScore_MerchantIsCaseInsensitive(t *testing.T) {
	for _, merchant := range []string{"STARBUCKS", " starbucks ", "Starbucks"} {
		t.Run(merchant, func(t *testing.T) {
			bundle := scoreCandidate(t, testEngine(), RawRecord{
				"timestamp":         "2024-07-28T20:00:00Z",
				"amount":            4.0,
				"merchant":          merchant,
				"merchant_category": "COFFEE",
			})
			assert.True(t, bundle.MerchantAmount.ZScore.Valid)
			assert.True(t, bundle.MerchantCatAmount.ZScore.Valid)
		})
	}
}

func TestScore_CandidateTimestampPolicy(t *testing.T) {
	now := time.Date(2024, 7, 28, 21, 0, 0, 0, time.UTC)

	t.Run("defaults to now", func(t *testing.T) {
		engine := testEngine(func(c *Config) { c.Now = func() time.Time { return now } })
		bundle := scoreCandidate(t, engine, RawRecord{"amount": 4.0, "merchant": "Starbucks"})
		assert.True(t, bundle.Metadata.CandidateTimestampDefaulted)
		assert.True(t, now.Equal(bundle.Metadata.CandidateTimestamp))
	})

	t.Run("reject policy", func(t *testing.T) {
		engine := testEngine(func(c *Config) { c.DefaultCandidateTimestamp = false })
		ds, err := engine.BuildDataset(context.Background(), fourWeekHistory())
		require.NoError(t, err)

		_, err = engine.Score(context.Background(), ds, RawRecord{"amount": 4.0})
		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, FieldTimestamp, missing.Field)
		assert.Equal(t, -1, missing.Index)
	})

	t.Run("unparseable timestamp is never defaulted", func(t *testing.T) {
		engine := testEngine()
		ds, err := engine.BuildDataset(context.Background(), fourWeekHistory())
		require.NoError(t, err)

		_, err = engine.Score(context.Background(), ds, RawRecord{"amount": 4.0, "timestamp": "soon"})
		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Error(t, missing.Err)
	})
}

func TestScore_Errors(t *testing.T) {
	engine := testEngine()
	ds, err := engine.BuildDataset(context.Background(), fourWeekHistory())
	require.NoError(t, err)

	tests := []struct {
		name      string
		ds        *Dataset
		candidate RawRecord
		check     func(t *testing.T, err error)
	}{
		{
			name:      "nil dataset",
			ds:        nil,
			candidate: RawRecord{"amount": 1.0, "timestamp": "2024-07-28T20:00:00Z"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyHistory)
			},
		},
		{
			name:      "negative amount",
			ds:        ds,
			candidate: RawRecord{"amount": -5.0, "timestamp": "2024-07-28T20:00:00Z"},
			check: func(t *testing.T, err error) {
				var invalid *InvalidAmountError
				require.True(t, errors.As(err, &invalid))
				assert.Equal(t, -1, invalid.Index)
			},
		},
		{
			name:      "missing amount",
			ds:        ds,
			candidate: RawRecord{"timestamp": "2024-07-28T20:00:00Z"},
			check: func(t *testing.T, err error) {
				var missing *MissingFieldError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, FieldAmount, missing.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Score(context.Background(), tt.ds, tt.candidate)
			tt.check(t, err)
		})
	}
}

func TestScore_WindowFollowsTypicalDailyCount(t *testing.T) {
	engine := testEngine()
	// four purchases on a single day: the window asks for four rows
	var records []RawRecord
	for h := 8; h < 12; h++ {
		records = append(records, RawRecord{
			"timestamp": time.Date(2024, 7, 1, h, 0, 0, 0, time.UTC),
			"amount":    float64(h),
		})
	}
	ds, err := engine.BuildDataset(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.TypicalDailyCount())

	bundle, err := engine.Score(context.Background(), ds, RawRecord{"amount": 9.0, "timestamp": "2024-07-01T12:00:00Z"})
	require.NoError(t, err)
	assert.False(t, bundle.Metadata.InsufficientHistory)
	assert.Equal(t, 4, bundle.Metadata.WindowRows)
	assert.True(t, bundle.RollingAmount.ZScore.Valid)
	assert.Contains(t, bundle.RollingAmount.Stats, "last 4 transactions")

	single, err := engine.BuildDataset(context.Background(), records[:1])
	require.NoError(t, err)
	bundle, err = engine.Score(context.Background(), single, RawRecord{"amount": 9.0, "timestamp": "2024-07-01T12:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, 1, bundle.Metadata.WindowRows)
	assert.False(t, bundle.RollingAmount.ZScore.Valid, "one row has no deviation")
	assert.False(t, bundle.HighFreqLowVolume.Flag)
}

func TestScore_DoesNotRetainState(t *testing.T) {
	engine := testEngine()
	ds, err := engine.BuildDataset(context.Background(), fourWeekHistory())
	require.NoError(t, err)

	candidate := RawRecord{"timestamp": "2024-07-28T20:00:00Z", "amount": 6.0, "merchant": "Starbucks", "merchant_category": "Coffee"}
	first, err := engine.Score(context.Background(), ds, candidate)
	require.NoError(t, err)
	_, err = engine.Score(context.Background(), ds, RawRecord{"timestamp": "2024-07-10T08:00:00Z", "amount": 900.0})
	require.NoError(t, err)
	again, err := engine.Score(context.Background(), ds, candidate)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, 30, ds.Len())
}
