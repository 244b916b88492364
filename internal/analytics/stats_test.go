package analytics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAndStdDev(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		wantMean  NullFloat64
		wantStd   NullFloat64
		tolerance float64
	}{
		{
			name:     "empty",
			values:   nil,
			wantMean: NullFloat64{},
			wantStd:  NullFloat64{},
		},
		{
			name:     "single value",
			values:   []float64{4},
			wantMean: Float(4),
			wantStd:  NullFloat64{},
		},
		{
			name:     "sample deviation",
			values:   []float64{2, 4, 4, 4, 5, 5, 7, 9},
			wantMean: Float(5),
			wantStd:  Float(math.Sqrt(32.0 / 7.0)),
		},
		{
			name:     "constant series",
			values:   []float64{3, 3, 3},
			wantMean: Float(3),
			wantStd:  Float(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean := Mean(tt.values)
			std := StdDev(tt.values)

			assert.Equal(t, tt.wantMean.Valid, mean.Valid)
			assert.InDelta(t, tt.wantMean.Float64, mean.Float64, 1e-12)
			assert.Equal(t, tt.wantStd.Valid, std.Valid)
			assert.InDelta(t, tt.wantStd.Float64, std.Float64, 1e-12)
		})
	}
}

func TestZScore(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		mean, std NullFloat64
		wantValid bool
		want      float64
	}{
		{name: "regular", value: 6, mean: Float(4), std: Float(2), wantValid: true, want: 1},
		{name: "below mean", value: 1, mean: Float(4), std: Float(2), wantValid: true, want: -1.5},
		{name: "zero std", value: 6, mean: Float(4), std: Float(0), wantValid: false},
		{name: "undefined std", value: 6, mean: Float(4), std: NullFloat64{}, wantValid: false},
		{name: "undefined mean", value: 6, mean: NullFloat64{}, std: Float(1), wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := ZScore(tt.value, tt.mean, tt.std, "amount")
			require.Equal(t, tt.wantValid, sig.ZScore.Valid)
			if tt.wantValid {
				assert.InDelta(t, tt.want, sig.ZScore.Float64, 1e-12)
			}
			assert.False(t, math.IsInf(sig.ZScore.Float64, 0))
			assert.False(t, math.IsNaN(sig.ZScore.Float64))
			assert.Contains(t, sig.Stats, "mean and std for amount are")
		})
	}
}

func TestZScore_DescriptionRendersUndefined(t *testing.T) {
	sig := ZScore(1, NullFloat64{}, NullFloat64{}, "merchant")
	assert.Equal(t, "mean and std for merchant are undefined, undefined", sig.Stats)
}

func TestRollingStats(t *testing.T) {
	t.Run("window of one", func(t *testing.T) {
		res, stats := RollingStats([]float64{1, 2, 3}, 1)
		require.True(t, res.Avg.Valid)
		assert.InDelta(t, 2.0, res.Avg.Float64, 1e-12)
		assert.False(t, res.Std.Valid, "std of a single observation is undefined")
		assert.Contains(t, stats, "last 1 transactions")
	})

	t.Run("partial windows at the start", func(t *testing.T) {
		res, _ := RollingStats([]float64{1, 2, 3}, 2)
		// rolling means are 1, 1.5, 2.5
		assert.InDelta(t, 5.0/3.0, res.Avg.Float64, 1e-12)
		assert.InDelta(t, math.Sqrt(0.5), res.Std.Float64, 1e-12)
	})

	t.Run("window larger than series", func(t *testing.T) {
		res, _ := RollingStats([]float64{2, 4}, 5)
		// rolling means are 2, 3
		assert.InDelta(t, 2.5, res.Avg.Float64, 1e-12)
		assert.InDelta(t, math.Sqrt(2), res.Std.Float64, 1e-12)
	})

	t.Run("empty series", func(t *testing.T) {
		res, stats := RollingStats(nil, 3)
		assert.False(t, res.Avg.Valid)
		assert.False(t, res.Std.Valid)
		assert.Contains(t, stats, "undefined, undefined")
	})

	t.Run("non-positive window treated as one", func(t *testing.T) {
		res, _ := RollingStats([]float64{5, 7}, 0)
		assert.InDelta(t, 6.0, res.Avg.Float64, 1e-12)
		assert.False(t, res.Std.Valid)
	})
}

func TestNullFloat64JSON(t *testing.T) {
	sig := Signal{ZScore: NullFloat64{}, Stats: "s"}
	b, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z_score":null,"stats":"s"}`, string(b))

	sig.ZScore = Float(-1.25)
	b, err = json.Marshal(sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z_score":-1.25,"stats":"s"}`, string(b))

	var back Signal
	require.NoError(t, json.Unmarshal([]byte(`{"z_score":null,"stats":"x"}`), &back))
	assert.False(t, back.ZScore.Valid)
}

func TestFloat_RejectsNonFinite(t *testing.T) {
	assert.False(t, Float(math.NaN()).Valid)
	assert.False(t, Float(math.Inf(1)).Valid)
	assert.False(t, Float(math.Inf(-1)).Valid)
	assert.True(t, Float(0).Valid)
}
