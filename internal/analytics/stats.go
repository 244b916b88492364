package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// NullFloat64 is a float64 that may be undefined. Undefined statistics (empty
// subsets, a single observation, zero deviation) are carried as Valid=false
// and serialise to JSON null. A valid value is always finite.
type NullFloat64 struct {
	Float64 float64
	Valid   bool
}

// Float wraps v, marking NaN and ±Inf as undefined.
func Float(v float64) NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat64{}
	}
	return NullFloat64{Float64: v, Valid: true}
}

// String renders the value for stats descriptions.
func (n NullFloat64) String() string {
	if !n.Valid {
		return "undefined"
	}
	return strconv.FormatFloat(n.Float64, 'f', 4, 64)
}

// MarshalJSON implements json.Marshaler.
func (n NullFloat64) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullFloat64) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullFloat64{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Float(f)
	return nil
}

// Signal is one z-score with the description of the baseline used.
type Signal struct {
	ZScore NullFloat64 `json:"z_score"`
	Stats  string      `json:"stats"`
}

// Mean returns the arithmetic mean, undefined for an empty series.
func Mean(values []float64) NullFloat64 {
	if len(values) == 0 {
		return NullFloat64{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Float(sum / float64(len(values)))
}

// StdDev returns the sample standard deviation (n-1 denominator), undefined
// for fewer than two values.
func StdDev(values []float64) NullFloat64 {
	if len(values) < 2 {
		return NullFloat64{}
	}
	mean := Mean(values).Float64
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return Float(math.Sqrt(ss / float64(len(values)-1)))
}

// ZScore standardises value against mean and std. The result is undefined
// when either input is undefined or std is zero; it never divides by zero.
func ZScore(value float64, mean, std NullFloat64, name string) Signal {
	stats := fmt.Sprintf("mean and std for %s are %s, %s", name, mean, std)
	if !mean.Valid || !std.Valid || std.Float64 == 0 {
		return Signal{Stats: stats}
	}
	return Signal{ZScore: Float((value - mean.Float64) / std.Float64), Stats: stats}
}

// RollingResult summarises a rolling window computation.
type RollingResult struct {
	Avg NullFloat64 // mean of the rolling means
	Std NullFloat64 // rolling standard deviation at the last position
}

// RollingStats computes trailing-window means and standard deviations over
// series, allowing partial windows at the start (minimum one observation).
func RollingStats(series []float64, window int) (RollingResult, string) {
	if window < 1 {
		window = 1
	}

	var result RollingResult
	if len(series) > 0 {
		means := make([]float64, len(series))
		for i := range series {
			start := i - window + 1
			if start < 0 {
				start = 0
			}
			means[i] = Mean(series[start : i+1]).Float64
		}
		lastStart := len(series) - window
		if lastStart < 0 {
			lastStart = 0
		}
		result.Avg = Mean(means)
		result.Std = StdDev(series[lastStart:])
	}

	stats := fmt.Sprintf("The rolling avg and standard deviation of amount in last %d transactions are %s, %s respectively.",
		window, result.Avg, result.Std)
	return result, stats
}
