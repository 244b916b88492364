package analytics

import "fmt"

// FlagSignal is the outcome of the high-frequency / low-volume rule.
type FlagSignal struct {
	Flag  bool   `json:"flag"`
	Stats string `json:"stats"`

	ZTime   NullFloat64 `json:"-"`
	ZAmount NullFloat64 `json:"-"`
}

// Thresholds bound the velocity rule.
type Thresholds struct {
	Time   float64
	Amount float64
}

// VelocityRule flags a burst of small purchases: both z-scores must be
// defined and strictly below their thresholds.
func VelocityRule(zTime, zAmount NullFloat64, th Thresholds) bool {
	if !zTime.Valid || !zAmount.Valid {
		return false
	}
	return zTime.Float64 < th.Time && zAmount.Float64 < th.Amount
}

type slotKey struct {
	date string
	bin  int
}

type slotStats struct {
	amounts []float64
	diffs   []float64
}

// DetectHighFrequencyLowVolume compares the gap since the latest
// transaction in subset, and the candidate's log-amount, with the
// distributions of per-slot means, where a slot is one hour bin of one
// calendar date.
func DetectHighFrequencyLowVolume(subset WindowSubset, candidate EnrichedTransaction, th Thresholds) FlagSignal {
	order := make([]slotKey, 0)
	slots := make(map[slotKey]*slotStats)
	for i := 0; i < subset.Len(); i++ {
		row := subset.At(i)
		key := slotKey{date: row.DateKey(), bin: row.HourBin}
		s, ok := slots[key]
		if !ok {
			s = &slotStats{}
			slots[key] = s
			order = append(order, key)
		}
		s.amounts = append(s.amounts, row.LogAmount)
		if row.TimeDiff.Valid {
			s.diffs = append(s.diffs, row.TimeDiff.Float64)
		}
	}

	amountMeans := make([]float64, 0, len(order))
	timeMeans := make([]float64, 0, len(order))
	for _, key := range order {
		s := slots[key]
		amountMeans = append(amountMeans, Mean(s.amounts).Float64)
		if m := Mean(s.diffs); m.Valid {
			timeMeans = append(timeMeans, m.Float64)
		}
	}

	var timeDelta NullFloat64
	if latest, ok := subset.Latest(); ok {
		timeDelta = Float(candidate.Timestamp.Sub(latest.Timestamp).Seconds())
	}

	meanTime, stdTime := Mean(timeMeans), StdDev(timeMeans)
	meanAmount, stdAmount := Mean(amountMeans), StdDev(amountMeans)

	zTime := ZScore(timeDelta.Float64, meanTime, stdTime, "time").ZScore
	if !timeDelta.Valid {
		zTime = NullFloat64{}
	}
	zAmount := ZScore(candidate.LogAmount, meanAmount, stdAmount, "amount").ZScore

	flag := VelocityRule(zTime, zAmount, th)
	stats := fmt.Sprintf(
		"For hour bin %d, mean and std of time between transactions are %s, %s and of amount are %s, %s; "+
			"time gap z-score %s (threshold %g), amount z-score %s (threshold %g).",
		candidate.HourBin, meanTime, stdTime, meanAmount, stdAmount,
		zTime, th.Time, zAmount, th.Amount)

	return FlagSignal{Flag: flag, Stats: stats, ZTime: zTime, ZAmount: zAmount}
}
