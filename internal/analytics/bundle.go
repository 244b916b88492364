package analytics

import "time"

// Bundle is the scoring output for one candidate. Its JSON form has the
// five signal keys plus a metadata object.
type Bundle struct {
	RollingAmount     Signal     `json:"rolling_amount"`
	BinHourAmount     Signal     `json:"bin_hour_amount"`
	MerchantCatAmount Signal     `json:"merchant_cat_amount"`
	MerchantAmount    Signal     `json:"merchant_amount"`
	HighFreqLowVolume FlagSignal `json:"high_freq_low_volume"`
	Metadata          Metadata   `json:"metadata"`
}

// Metadata describes how the bundle was derived.
type Metadata struct {
	HistoryRows                 int       `json:"history_rows"`
	WindowRows                  int       `json:"window_rows"`
	TypicalDailyCount           int       `json:"typical_daily_count"`
	WeekThreshold               int64     `json:"week_threshold"`
	InsufficientHistory         bool      `json:"insufficient_history"`
	CandidateTimestamp          time.Time `json:"candidate_timestamp"`
	CandidateTimestampDefaulted bool      `json:"candidate_timestamp_defaulted"`
}

// Signals returns the four z-score signals keyed by their bundle name.
func (b *Bundle) Signals() map[string]Signal {
	return map[string]Signal{
		"rolling_amount":      b.RollingAmount,
		"bin_hour_amount":     b.BinHourAmount,
		"merchant_cat_amount": b.MerchantCatAmount,
		"merchant_amount":     b.MerchantAmount,
	}
}

// UndefinedSignals lists the names of signals without a z-score.
func (b *Bundle) UndefinedSignals() []string {
	var out []string
	for _, name := range []string{"rolling_amount", "bin_hour_amount", "merchant_cat_amount", "merchant_amount"} {
		if !b.Signals()[name].ZScore.Valid {
			out = append(out, name)
		}
	}
	return out
}
