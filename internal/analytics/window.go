package analytics

import "sort"

// WindowSubset is a read-only suffix of a Dataset.
type WindowSubset struct {
	rows          []EnrichedTransaction
	weekThreshold int64
	window        int
	exhausted     bool
}

// Len returns the number of rows in the subset.
func (w WindowSubset) Len() int { return len(w.rows) }

// At returns the i-th row in time order.
func (w WindowSubset) At(i int) EnrichedTransaction { return w.rows[i] }

// WeekThreshold is the lowest week index included.
func (w WindowSubset) WeekThreshold() int64 { return w.weekThreshold }

// Exhausted reports whether every week of history had to be included.
func (w WindowSubset) Exhausted() bool { return w.exhausted }

// Insufficient reports whether the subset holds fewer rows than requested.
func (w WindowSubset) Insufficient() bool { return len(w.rows) < w.window }

// Window returns the requested minimum size.
func (w WindowSubset) Window() int { return w.window }

// LogAmounts returns the log-amount series of rows accepted by keep, or of
// all rows when keep is nil.
func (w WindowSubset) LogAmounts(keep func(EnrichedTransaction) bool) []float64 {
	out := make([]float64, 0, len(w.rows))
	for _, r := range w.rows {
		if keep == nil || keep(r) {
			out = append(out, r.LogAmount)
		}
	}
	return out
}

// Latest returns the timestamp of the most recent row in the subset.
func (w WindowSubset) Latest() (EnrichedTransaction, bool) {
	if len(w.rows) == 0 {
		return EnrichedTransaction{}, false
	}
	return w.rows[len(w.rows)-1], true
}

// SelectWindow returns the smallest suffix of ds, aligned to week
// boundaries at or below targetWeek, that holds at least window rows.
// Rows after targetWeek are always included. When the full dataset is
// still smaller than window it is returned whole with Exhausted set.
func SelectWindow(ds *Dataset, targetWeek int64, window int) WindowSubset {
	if window < 1 {
		window = 1
	}
	if ds.Len() == 0 {
		return WindowSubset{weekThreshold: targetWeek, window: window, exhausted: true}
	}

	rows := ds.rows
	suffixFrom := func(threshold int64) int {
		return sort.Search(len(rows), func(i int) bool {
			return rows[i].WeekIndex >= threshold
		})
	}

	threshold := targetWeek
	start := suffixFrom(threshold)
	// start is the first row of the current threshold week, so rows[start-1]
	// (if any) belongs to the next distinct week below it.
	for len(rows)-start < window && start > 0 {
		threshold = rows[start-1].WeekIndex
		start = suffixFrom(threshold)
	}

	return WindowSubset{
		rows:          rows[start:len(rows):len(rows)],
		weekThreshold: threshold,
		window:        window,
		exhausted:     start == 0 && len(rows) < window,
	}
}
