package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dvloznov/spend-signals/internal/logger"
)

// Config holds the tunable parts of the engine.
type Config struct {
	// TimeZThreshold and AmountZThreshold are the strict upper bounds used by
	// the high-frequency / low-volume rule.
	TimeZThreshold   float64
	AmountZThreshold float64

	// LenientHistory skips history records with a missing or unparseable
	// timestamp instead of failing the whole load.
	LenientHistory bool

	// DefaultCandidateTimestamp substitutes Now() for a candidate without a
	// timestamp. When false such candidates are rejected.
	DefaultCandidateTimestamp bool

	// Location is used for calendar fields and zone-less timestamps.
	Location *time.Location

	// Now is the clock used for defaulted candidate timestamps.
	Now func() time.Time
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TimeZThreshold:            -2,
		AmountZThreshold:          -3,
		DefaultCandidateTimestamp: true,
		Location:                  time.UTC,
		Now:                       time.Now,
	}
}

// Engine builds datasets and scores candidates. It keeps no state between
// calls and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine, filling unset clock and location.
func NewEngine(cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// EnrichedTransaction is a TransactionRecord with derived features.
type EnrichedTransaction struct {
	TransactionRecord

	LogAmount float64
	Month     int
	Week      int   // ISO week of year
	WeekIndex int64 // weeks since the Monday before the Unix epoch
	Day       int   // day of month
	Hour      int
	Weekday   time.Weekday
	HourBin   int // Hour / 3, in [0, 7]

	// TimeDiff is the gap in seconds to the previous record; invalid on the
	// first record.
	TimeDiff NullFloat64
}

// DateKey identifies the calendar date of the transaction.
func (t EnrichedTransaction) DateKey() string {
	return t.Timestamp.Format("2006-01-02")
}

// Dataset is an immutable, time-ordered set of enriched transactions.
type Dataset struct {
	rows              []EnrichedTransaction
	typicalDailyCount int
	skipped           int
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// At returns the i-th row in time order.
func (d *Dataset) At(i int) EnrichedTransaction {
	return d.rows[i]
}

// Rows returns a copy of all rows.
func (d *Dataset) Rows() []EnrichedTransaction {
	out := make([]EnrichedTransaction, len(d.rows))
	copy(out, d.rows)
	return out
}

// TypicalDailyCount is the rounded mean number of records per active
// calendar date, at least 1.
func (d *Dataset) TypicalDailyCount() int {
	return d.typicalDailyCount
}

// Skipped reports how many records lenient preprocessing dropped.
func (d *Dataset) Skipped() int {
	return d.skipped
}

// Latest returns the timestamp of the most recent row.
func (d *Dataset) Latest() time.Time {
	if d.Len() == 0 {
		return time.Time{}
	}
	return d.rows[len(d.rows)-1].Timestamp
}

// BuildDataset validates, enriches and sorts raw history. The input is not
// modified.
func (e *Engine) BuildDataset(ctx context.Context, records []RawRecord) (*Dataset, error) {
	log := logger.FromContext(ctx)

	if len(records) == 0 {
		return nil, ErrEmptyHistory
	}

	parsed := make([]TransactionRecord, 0, len(records))
	skipped := 0
	for i, raw := range records {
		rec, err := ParseRecord(raw, i, e.cfg.Location)
		if err != nil {
			var missing *MissingFieldError
			if e.cfg.LenientHistory && errors.As(err, &missing) {
				log.Warn().Err(err).Int("index", i).Msg("Skipping history record")
				skipped++
				continue
			}
			return nil, fmt.Errorf("BuildDataset: %w", err)
		}
		parsed = append(parsed, rec)
	}

	if len(parsed) == 0 {
		return nil, ErrEmptyHistory
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].Timestamp.Before(parsed[j].Timestamp)
	})

	rows := make([]EnrichedTransaction, len(parsed))
	dates := make(map[string]struct{})
	for i, rec := range parsed {
		rows[i] = e.enrich(rec)
		if i > 0 {
			rows[i].TimeDiff = Float(rec.Timestamp.Sub(parsed[i-1].Timestamp).Seconds())
		}
		dates[rows[i].DateKey()] = struct{}{}
	}

	typical := int(math.Round(float64(len(rows)) / float64(len(dates))))
	if typical < 1 {
		typical = 1
	}

	log.Debug().
		Int("rows", len(rows)).
		Int("skipped", skipped).
		Int("typical_daily_count", typical).
		Msg("Built history dataset")

	return &Dataset{rows: rows, typicalDailyCount: typical, skipped: skipped}, nil
}

// Enrich derives the features of a single record in the engine's location.
func (e *Engine) Enrich(rec TransactionRecord) EnrichedTransaction {
	return e.enrich(rec)
}

func (e *Engine) enrich(rec TransactionRecord) EnrichedTransaction {
	ts := rec.Timestamp.In(e.cfg.Location)
	rec.Timestamp = ts
	_, isoWeek := ts.ISOWeek()
	return EnrichedTransaction{
		TransactionRecord: rec,
		LogAmount:         math.Log(rec.Amount),
		Month:             int(ts.Month()),
		Week:              isoWeek,
		WeekIndex:         weekIndex(ts),
		Day:               ts.Day(),
		Hour:              ts.Hour(),
		Weekday:           ts.Weekday(),
		HourBin:           ts.Hour() / 3,
	}
}

// weekIndex numbers Monday-aligned weeks of the local calendar. The epoch
// was a Thursday, so shifting by three days aligns week starts on Monday.
func weekIndex(ts time.Time) int64 {
	y, m, d := ts.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	return floorDiv(days+3, 7)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
