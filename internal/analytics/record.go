package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names understood in a RawRecord.
const (
	FieldTimestamp        = "timestamp"
	FieldAmount           = "amount"
	FieldMerchant         = "merchant"
	FieldMerchantCategory = "merchant_category"

	// DefaultLabel is used when merchant or category is missing.
	DefaultLabel = "Unknown"
)

// RawRecord is one transaction as delivered by a history source or a caller:
// a loosely typed JSON-like object. Extra keys are ignored.
type RawRecord map[string]interface{}

// TransactionRecord is a validated transaction fact.
type TransactionRecord struct {
	Timestamp        time.Time
	Amount           float64
	Merchant         string
	MerchantCategory string
}

// MerchantKey returns the normalized merchant used for comparisons.
func (r TransactionRecord) MerchantKey() string {
	return normalizeLabel(r.Merchant)
}

// CategoryKey returns the normalized merchant category used for comparisons.
func (r TransactionRecord) CategoryKey() string {
	return normalizeLabel(r.MerchantCategory)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// errFieldAbsent is an internal marker for a missing key or null value.
var errFieldAbsent = errors.New("field absent")

// ParseRecord validates a raw record. index is reported in errors (-1 for a
// candidate). Zone-less timestamps are read in loc.
func ParseRecord(raw RawRecord, index int, loc *time.Location) (TransactionRecord, error) {
	var rec TransactionRecord

	amount, err := parseAmount(raw[FieldAmount])
	switch {
	case errors.Is(err, errFieldAbsent):
		return rec, &MissingFieldError{Index: index, Field: FieldAmount}
	case err != nil:
		return rec, &InvalidAmountError{Index: index, Value: raw[FieldAmount]}
	}

	ts, err := parseTimestamp(raw[FieldTimestamp], loc)
	switch {
	case errors.Is(err, errFieldAbsent):
		return rec, &MissingFieldError{Index: index, Field: FieldTimestamp}
	case err != nil:
		return rec, &MissingFieldError{Index: index, Field: FieldTimestamp, Err: err}
	}

	rec.Timestamp = ts
	rec.Amount = amount
	rec.Merchant = labelField(raw, FieldMerchant)
	rec.MerchantCategory = labelField(raw, FieldMerchantCategory)
	return rec, nil
}

// DecimalAmount returns the amount of raw as entered, or zero when it is not
// a number. Callers validate with ParseRecord first.
func DecimalAmount(raw RawRecord) decimal.Decimal {
	switch v := raw[FieldAmount].(type) {
	case decimal.Decimal:
		return v
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

func parseAmount(v interface{}) (float64, error) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, errFieldAbsent
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return 0, err
		}
		f = d.InexactFloat64()
	case decimal.Decimal:
		f = val.InexactFloat64()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, errFieldAbsent
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, err
		}
		f = d.InexactFloat64()
	default:
		return 0, fmt.Errorf("amount has type %T, want number", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("amount %v out of range", f)
	}
	return f, nil
}

func parseTimestamp(v interface{}, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch val := v.(type) {
	case nil:
		return time.Time{}, errFieldAbsent
	case time.Time:
		if val.IsZero() {
			return time.Time{}, errFieldAbsent
		}
		return val.In(loc), nil
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, errFieldAbsent
		}
		return val.In(loc), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, errFieldAbsent
		}
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t.In(loc), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("timestamp has type %T, want string or time", v)
	}
}

func labelField(raw RawRecord, key string) string {
	if s, ok := raw[key].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return DefaultLabel
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
