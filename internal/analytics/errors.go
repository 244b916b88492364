package analytics

import (
	"errors"
	"fmt"
)

// ErrEmptyHistory is returned when there are no usable history records to
// build a dataset from.
var ErrEmptyHistory = errors.New("analytics: empty transaction history")

// ErrInsufficientHistory marks a window that could not reach the requested
// size even after including the whole dataset. It is never returned by the
// engine; the condition is reported through Bundle.Metadata instead and the
// sentinel exists so callers can surface it as a warning.
var ErrInsufficientHistory = errors.New("analytics: insufficient history for window")

// InvalidAmountError is returned when an amount is non-numeric, non-finite or
// not strictly positive. Log-space statistics are undefined for such values.
type InvalidAmountError struct {
	Index int // position in the input, -1 for a candidate
	Value interface{}
}

func (e *InvalidAmountError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid candidate amount %v: must be a number > 0", e.Value)
	}
	return fmt.Sprintf("record %d: invalid amount %v: must be a number > 0", e.Index, e.Value)
}

// MissingFieldError is returned when a required field is absent or cannot be
// parsed.
type MissingFieldError struct {
	Index int // position in the input, -1 for a candidate
	Field string
	Err   error // parse failure, nil when the field is absent
}

func (e *MissingFieldError) Error() string {
	prefix := fmt.Sprintf("record %d", e.Index)
	if e.Index < 0 {
		prefix = "candidate"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: unparseable field %q: %v", prefix, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: missing required field %q", prefix, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is caused by a malformed record, as
// opposed to an empty history or an infrastructure failure.
func IsInputError(err error) bool {
	var amountErr *InvalidAmountError
	var fieldErr *MissingFieldError
	return errors.As(err, &amountErr) || errors.As(err, &fieldErr)
}
