package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one stored purchase of a user. Storage layers map their
// rows into this struct; history sources turn it into analytics records.
type Transaction struct {
	TransactionID    string
	UserID           string
	Timestamp        time.Time
	Amount           decimal.Decimal
	Currency         string
	Merchant         string
	MerchantCategory string
	Source           string // e.g. "csv", "receipt", "statement"
}

// Assessment is a scored candidate transaction, optionally with the verdict
// of the reasoning model.
type Assessment struct {
	AssessmentID     string
	UserID           string
	TransactionTS    time.Time
	Amount           decimal.Decimal
	Merchant         string
	MerchantCategory string

	// Bundle and Verdict hold the raw JSON documents.
	Bundle  json.RawMessage
	Verdict json.RawMessage

	VelocityFlag bool
	Anomaly      *bool
	AnomalyType  string
	Reason       string

	CreatedAt time.Time
}

// Flagged reports whether the assessment deserves attention: the reasoning
// model called it an anomaly, or the velocity rule fired.
func (a *Assessment) Flagged() bool {
	if a.Anomaly != nil && *a.Anomaly {
		return true
	}
	return a.VelocityFlag
}
