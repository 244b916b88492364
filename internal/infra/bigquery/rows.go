package bigquery

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spend-signals/internal/domain"
)

// numericScale is the fractional precision of a BigQuery NUMERIC.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	TransactionTS   time.Time  `bigquery:"transaction_ts"`   // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED, partition column

	Amount   *big.Rat            `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency bigquery.NullString `bigquery:"currency"` // NULLABLE

	Merchant         bigquery.NullString `bigquery:"merchant"`          // NULLABLE
	MerchantCategory bigquery.NullString `bigquery:"merchant_category"` // NULLABLE
	Source           bigquery.NullString `bigquery:"source"`            // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type AssessmentRow struct {
	AssessmentID string `bigquery:"assessment_id"` // REQUIRED
	UserID       string `bigquery:"user_id"`       // REQUIRED

	TransactionTS    time.Time           `bigquery:"transaction_ts"`    // REQUIRED
	Amount           *big.Rat            `bigquery:"amount"`            // REQUIRED NUMERIC
	Merchant         bigquery.NullString `bigquery:"merchant"`          // NULLABLE
	MerchantCategory bigquery.NullString `bigquery:"merchant_category"` // NULLABLE

	VelocityFlag bool                `bigquery:"velocity_flag"` // REQUIRED
	Anomaly      bigquery.NullBool   `bigquery:"anomaly"`       // NULLABLE, unset without a verdict
	AnomalyType  bigquery.NullString `bigquery:"anomaly_type"`  // NULLABLE
	Reason       bigquery.NullString `bigquery:"reason"`        // NULLABLE

	Bundle  bigquery.NullJSON `bigquery:"bundle"`  // REQUIRED (JSON)
	Verdict bigquery.NullJSON `bigquery:"verdict"` // NULLABLE JSON

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED, partition column
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullJSON(raw json.RawMessage) bigquery.NullJSON {
	return bigquery.NullJSON{JSONVal: string(raw), Valid: len(raw) > 0}
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.RequireFromString(r.FloatString(numericScale))
}

// TransactionToRow converts a domain transaction into its table row.
func TransactionToRow(tx *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:    tx.TransactionID,
		UserID:           tx.UserID,
		TransactionTS:    tx.Timestamp.UTC(),
		TransactionDate:  civil.DateOf(tx.Timestamp.UTC()),
		Amount:           tx.Amount.Round(numericScale).Rat(),
		Currency:         nullString(tx.Currency),
		Merchant:         nullString(tx.Merchant),
		MerchantCategory: nullString(tx.MerchantCategory),
		Source:           nullString(tx.Source),
	}
}

// ToDomain converts the row back into a domain transaction.
func (r *TransactionRow) ToDomain() *domain.Transaction {
	return &domain.Transaction{
		TransactionID:    r.TransactionID,
		UserID:           r.UserID,
		Timestamp:        r.TransactionTS,
		Amount:           ratToDecimal(r.Amount),
		Currency:         r.Currency.StringVal,
		Merchant:         r.Merchant.StringVal,
		MerchantCategory: r.MerchantCategory.StringVal,
		Source:           r.Source.StringVal,
	}
}

// AssessmentToRow converts a domain assessment into its table row.
func AssessmentToRow(a *domain.Assessment) *AssessmentRow {
	row := &AssessmentRow{
		AssessmentID:     a.AssessmentID,
		UserID:           a.UserID,
		TransactionTS:    a.TransactionTS.UTC(),
		Amount:           a.Amount.Round(numericScale).Rat(),
		Merchant:         nullString(a.Merchant),
		MerchantCategory: nullString(a.MerchantCategory),
		VelocityFlag:     a.VelocityFlag,
		AnomalyType:      nullString(a.AnomalyType),
		Reason:           nullString(a.Reason),
		Bundle:           nullJSON(a.Bundle),
		Verdict:          nullJSON(a.Verdict),
		CreatedTS:        a.CreatedAt.UTC(),
	}
	if a.Anomaly != nil {
		row.Anomaly = bigquery.NullBool{Bool: *a.Anomaly, Valid: true}
	}
	return row
}

// ToDomain converts the row back into a domain assessment.
func (r *AssessmentRow) ToDomain() *domain.Assessment {
	a := &domain.Assessment{
		AssessmentID:     r.AssessmentID,
		UserID:           r.UserID,
		TransactionTS:    r.TransactionTS,
		Amount:           ratToDecimal(r.Amount),
		Merchant:         r.Merchant.StringVal,
		MerchantCategory: r.MerchantCategory.StringVal,
		VelocityFlag:     r.VelocityFlag,
		AnomalyType:      r.AnomalyType.StringVal,
		Reason:           r.Reason.StringVal,
		CreatedAt:        r.CreatedTS,
	}
	if r.Bundle.Valid {
		a.Bundle = json.RawMessage(r.Bundle.JSONVal)
	}
	if r.Verdict.Valid {
		a.Verdict = json.RawMessage(r.Verdict.JSONVal)
	}
	if r.Anomaly.Valid {
		v := r.Anomaly.Bool
		a.Anomaly = &v
	}
	return a
}
