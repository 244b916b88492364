package bigquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/spend-signals/internal/domain"
)

func TestTransactionRow_Conversion(t *testing.T) {
	ts := time.Date(2024, 7, 1, 23, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	tx := &domain.Transaction{
		TransactionID: "t1",
		UserID:        "u1",
		Timestamp:     ts,
		Amount:        decimal.RequireFromString("12.345"),
		Merchant:      "Cafe",
	}

	row := TransactionToRow(tx)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.July, Day: 1}, row.TransactionDate)
	assert.Equal(t, time.UTC, row.TransactionTS.Location())
	assert.True(t, row.Merchant.Valid)
	assert.False(t, row.MerchantCategory.Valid)
	assert.False(t, row.Currency.Valid)

	back := row.ToDomain()
	assert.True(t, back.Amount.Equal(tx.Amount))
	assert.True(t, back.Timestamp.Equal(ts))
	assert.Equal(t, "Cafe", back.Merchant)
	assert.Empty(t, back.MerchantCategory)
}

func TestAssessmentRow_Conversion(t *testing.T) {
	anomaly := true
	a := &domain.Assessment{
		AssessmentID: "a1",
		UserID:       "u1",
		Amount:       decimal.NewFromFloat(4.5),
		Bundle:       json.RawMessage(`{"rolling_amount":{"z_score":null}}`),
		Anomaly:      &anomaly,
		AnomalyType:  "impulse buying",
		CreatedAt:    time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC),
	}

	row := AssessmentToRow(a)
	assert.True(t, row.Bundle.Valid)
	assert.False(t, row.Verdict.Valid)
	assert.True(t, row.Anomaly.Valid)

	back := row.ToDomain()
	require.NotNil(t, back.Anomaly)
	assert.True(t, *back.Anomaly)
	assert.JSONEq(t, string(a.Bundle), string(back.Bundle))
	assert.Nil(t, back.Verdict)
	assert.True(t, back.Amount.Equal(a.Amount))
}

func TestAssessmentRow_NoVerdict(t *testing.T) {
	row := AssessmentToRow(&domain.Assessment{AssessmentID: "a2", Amount: decimal.NewFromInt(1)})
	assert.False(t, row.Anomaly.Valid)
	assert.Nil(t, row.ToDomain().Anomaly)
}

func TestTableRef(t *testing.T) {
	r := NewRepositoryWithClient(nil, "proj", "finance")
	assert.Equal(t, "`proj.finance.anomaly_assessments`", r.tableRef(assessmentsTable))
	assert.NoError(t, r.Close())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isNotFound(errors.New("boom")))
}
