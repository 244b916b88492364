// Package bigquery stores transactions and anomaly assessments in BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/spend-signals/internal/domain"
)

const (
	transactionsTable = "transactions"
	assessmentsTable  = "anomaly_assessments"
)

// Repository reads and writes the transactions and anomaly_assessments
// tables of one dataset through a shared client.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a repository with its own client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, projectID, datasetID), nil
}

// NewRepositoryWithClient creates a repository on an existing client.
func NewRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *Repository {
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// tableRef returns the fully qualified, backquoted table name for SQL.
func (r *Repository) tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, table)
}

// InsertTransactions streams a batch of transactions into the transactions
// table. Missing IDs are generated.
func (r *Repository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		if tx.TransactionID == "" {
			tx.TransactionID = uuid.NewString()
		}
		row := TransactionToRow(tx)
		row.CreatedTS = now
		rows = append(rows, row)
	}

	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// ListTransactions returns the history of a user ordered by time.
func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	q := r.client.Query(`
		SELECT
			transaction_id,
			user_id,
			transaction_ts,
			transaction_date,
			amount,
			currency,
			merchant,
			merchant_category,
			source,
			created_ts
		FROM ` + r.tableRef(transactionsTable) + `
		WHERE user_id = @user_id
		ORDER BY transaction_ts, created_ts
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		txs = append(txs, row.ToDomain())
	}
	return txs, nil
}

// SaveAssessment inserts one assessment. Uses DML INSERT so the row is
// immediately visible to ListAssessmentsSince.
func (r *Repository) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	row := AssessmentToRow(a)

	q := r.client.Query(`
		INSERT INTO ` + r.tableRef(assessmentsTable) + ` (
			assessment_id, user_id, transaction_ts, amount,
			merchant, merchant_category, velocity_flag, anomaly,
			anomaly_type, reason, bundle, verdict, created_ts
		)
		VALUES (
			@assessment_id, @user_id, @transaction_ts, @amount,
			@merchant, @merchant_category, @velocity_flag, @anomaly,
			@anomaly_type, @reason, @bundle, @verdict, @created_ts
		)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "assessment_id", Value: row.AssessmentID},
		{Name: "user_id", Value: row.UserID},
		{Name: "transaction_ts", Value: row.TransactionTS},
		{Name: "amount", Value: row.Amount},
		{Name: "merchant", Value: row.Merchant},
		{Name: "merchant_category", Value: row.MerchantCategory},
		{Name: "velocity_flag", Value: row.VelocityFlag},
		{Name: "anomaly", Value: row.Anomaly},
		{Name: "anomaly_type", Value: row.AnomalyType},
		{Name: "reason", Value: row.Reason},
		{Name: "bundle", Value: row.Bundle},
		{Name: "verdict", Value: row.Verdict},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("SaveAssessment: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("SaveAssessment: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("SaveAssessment: job error: %w", err)
	}
	return nil
}

// ListAssessmentsSince returns assessments created at or after since, oldest
// first.
func (r *Repository) ListAssessmentsSince(ctx context.Context, since time.Time) ([]*domain.Assessment, error) {
	q := r.client.Query(`
		SELECT
			assessment_id, user_id, transaction_ts, amount,
			merchant, merchant_category, velocity_flag, anomaly,
			anomaly_type, reason, bundle, verdict, created_ts
		FROM ` + r.tableRef(assessmentsTable) + `
		WHERE created_ts >= @since
		ORDER BY created_ts
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "since", Value: since.UTC()},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAssessmentsSince: query read: %w", err)
	}

	var out []*domain.Assessment
	for {
		var row AssessmentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAssessmentsSince: iter next: %w", err)
		}
		out = append(out, row.ToDomain())
	}
	return out, nil
}
