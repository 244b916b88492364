package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spend-signals/internal/domain"
)

// InsertTransactions writes a batch in one database transaction. Rows with
// an existing ID are replaced. Missing IDs are generated.
func (s *Store) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertTransactions: begin: %w", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO transactions (
			transaction_id, user_id, transaction_ts, amount, currency,
			merchant, merchant_category, source, created_ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertTransactions: prepare: %w", err)
	}
	defer stmt.Close()

	now := formatTS(time.Now())
	for _, tx := range txs {
		if tx.TransactionID == "" {
			tx.TransactionID = uuid.NewString()
		}
		_, err := stmt.ExecContext(ctx,
			tx.TransactionID, tx.UserID, formatTS(tx.Timestamp), tx.Amount.String(), tx.Currency,
			tx.Merchant, tx.MerchantCategory, tx.Source, now,
		)
		if err != nil {
			return fmt.Errorf("InsertTransactions: inserting %s: %w", tx.TransactionID, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("InsertTransactions: commit: %w", err)
	}
	return nil
}

// ListTransactions returns the history of a user ordered by time.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, user_id, transaction_ts, amount, currency,
			merchant, merchant_category, source
		FROM transactions
		WHERE user_id = ?
		ORDER BY transaction_ts, created_ts`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var (
			tx         domain.Transaction
			ts, amount string
		)
		if err := rows.Scan(&tx.TransactionID, &tx.UserID, &ts, &amount, &tx.Currency,
			&tx.Merchant, &tx.MerchantCategory, &tx.Source); err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		if tx.Timestamp, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("ListTransactions: %s: %w", tx.TransactionID, err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ListTransactions: %s: %w", tx.TransactionID, err)
		}
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return txs, nil
}
