package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/spend-signals/internal/domain"
)

// SaveAssessment inserts one assessment.
func (s *Store) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	var anomaly sql.NullBool
	if a.Anomaly != nil {
		anomaly = sql.NullBool{Bool: *a.Anomaly, Valid: true}
	}
	var verdict sql.NullString
	if len(a.Verdict) > 0 {
		verdict = sql.NullString{String: string(a.Verdict), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anomaly_assessments (
			assessment_id, user_id, transaction_ts, amount, merchant,
			merchant_category, velocity_flag, anomaly, anomaly_type, reason,
			bundle, verdict, created_ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AssessmentID, a.UserID, formatTS(a.TransactionTS), a.Amount.String(), a.Merchant,
		a.MerchantCategory, a.VelocityFlag, anomaly, a.AnomalyType, a.Reason,
		string(a.Bundle), verdict, formatTS(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("SaveAssessment: %w", err)
	}
	return nil
}

// ListAssessmentsSince returns assessments created at or after since, oldest
// first.
func (s *Store) ListAssessmentsSince(ctx context.Context, since time.Time) ([]*domain.Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT assessment_id, user_id, transaction_ts, amount, merchant,
			merchant_category, velocity_flag, anomaly, anomaly_type, reason,
			bundle, verdict, created_ts
		FROM anomaly_assessments
		WHERE created_ts >= ?
		ORDER BY created_ts`, formatTS(since))
	if err != nil {
		return nil, fmt.Errorf("ListAssessmentsSince: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Assessment
	for rows.Next() {
		var (
			a                    domain.Assessment
			txTS, createdTS, amt string
			bundle               string
			anomaly              sql.NullBool
			verdict              sql.NullString
		)
		if err := rows.Scan(&a.AssessmentID, &a.UserID, &txTS, &amt, &a.Merchant,
			&a.MerchantCategory, &a.VelocityFlag, &anomaly, &a.AnomalyType, &a.Reason,
			&bundle, &verdict, &createdTS); err != nil {
			return nil, fmt.Errorf("ListAssessmentsSince: scan: %w", err)
		}

		if a.TransactionTS, err = parseTS(txTS); err != nil {
			return nil, fmt.Errorf("ListAssessmentsSince: %s: %w", a.AssessmentID, err)
		}
		if a.CreatedAt, err = parseTS(createdTS); err != nil {
			return nil, fmt.Errorf("ListAssessmentsSince: %s: %w", a.AssessmentID, err)
		}
		if a.Amount, err = decimal.NewFromString(amt); err != nil {
			return nil, fmt.Errorf("ListAssessmentsSince: %s: %w", a.AssessmentID, err)
		}
		a.Bundle = json.RawMessage(bundle)
		if verdict.Valid {
			a.Verdict = json.RawMessage(verdict.String)
		}
		if anomaly.Valid {
			v := anomaly.Bool
			a.Anomaly = &v
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAssessmentsSince: rows: %w", err)
	}
	return out, nil
}
