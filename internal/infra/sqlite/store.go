// Package sqlite is the local development store for transactions and
// anomaly assessments, backed by the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/spend-signals/internal/logger"
)

// tsLayout is fixed width so that text columns sort chronologically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		transaction_id    TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		transaction_ts    TEXT NOT NULL,
		amount            TEXT NOT NULL,
		currency          TEXT NOT NULL DEFAULT '',
		merchant          TEXT NOT NULL DEFAULT '',
		merchant_category TEXT NOT NULL DEFAULT '',
		source            TEXT NOT NULL DEFAULT '',
		created_ts        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_ts ON transactions (user_id, transaction_ts)`,
	`CREATE TABLE IF NOT EXISTS anomaly_assessments (
		assessment_id     TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		transaction_ts    TEXT NOT NULL,
		amount            TEXT NOT NULL,
		merchant          TEXT NOT NULL DEFAULT '',
		merchant_category TEXT NOT NULL DEFAULT '',
		velocity_flag     INTEGER NOT NULL,
		anomaly           INTEGER,
		anomaly_type      TEXT NOT NULL DEFAULT '',
		reason            TEXT NOT NULL DEFAULT '',
		bundle            TEXT NOT NULL,
		verdict           TEXT,
		created_ts        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assessments_created ON anomaly_assessments (created_ts)`,
}

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path with WAL journaling and a busy timeout.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: opening %s: %w", path, err)
	}

	// A single connection avoids SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: ping: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("path", path).Msg("SQLite store opened")
	return &Store{db: db}, nil
}

// EnsureTables creates the tables and indexes when missing.
func (s *Store) EnsureTables(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("EnsureTables: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}
