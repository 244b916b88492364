package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	var rows []string
	for i := 0; i < 14; i++ {
		rows = append(rows, fmt.Sprintf(`{"timestamp":"2024-07-%02dT12:30:00Z","amount":%d,"merchant":"Cafe","merchant_category":"food"}`, i+1, 5+i))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u1.json"), []byte("["+strings.Join(rows, ",")+"]"), 0o644))

	return &config.Config{
		HistoryBackend:    config.BackendFile,
		HistoryDir:        dir,
		AssessmentStore:   config.StoreSQLite,
		SQLitePath:        filepath.Join(dir, "signals.db"),
		ZTimeThreshold:    config.DefaultZTimeThreshold,
		ZAmountThreshold:  config.DefaultZAmountThreshold,
		CandidateTSPolicy: config.CandidateTSNow,
		Timezone:          "UTC",
		SnapshotTTL:       time.Minute,
		BatchConcurrency:  1,
	}
}

func TestNew_FileHistoryWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Nil(t, a.Evaluator)
	assert.Nil(t, a.BigQuery)
	require.NotNil(t, a.SQLite)

	state, err := a.Assessor.Assess(ctx, "u1", analytics.RawRecord{
		"timestamp": "2024-07-15T13:00:00Z",
		"amount":    "9.99",
		"merchant":  "Cafe",
	})
	require.NoError(t, err)
	assert.True(t, state.Stored)
	assert.Nil(t, state.Verdict)

	stored, err := a.Assessments.ListAssessmentsSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, state.Assessment.AssessmentID, stored[0].AssessmentID)
	assert.Equal(t, "9.99", stored[0].Amount.String())
}

func TestNew_UnknownUser(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	_, err = a.Assessor.Signals(ctx, "nobody", analytics.RawRecord{"amount": 1})
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
