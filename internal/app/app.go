// Package app opens the backends selected by the configuration and wires
// the scoring services on top of them. The binaries under cmd/ share it.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/config"
	"github.com/dvloznov/spend-signals/internal/domain"
	"github.com/dvloznov/spend-signals/internal/gcsuploader"
	"github.com/dvloznov/spend-signals/internal/history"
	infraBQ "github.com/dvloznov/spend-signals/internal/infra/bigquery"
	infraFS "github.com/dvloznov/spend-signals/internal/infra/firestore"
	"github.com/dvloznov/spend-signals/internal/infra/sqlite"
	"github.com/dvloznov/spend-signals/internal/logger"
	"github.com/dvloznov/spend-signals/internal/pipeline"
	"github.com/dvloznov/spend-signals/internal/reasoning"
	"github.com/dvloznov/spend-signals/internal/snapshot"
)

// TransactionStore persists and lists user transactions.
type TransactionStore interface {
	InsertTransactions(ctx context.Context, txs []*domain.Transaction) error
	ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error)
}

// AssessmentStore persists assessments and lists them for export.
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, a *domain.Assessment) error
	ListAssessmentsSince(ctx context.Context, since time.Time) ([]*domain.Assessment, error)
}

// App holds the opened backends and the services built on them. Fields for
// backends the configuration does not use are nil.
type App struct {
	Config *config.Config
	Engine *analytics.Engine

	Storage      *gcsuploader.GCSStorageService
	BigQuery     *infraBQ.Repository
	SQLite       *sqlite.Store
	Firestore    *infraFS.HistoryRepository
	Transactions TransactionStore
	Assessments  AssessmentStore

	Source    history.Source
	Snapshots *snapshot.Cache
	Evaluator reasoning.Evaluator
	Assessor  *pipeline.Assessor

	closers []io.Closer
}

// New opens what cfg needs and wires the services. On error everything
// opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		Engine: analytics.NewEngine(cfg.EngineConfig()),
	}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	log := logger.FromContext(ctx)
	cfg := a.Config

	if err := a.openBackends(ctx); err != nil {
		return err
	}

	var err error
	a.Source, err = history.NewSource(cfg, history.Backends{
		Storage:      a.storageService(),
		Transactions: a.Transactions,
		Documents:    a.documentLister(),
	})
	if err != nil {
		return err
	}

	a.Snapshots = snapshot.NewCache(a.Engine, a.Source, cfg.SnapshotTTL)

	if cfg.ReasoningEnabled() {
		evaluator, err := reasoning.NewGeminiEvaluator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("app: creating evaluator: %w", err)
		}
		a.Evaluator = evaluator
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, assessments will carry signals only")
	}

	a.Assessor = pipeline.NewAssessor(pipeline.Deps{
		Engine:    a.Engine,
		Datasets:  a.Snapshots,
		Evaluator: a.Evaluator,
		Store:     a.Assessments,
	})

	log.Info().
		Str("history_backend", cfg.HistoryBackend).
		Str("assessment_store", cfg.AssessmentStore).
		Bool("reasoning", a.Evaluator != nil).
		Msg("Application wired")

	return nil
}

func (a *App) openBackends(ctx context.Context) error {
	cfg := a.Config

	if cfg.HistoryBackend == config.BackendBigQuery || cfg.AssessmentStore == config.StoreBigQuery {
		repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.BigQuery = repo
		a.closers = append(a.closers, repo)
	}

	if cfg.HistoryBackend == config.BackendSQLite || cfg.AssessmentStore == config.StoreSQLite {
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.SQLite = store
		a.closers = append(a.closers, store)
		if err := store.EnsureTables(ctx); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	if cfg.HistoryBackend == config.BackendGCS {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.Storage = svc
		a.closers = append(a.closers, svc)
	}

	if cfg.HistoryBackend == config.BackendFirestore {
		repo, err := infraFS.NewHistoryRepository(ctx, cfg.ProjectID, cfg.FirestoreCollection)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.Firestore = repo
		a.closers = append(a.closers, repo)
	}

	switch cfg.HistoryBackend {
	case config.BackendBigQuery:
		a.Transactions = a.BigQuery
	case config.BackendSQLite:
		a.Transactions = a.SQLite
	}

	switch cfg.AssessmentStore {
	case config.StoreBigQuery:
		a.Assessments = a.BigQuery
	case config.StoreSQLite:
		a.Assessments = a.SQLite
	}

	return nil
}

// storageService avoids handing a typed nil pointer to an interface.
func (a *App) storageService() gcsuploader.StorageService {
	if a.Storage == nil {
		return nil
	}
	return a.Storage
}

func (a *App) documentLister() history.DocumentLister {
	if a.Firestore == nil {
		return nil
	}
	return a.Firestore
}

// EnsureTables creates the tables of the opened SQL backends.
func (a *App) EnsureTables(ctx context.Context) error {
	if a.BigQuery != nil {
		if err := a.BigQuery.EnsureTables(ctx); err != nil {
			return err
		}
	}
	if a.SQLite != nil {
		if err := a.SQLite.EnsureTables(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the opened backends in reverse order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
