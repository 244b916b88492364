package history

import (
	"fmt"

	"github.com/dvloznov/spend-signals/internal/config"
	"github.com/dvloznov/spend-signals/internal/gcsuploader"
)

// Backends carries the clients a source may need. Only the one matching the
// configured backend has to be set.
type Backends struct {
	Storage      gcsuploader.StorageService
	Transactions TransactionLister
	Documents    DocumentLister
}

// NewSource picks the history source named by cfg.HistoryBackend.
func NewSource(cfg *config.Config, b Backends) (Source, error) {
	switch cfg.HistoryBackend {
	case config.BackendFile:
		return NewFileSource(cfg.HistoryDir), nil
	case config.BackendGCS:
		if b.Storage == nil {
			return nil, fmt.Errorf("NewSource: gcs backend needs a storage service")
		}
		return NewGCSSource(b.Storage, cfg.GCSBucket, cfg.GCSHistoryPrefix), nil
	case config.BackendBigQuery, config.BackendSQLite:
		if b.Transactions == nil {
			return nil, fmt.Errorf("NewSource: %s backend needs a transaction store", cfg.HistoryBackend)
		}
		return NewRepositorySource(b.Transactions), nil
	case config.BackendFirestore:
		if b.Documents == nil {
			return nil, fmt.Errorf("NewSource: firestore backend needs a document store")
		}
		return NewFirestoreSource(b.Documents), nil
	default:
		return nil, fmt.Errorf("NewSource: unknown history backend %q", cfg.HistoryBackend)
	}
}
