// Package history loads a user's raw transaction history from the configured
// backend.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/domain"
	"github.com/dvloznov/spend-signals/internal/gcsuploader"
	"github.com/dvloznov/spend-signals/internal/logger"
)

// Source loads raw history records of a user.
type Source interface {
	LoadHistory(ctx context.Context, userID string) ([]analytics.RawRecord, error)
}

// ErrUserNotFound is returned when a backend has no history for a user.
var ErrUserNotFound = errors.New("history: no history for user")

// ErrInvalidUserID is returned for user IDs that are not safe object names.
var ErrInvalidUserID = errors.New("history: invalid user id")

// FileSource reads <dir>/<user>.json or <dir>/<user>.csv.
type FileSource struct {
	Dir string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// LoadHistory implements Source.
func (s *FileSource) LoadHistory(ctx context.Context, userID string) ([]analytics.RawRecord, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	for _, format := range []Format{FormatJSON, FormatCSV} {
		p := filepath.Join(s.Dir, userID+"."+string(format))
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("FileSource: reading %s: %w", p, err)
		}
		log := logger.FromContext(ctx)
		log.Debug().Str("path", p).Msg("Loading history file")
		return Decode(data, format)
	}
	return nil, fmt.Errorf("FileSource: %s: %w", userID, ErrUserNotFound)
}

// LoadFile reads a single history file, local or gs://.
func LoadFile(ctx context.Context, storage gcsuploader.StorageService, location string) ([]analytics.RawRecord, error) {
	format, err := FormatFromName(location)
	if err != nil {
		return nil, err
	}

	var data []byte
	if strings.HasPrefix(location, "gs://") {
		if storage == nil {
			return nil, fmt.Errorf("LoadFile: no storage service for %s", location)
		}
		data, err = storage.FetchFromGCS(ctx, location)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	return Decode(data, format)
}

// GCSSource reads gs://<bucket>/<prefix>/<user>.json or .csv.
type GCSSource struct {
	storage gcsuploader.StorageService
	bucket  string
	prefix  string
}

// NewGCSSource creates a GCSSource.
func NewGCSSource(storage gcsuploader.StorageService, bucket, prefix string) *GCSSource {
	return &GCSSource{storage: storage, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// LoadHistory implements Source.
func (s *GCSSource) LoadHistory(ctx context.Context, userID string) ([]analytics.RawRecord, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	var lastErr error
	for _, format := range []Format{FormatJSON, FormatCSV} {
		uri := fmt.Sprintf("gs://%s/%s", s.bucket, gcsuploader.HistoryObjectName(s.prefix, userID, string(format)))
		data, err := s.storage.FetchFromGCS(ctx, uri)
		if errors.Is(err, gcsuploader.ErrObjectNotExist) {
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}
		return Decode(data, format)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("GCSSource: %w", lastErr)
	}
	return nil, fmt.Errorf("GCSSource: %s: %w", userID, ErrUserNotFound)
}

// TransactionLister lists the stored transactions of a user in time order.
type TransactionLister interface {
	ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error)
}

// RepositorySource adapts a transaction store.
type RepositorySource struct {
	repo TransactionLister
}

// NewRepositorySource creates a RepositorySource.
func NewRepositorySource(repo TransactionLister) *RepositorySource {
	return &RepositorySource{repo: repo}
}

// LoadHistory implements Source.
func (s *RepositorySource) LoadHistory(ctx context.Context, userID string) ([]analytics.RawRecord, error) {
	txs, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("RepositorySource: %w", err)
	}
	return FromTransactions(txs), nil
}

// FromTransactions converts stored transactions into raw records.
func FromTransactions(txs []*domain.Transaction) []analytics.RawRecord {
	records := make([]analytics.RawRecord, 0, len(txs))
	for _, tx := range txs {
		rec := analytics.RawRecord{
			analytics.FieldTimestamp: tx.Timestamp,
			analytics.FieldAmount:    tx.Amount,
		}
		if tx.Merchant != "" {
			rec[analytics.FieldMerchant] = tx.Merchant
		}
		if tx.MerchantCategory != "" {
			rec[analytics.FieldMerchantCategory] = tx.MerchantCategory
		}
		records = append(records, rec)
	}
	return records
}

// DocumentLister returns raw documents of a user, such as Firestore receipts.
type DocumentLister interface {
	ListUserDocuments(ctx context.Context, userID string) ([]map[string]interface{}, error)
}

// FirestoreSource adapts a document store such as Firestore. The receipt
// extraction payload is dropped from every document.
type FirestoreSource struct {
	docs DocumentLister
}

// NewFirestoreSource creates a FirestoreSource.
func NewFirestoreSource(docs DocumentLister) *FirestoreSource {
	return &FirestoreSource{docs: docs}
}

// LoadHistory implements Source.
func (s *FirestoreSource) LoadHistory(ctx context.Context, userID string) ([]analytics.RawRecord, error) {
	docs, err := s.docs.ListUserDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("FirestoreSource: %w", err)
	}
	records := make([]analytics.RawRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, toRecord(d))
	}
	return records, nil
}

// validateUserID rejects IDs that would escape the history directory.
func validateUserID(userID string) error {
	if userID == "" || strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return fmt.Errorf("%w %q", ErrInvalidUserID, userID)
	}
	return nil
}
