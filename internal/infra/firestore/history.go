// Package firestore reads user transaction documents from Cloud Firestore.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

const (
	// DefaultCollection holds one document per transaction.
	DefaultCollection = "transactions"

	userIDField    = "user_id"
	maxBatchWrites = 500
)

// HistoryRepository lists the transaction documents of a user.
type HistoryRepository struct {
	client     *firestore.Client
	collection string
}

// NewHistoryRepository creates a repository with its own client.
func NewHistoryRepository(ctx context.Context, projectID, collection string) (*HistoryRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewHistoryRepository: creating client: %w", err)
	}
	return NewHistoryRepositoryWithClient(client, collection), nil
}

// NewHistoryRepositoryWithClient creates a repository on an existing client.
func NewHistoryRepositoryWithClient(client *firestore.Client, collection string) *HistoryRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &HistoryRepository{client: client, collection: collection}
}

// Collection returns the collection the repository reads.
func (r *HistoryRepository) Collection() string {
	return r.collection
}

// Close closes the Firestore client.
func (r *HistoryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListUserDocuments returns the raw data of every document whose user_id
// equals userID. Order is unspecified.
func (r *HistoryRepository) ListUserDocuments(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	it := r.client.Collection(r.collection).Where(userIDField, "==", userID).Documents(ctx)
	defer it.Stop()

	var docs []map[string]interface{}
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListUserDocuments: iter next: %w", err)
		}
		docs = append(docs, snap.Data())
	}
	return docs, nil
}

// AddDocuments writes one document per record, tagged with userID.
func (r *HistoryRepository) AddDocuments(ctx context.Context, userID string, records []map[string]interface{}) error {
	coll := r.client.Collection(r.collection)
	for start := 0; start < len(records); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(records))

		batch := r.client.BulkWriter(ctx)
		var jobs []*firestore.BulkWriterJob
		for _, rec := range records[start:end] {
			data := withUserID(rec, userID)
			job, err := batch.Create(coll.NewDoc(), data)
			if err != nil {
				batch.End()
				return fmt.Errorf("AddDocuments: queueing document: %w", err)
			}
			jobs = append(jobs, job)
		}
		batch.End()

		for _, job := range jobs {
			if _, err := job.Results(); err != nil {
				return fmt.Errorf("AddDocuments: writing document: %w", err)
			}
		}
	}
	return nil
}

func withUserID(rec map[string]interface{}, userID string) map[string]interface{} {
	out := make(map[string]interface{}, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[userIDField] = userID
	return out
}
