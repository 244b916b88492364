package gcsuploader

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// ErrObjectNotExist is returned by FetchFromGCS when the object is missing.
var ErrObjectNotExist = storage.ErrObjectNotExist

// StorageService provides the cloud storage operations used for history files.
type StorageService interface {
	// UploadFile uploads a local file to a bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// FetchFromGCS downloads object bytes from a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSStorageService is the StorageService backed by Google Cloud Storage.
// It shares one client across calls.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a service using Application Default Credentials.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// NewGCSStorageServiceWithClient wraps an existing client.
func NewGCSStorageServiceWithClient(client *storage.Client) *GCSStorageService {
	return &GCSStorageService{client: client}
}

// Close releases the underlying client.
func (s *GCSStorageService) Close() error {
	if s.client == nil {
		return errors.New("gcsuploader: service has no client")
	}
	return s.client.Close()
}

// UploadFile implements StorageService.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFile(ctx, s.client, bucketName, objectName, filePath)
}

// FetchFromGCS implements StorageService.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, s.client, gcsURI)
}
