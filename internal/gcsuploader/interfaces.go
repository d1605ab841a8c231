package gcsuploader

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// UploadBytes writes data to a storage object.
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFile(ctx, bucketName, objectName, filePath)
}

func (s *GCSStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	return UploadBytes(ctx, bucketName, objectName, contentType, data)
}

func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

// Sink uploads the files of a written dataset to gs://bucket/prefix/<run id>/.
type Sink struct {
	storage StorageService
	bucket  string
	prefix  string
	files   []string
}

func NewSink(storage StorageService, bucket, prefix string, files ...string) *Sink {
	return &Sink{storage: storage, bucket: bucket, prefix: prefix, files: files}
}

func (s *Sink) Name() string { return "gcs" }

// ObjectName returns the object a local file of the given run is stored under.
func (s *Sink) ObjectName(runID, filePath string) string {
	return path.Join(s.prefix, runID, filepath.Base(filePath))
}

// Publish uploads every configured file. The dataset supplies the run id.
func (s *Sink) Publish(ctx context.Context, ds *domain.Dataset) error {
	log := logger.FromContext(ctx)
	for _, file := range s.files {
		object := s.ObjectName(ds.RunID, file)
		if err := s.storage.UploadFile(ctx, s.bucket, object, file); err != nil {
			return fmt.Errorf("upload %s: %w", file, err)
		}
		log.Info().Str("uri", fmt.Sprintf("gs://%s/%s", s.bucket, object)).Msg("uploaded dataset file")
	}
	return nil
}
