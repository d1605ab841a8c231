package gcsuploader

import (
	"context"
	"errors"
	"testing"

	"github.com/flipsave/flipsave/internal/domain"
)

// MockStorageService is a mock implementation of StorageService.
type MockStorageService struct {
	UploadFileFunc func(ctx context.Context, bucketName, objectName, filePath string) error
	uploads        []string
}

func (m *MockStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	m.uploads = append(m.uploads, bucketName+"/"+objectName+"<-"+filePath)
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, bucketName, objectName, filePath)
	}
	return nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	return nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return nil, nil
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://flipsave-data/raw/raw_api_data.json", wantBucket: "flipsave-data", wantObject: "raw/raw_api_data.json"},
		{uri: "gs://bucket/file.csv", wantBucket: "bucket", wantObject: "file.csv"},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "data/raw_api_data.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = %q, %q; want %q, %q", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestSink_Publish(t *testing.T) {
	storage := &MockStorageService{}
	sink := NewSink(storage, "flipsave-data", "offers", "data/processed.csv", "data/processed.xlsx")

	err := sink.Publish(context.Background(), &domain.Dataset{RunID: "run-1"})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	want := []string{
		"flipsave-data/offers/run-1/processed.csv<-data/processed.csv",
		"flipsave-data/offers/run-1/processed.xlsx<-data/processed.xlsx",
	}
	if len(storage.uploads) != len(want) {
		t.Fatalf("Expected %d uploads, got %v", len(want), storage.uploads)
	}
	for i := range want {
		if storage.uploads[i] != want[i] {
			t.Errorf("upload %d = %q, want %q", i, storage.uploads[i], want[i])
		}
	}
}

func TestSink_PublishStopsOnError(t *testing.T) {
	uploadErr := errors.New("permission denied")
	storage := &MockStorageService{
		UploadFileFunc: func(ctx context.Context, bucketName, objectName, filePath string) error {
			return uploadErr
		},
	}
	sink := NewSink(storage, "b", "", "a.csv", "b.csv")

	err := sink.Publish(context.Background(), &domain.Dataset{RunID: "r"})
	if !errors.Is(err, uploadErr) {
		t.Fatalf("Expected upload error, got %v", err)
	}
	if len(storage.uploads) != 1 {
		t.Errorf("Expected publishing to stop after the first failure, got %d uploads", len(storage.uploads))
	}
}
