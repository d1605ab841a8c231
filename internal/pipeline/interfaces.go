package pipeline

import (
	"context"
	"time"

	"github.com/flipsave/flipsave/internal/domain"
)

// Model is a text-completion capability: one prompt in, one raw completion out.
// Implementations report transport failures as ErrRemoteUnavailable and
// deadline failures as ErrTimeout.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ItemExtractor turns one input text into a validated record.
type ItemExtractor interface {
	Extract(ctx context.Context, text string) (domain.Record, error)
}

// DatasetWriter persists a finished dataset, replacing any previous output.
type DatasetWriter interface {
	WriteDataset(ctx context.Context, ds *domain.Dataset) error
}

// TextSource produces the raw items of a run.
type TextSource interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawItem, error)
}

// RawStore persists the raw item handoff between the fetch and process stages.
type RawStore interface {
	SaveRaw(ctx context.Context, items []domain.RawItem) error
	LoadRaw(ctx context.Context) ([]domain.RawItem, error)
}

// Sink publishes a written dataset to an external system.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ds *domain.Dataset) error
}

// ExtractionObserver receives extraction telemetry.
type ExtractionObserver interface {
	ObserveAttempt(outcome string)
	ObserveExtraction(outcome string, d time.Duration)
}

// BatchObserver receives batch telemetry.
type BatchObserver interface {
	ObserveBatchItem(status string)
	ObserveBatchRun(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string) {}
func (nopObserver) ObserveExtraction(string, time.Duration) {}
func (nopObserver) ObserveBatchItem(string) {}
func (nopObserver) ObserveBatchRun(string) {}
