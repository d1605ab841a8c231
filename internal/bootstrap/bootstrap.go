// Package bootstrap wires configuration into the pipeline components shared
// by the CLI and the API server.
package bootstrap

import (
	"bytes"
	"context"
	"fmt"

	"github.com/flipsave/flipsave/internal/config"
	"github.com/flipsave/flipsave/internal/dataset"
	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/gcsuploader"
	"github.com/flipsave/flipsave/internal/gemini"
	infraBQ "github.com/flipsave/flipsave/internal/infra/bigquery"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/flipsave/flipsave/internal/metrics"
	"github.com/flipsave/flipsave/internal/news"
	"github.com/flipsave/flipsave/internal/notionsync"
	"github.com/flipsave/flipsave/internal/pipeline"
)

// Sink names accepted by Sinks.
const (
	SinkGCS      = "gcs"
	SinkBigQuery = "bigquery"
	SinkNotion   = "notion"
)

type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Storage gcsuploader.StorageService
	Raw     *dataset.RawFile
	Writer  *dataset.FileWriter

	// Extractor is nil when the model could not be initialized; ExtractorErr says why.
	Extractor    *pipeline.Extractor
	ExtractorErr error

	closeFns []func() error
}

// New builds the application. A model initialization failure is recorded
// rather than returned so the API can still start and answer 503.
func New(ctx context.Context, cfg *config.Config, service string) *App {
	m := metrics.New(service)
	storage := gcsuploader.NewGCSStorageService()

	app := &App{
		Config:  cfg,
		Metrics: m,
		Storage: storage,
		Raw:     dataset.NewRawFile(cfg.RawDataPath, storage),
		Writer:  dataset.NewFileWriter(cfg.OutputPaths()...),
	}

	model, err := gemini.New(ctx, gemini.Config{
		APIKey:  cfg.GoogleAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
	})
	if err != nil {
		app.ExtractorErr = err
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to initialize extraction model")
		return app
	}

	opts := []pipeline.ExtractorOption{
		pipeline.WithMaxAttempts(cfg.ExtractMaxAttempts),
		pipeline.WithExtractionObserver(m),
	}
	if cfg.ExtractRetryDelay > 0 {
		opts = append(opts, pipeline.WithRetryDelay(cfg.ExtractRetryDelay))
	}
	app.Extractor = pipeline.NewExtractor(model, opts...)
	return app
}

// ItemExtractor returns the extractor as an interface value that is nil
// when the model failed to initialize.
func (a *App) ItemExtractor() pipeline.ItemExtractor {
	if a.Extractor == nil {
		return nil
	}
	return a.Extractor
}

// Driver returns a batch driver writing to the configured output paths.
// limit < 0 selects the configured limit.
func (a *App) Driver(limit int) (*pipeline.BatchDriver, error) {
	if a.Extractor == nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrServiceUnavailable, a.ExtractorErr)
	}
	if limit < 0 {
		limit = a.Config.PipelineLimit
	}
	return pipeline.NewBatchDriver(a.Extractor, a.Writer,
		pipeline.WithLimit(limit),
		pipeline.WithBatchObserver(a.Metrics),
	), nil
}

// NewsSource returns the NewsAPI text source.
func (a *App) NewsSource() *news.Client {
	return news.NewClient(a.Config.NewsAPIKey)
}

// OfferRepository opens the BigQuery offers repository and makes sure its tables exist.
func (a *App) OfferRepository(ctx context.Context) (*infraBQ.BigQueryOfferRepository, error) {
	if a.Config.BQProject == "" {
		return nil, fmt.Errorf("bigquery: bq_project is not set")
	}
	repo, err := infraBQ.NewBigQueryOfferRepository(ctx, a.Config.BQProject, a.Config.BQDataset)
	if err != nil {
		return nil, err
	}
	a.closeFns = append(a.closeFns, repo.Close)

	if err := repo.EnsureTables(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Sinks builds the named publishing sinks in order.
func (a *App) Sinks(ctx context.Context, names ...string) ([]pipeline.Sink, error) {
	var sinks []pipeline.Sink
	for _, name := range names {
		switch name {
		case SinkGCS:
			if a.Config.GCSBucket == "" {
				return nil, fmt.Errorf("gcs sink: gcs_bucket is not set")
			}
			sinks = append(sinks, gcsuploader.NewSink(a.Storage, a.Config.GCSBucket, a.Config.GCSPrefix, a.Writer.Paths()...))
		case SinkBigQuery:
			repo, err := a.OfferRepository(ctx)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, infraBQ.NewSink(repo))
		case SinkNotion:
			if a.Config.NotionToken == "" || a.Config.NotionDatabaseID == "" {
				return nil, fmt.Errorf("notion sink: notion_token and notion_database_id must be set")
			}
			sinks = append(sinks, notionsync.NewSink(notionsync.NewOffersClient(a.Config.NotionToken, nil), a.Config.NotionDatabaseID))
		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	return sinks, nil
}

// LoadEntries reads the primary output dataset, locally or from a gs:// URI.
func (a *App) LoadEntries(ctx context.Context) ([]domain.Entry, error) {
	path := a.Config.OutputPaths()[0]
	return LoadEntries(ctx, a.Storage, path)
}

// LoadEntries reads the dataset at path. storage serves gs:// paths.
func LoadEntries(ctx context.Context, storage gcsuploader.StorageService, path string) ([]domain.Entry, error) {
	if !gcsuploader.IsGCSURI(path) {
		return dataset.ReadFile(path)
	}
	data, err := storage.FetchFromGCS(ctx, path)
	if err != nil {
		return nil, err
	}
	return dataset.Read(bytes.NewReader(data), dataset.FormatForPath(path))
}

// Close releases clients opened by the app.
func (a *App) Close() {
	for _, fn := range a.closeFns {
		_ = fn()
	}
}
