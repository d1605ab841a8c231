package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/google/uuid"
)

// OfferRepository provides an interface for offer storage operations.
type OfferRepository interface {
	// EnsureTables creates the offers and runs tables when missing.
	EnsureTables(ctx context.Context) error

	// InsertOffers inserts a batch of OfferRow.
	InsertOffers(ctx context.Context, rows []*OfferRow) error

	// InsertRun records a published run.
	InsertRun(ctx context.Context, row *RunRow) error

	// ListOffersByRun returns the offers of one run in dataset order.
	ListOffersByRun(ctx context.Context, runID string) ([]*OfferRow, error)

	// LatestRunID returns the most recently published run id, or "".
	LatestRunID(ctx context.Context) (string, error)
}

// BigQueryOfferRepository is the concrete implementation of OfferRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryOfferRepository struct {
	client    *bigquery.Client
	datasetID string
}

// NewBigQueryOfferRepository creates a repository for the given project and dataset.
func NewBigQueryOfferRepository(ctx context.Context, projectID, datasetID string) (*BigQueryOfferRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryOfferRepository: creating client: %w", err)
	}
	return &BigQueryOfferRepository{
		client:    client,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryOfferRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryOfferRepository) EnsureTables(ctx context.Context) error {
	return EnsureTablesWithClient(ctx, r.client, r.datasetID)
}

func (r *BigQueryOfferRepository) InsertOffers(ctx context.Context, rows []*OfferRow) error {
	return InsertOffersWithClient(ctx, r.client, r.datasetID, rows)
}

func (r *BigQueryOfferRepository) InsertRun(ctx context.Context, row *RunRow) error {
	return InsertRunWithClient(ctx, r.client, r.datasetID, row)
}

func (r *BigQueryOfferRepository) ListOffersByRun(ctx context.Context, runID string) ([]*OfferRow, error) {
	return ListOffersByRunWithClient(ctx, r.client, r.datasetID, runID)
}

func (r *BigQueryOfferRepository) LatestRunID(ctx context.Context) (string, error) {
	return LatestRunIDWithClient(ctx, r.client, r.datasetID)
}

// Sink loads a dataset into BigQuery: one row per entry plus one runs row.
type Sink struct {
	repo OfferRepository
}

func NewSink(repo OfferRepository) *Sink {
	return &Sink{repo: repo}
}

func (s *Sink) Name() string { return "bigquery" }

func (s *Sink) Publish(ctx context.Context, ds *domain.Dataset) error {
	rows := OfferRowsFromDataset(ds, func(int) string { return uuid.NewString() })
	if len(rows) == 0 {
		return nil
	}
	if err := s.repo.InsertOffers(ctx, rows); err != nil {
		return err
	}
	if err := s.repo.InsertRun(ctx, newRunRow(ds.RunID, rows[0].CreatedTS, len(rows))); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Str("run_id", ds.RunID).Int("rows", len(rows)).Msg("offers loaded into bigquery")
	return nil
}

// LoadDataset reads the offers of runID back as a dataset. An empty runID
// selects the latest published run.
func LoadDataset(ctx context.Context, repo OfferRepository, runID string) (*domain.Dataset, error) {
	if runID == "" {
		latest, err := repo.LatestRunID(ctx)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, fmt.Errorf("LoadDataset: no published runs")
		}
		runID = latest
	}

	rows, err := repo.ListOffersByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	ds := &domain.Dataset{RunID: runID}
	for _, row := range rows {
		e, err := row.Entry()
		if err != nil {
			return nil, err
		}
		ds.Entries = append(ds.Entries, e)
		ds.CreatedAt = row.CreatedTS
	}
	return ds, nil
}
