package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	offersTable = "offers"
	runsTable   = "runs"
)

// EnsureTablesWithClient creates the offers and runs tables when missing.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) error {
	tables := []struct {
		name   string
		schema interface{}
		part   string
	}{
		{name: offersTable, schema: OfferRow{}, part: "created_ts"},
		{name: runsTable, schema: RunRow{}, part: "created_ts"},
	}

	for _, t := range tables {
		schema, err := bigquery.InferSchema(t.schema)
		if err != nil {
			return fmt.Errorf("EnsureTables: infer schema for %s: %w", t.name, err)
		}
		meta := &bigquery.TableMetadata{
			Schema: schema,
			TimePartitioning: &bigquery.TimePartitioning{
				Type:  bigquery.DayPartitioningType,
				Field: t.part,
			},
		}
		err = client.Dataset(datasetID).Table(t.name).Create(ctx, meta)
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("EnsureTables: create %s.%s: %w", datasetID, t.name, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusConflict
}

// InsertOffersWithClient streams a batch of OfferRow into <dataset>.offers.
func InsertOffersWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*OfferRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(offersTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertOffers: inserting rows: %w", err)
	}
	return nil
}

// InsertRunWithClient records a published run in <dataset>.runs.
func InsertRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *RunRow) error {
	inserter := client.Dataset(datasetID).Table(runsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertRun: inserting row: %w", err)
	}
	return nil
}

// ListOffersByRunWithClient returns the offers of one run in dataset order.
func ListOffersByRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string) ([]*OfferRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			offer_id,
			run_id,
			row_no,
			transaction_type,
			category,
			vendor,
			amount,
			offer_details,
			coupon_code,
			expiry_date,
			expiry_date_raw,
			original_text,
			created_ts
		FROM %s.%s
		WHERE run_id = @run_id
		ORDER BY row_no
	`, datasetID, offersTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListOffersByRun: query read: %w", err)
	}

	var rows []*OfferRow
	for {
		var r OfferRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListOffersByRun: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// LatestRunIDWithClient returns the most recently published run, or "" when none exists.
func LatestRunIDWithClient(ctx context.Context, client *bigquery.Client, datasetID string) (string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT run_id
		FROM %s.%s
		WHERE status = @status
		ORDER BY published_ts DESC
		LIMIT 1
	`, datasetID, runsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusPublished},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("LatestRunID: query read: %w", err)
	}

	var r struct {
		RunID string `bigquery:"run_id"`
	}
	err = it.Next(&r)
	if err == iterator.Done {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("LatestRunID: iter next: %w", err)
	}
	return r.RunID, nil
}

func newRunRow(runID string, created time.Time, records int) *RunRow {
	return &RunRow{
		RunID:       runID,
		CreatedTS:   created,
		PublishedTS: time.Now().UTC(),
		Records:     int64(records),
		Status:      RunStatusPublished,
	}
}
