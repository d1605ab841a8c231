package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/google/uuid"
)

// ItemFailure records one item that could not be extracted.
type ItemFailure struct {
	Index int
	Err   error
}

// Result summarises a batch run.
type Result struct {
	RunID     string
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []ItemFailure
	Dataset   *domain.Dataset
}

// BatchDriver extracts a record from each raw item in order and writes the
// collected dataset once at the end.
type BatchDriver struct {
	extractor ItemExtractor
	writer    DatasetWriter
	limit     int
	observer  BatchObserver
	now       func() time.Time
}

// BatchOption configures a BatchDriver.
type BatchOption func(*BatchDriver)

// WithLimit processes only the first n items. 0 means all items.
func WithLimit(n int) BatchOption {
	return func(d *BatchDriver) {
		if n >= 0 {
			d.limit = n
		}
	}
}

// WithBatchObserver reports item and run outcomes to o.
func WithBatchObserver(o BatchObserver) BatchOption {
	return func(d *BatchDriver) {
		if o != nil {
			d.observer = o
		}
	}
}

// NewBatchDriver creates a driver. Without WithLimit every item is processed.
func NewBatchDriver(ext ItemExtractor, writer DatasetWriter, opts ...BatchOption) *BatchDriver {
	d := &BatchDriver{
		extractor: ext,
		writer:    writer,
		observer:  nopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes items sequentially, waiting pace after every attempted item.
//
// Blank items are skipped without an attempt. A failed item is logged and
// counted; the run continues. If no item succeeds Run returns ErrEmptyResult
// and the writer is not called. Cancellation of ctx aborts the run without
// writing anything.
func (d *BatchDriver) Run(ctx context.Context, items []domain.RawItem, pace time.Duration) (*Result, error) {
	runID := uuid.New().String()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	if d.limit > 0 && len(items) > d.limit {
		items = items[:d.limit]
	}

	res := &Result{RunID: runID}
	ds := &domain.Dataset{RunID: runID, CreatedAt: d.now().UTC()}

	log.Info().Int("items", len(items)).Dur("pace", pace).Msg("batch started")

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			d.observer.ObserveBatchRun("cancelled")
			return res, fmt.Errorf("batch run: %w", err)
		}

		if strings.TrimSpace(item.RawText) == "" {
			res.Skipped++
			d.observer.ObserveBatchItem("skipped")
			log.Warn().Int("index", item.Index).Msg("skipping blank item")
			continue
		}

		log.Info().Int("item", i+1).Int("of", len(items)).Int("index", item.Index).Msg("processing item")
		res.Attempted++

		rec, err := d.extractor.Extract(ctx, item.RawText)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				d.observer.ObserveBatchRun("cancelled")
				return res, fmt.Errorf("batch run: %w", ctxErr)
			}
			res.Failed++
			res.Failures = append(res.Failures, ItemFailure{Index: item.Index, Err: err})
			d.observer.ObserveBatchItem("failed")
			log.Error().Err(err).Int("index", item.Index).Str("cause", CauseName(err)).Msg("item extraction failed")
		} else {
			res.Succeeded++
			ds.Entries = append(ds.Entries, domain.Entry{Item: item, Record: rec})
			d.observer.ObserveBatchItem("succeeded")
		}

		if err := sleep(ctx, pace); err != nil {
			d.observer.ObserveBatchRun("cancelled")
			return res, fmt.Errorf("batch run: %w", err)
		}
	}

	if res.Succeeded == 0 {
		d.observer.ObserveBatchRun("empty")
		log.Warn().Int("attempted", res.Attempted).Int("skipped", res.Skipped).Msg("no records extracted, output left untouched")
		return res, ErrEmptyResult
	}

	if err := d.writer.WriteDataset(ctx, ds); err != nil {
		d.observer.ObserveBatchRun("write_failed")
		return res, fmt.Errorf("batch run: write dataset: %w", err)
	}
	res.Dataset = ds

	d.observer.ObserveBatchRun("written")
	log.Info().
		Int("attempted", res.Attempted).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("batch finished")
	return res, nil
}

// sleep waits for d or until ctx is done. A non-positive d returns immediately.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
