package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flipsave/flipsave/internal/jobs"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/google/uuid"
)

// DefaultRetryDelay is the base wait before a failed batch is re-queued.
// The n-th retry waits n times the base.
const DefaultRetryDelay = 30 * time.Second

// Queue runs batch jobs on a single worker, in publish order, so at most one
// batch writes the dataset at a time.
type Queue struct {
	jobChan   chan *jobs.BatchJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	retryDelay time.Duration
	retryable  func(error) bool
}

// NewQueue creates a queue that buffers up to bufferSize pending batches
// before PublishBatch blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		jobChan:    make(chan *jobs.BatchJob, bufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		retryDelay: DefaultRetryDelay,
		retryable:  func(error) bool { return true },
	}
}

// WithRetryPolicy sets the base retry delay and which failures may be retried.
// A job is only retried while RetryCount < MaxRetries. It must be called before Start.
func (q *Queue) WithRetryPolicy(delay time.Duration, retryable func(error) bool) *Queue {
	if delay >= 0 {
		q.retryDelay = delay
	}
	if retryable != nil {
		q.retryable = retryable
	}
	return q
}

// PublishBatch implements the Publisher interface.
func (q *Queue) PublishBatch(ctx context.Context, job *jobs.BatchJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	q.wg.Add(1)
	go q.worker(ctx, handler)
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one batch and records its outcome. A retryable failure with
// retries left is saved as retrying and re-queued after a delay.
func (q *Queue) processJob(ctx context.Context, job *jobs.BatchJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()
	ctx = logger.WithContext(ctx, log)

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	log.Info().Str("source", job.Source).Int("retry", job.RetryCount).Msg("Batch job started")
	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	retry := false
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Int("succeeded", job.Succeeded).Int("failed", job.Failed).Msg("Batch job completed")
	case job.RetryCount < job.MaxRetries && q.retryable(err):
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		retry = true
		log.Warn().Err(err).Int("retry", job.RetryCount).Int("max_retries", job.MaxRetries).Msg("Batch job failed, retrying")
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("attempts", job.RetryCount+1).Msg("Batch job failed")
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
	if retry {
		q.scheduleRetry(ctx, job)
	}
}

// scheduleRetry re-publishes job after RetryCount times the base delay. If the
// queue stops first, the stored job is marked failed.
func (q *Queue) scheduleRetry(ctx context.Context, job *jobs.BatchJob) {
	delay := q.retryDelay * time.Duration(job.RetryCount)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			q.abandonRetry(job, "worker stopped")
			return
		case <-q.closeChan:
			q.abandonRetry(job, "queue closed")
			return
		}

		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.PublishBatch(ctx, job); err != nil {
			q.abandonRetry(job, err.Error())
		}
	}()
}

func (q *Queue) abandonRetry(job *jobs.BatchJob, reason string) {
	if q.store == nil {
		return
	}
	msg := fmt.Sprintf("%s (retry abandoned: %s)", job.Error, reason)
	_ = q.store.UpdateJobStatus(context.Background(), job.JobID, jobs.JobStatusFailed, msg)
}

// Stop implements the Consumer interface.
// It stops the queue and waits for the in-flight batch to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
