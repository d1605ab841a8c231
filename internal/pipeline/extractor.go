package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
)

// retryableCauses lists the failure causes that earn another attempt.
var retryableCauses = []error{
	ErrRemoteUnavailable,
	ErrTimeout,
	ErrMalformedOutput,
	ErrSchemaViolation,
}

func isRetryable(err error) bool {
	for _, cause := range retryableCauses {
		if errors.Is(err, cause) {
			return true
		}
	}
	return false
}

// Extractor turns free text into a validated Record by prompting a Model.
// It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	model        Model
	maxAttempts  int
	retryDelay   time.Duration
	instructions string
	observer     ExtractionObserver
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxAttempts bounds the number of model calls per text. Values below 1 are ignored.
func WithMaxAttempts(n int) ExtractorOption {
	return func(e *Extractor) {
		if n >= 1 {
			e.maxAttempts = n
		}
	}
}

// WithRetryDelay waits d between attempts. The default is no wait.
func WithRetryDelay(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.retryDelay = d
		}
	}
}

// WithExtractionObserver reports attempts and outcomes to o.
func WithExtractionObserver(o ExtractionObserver) ExtractorOption {
	return func(e *Extractor) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewExtractor creates an Extractor bound to model.
func NewExtractor(model Model, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		model:        model,
		maxAttempts:  DefaultMaxAttempts,
		instructions: FormatInstructions(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts reports the configured attempt bound.
func (e *Extractor) MaxAttempts() int {
	return e.maxAttempts
}

// Extract runs build, invoke and validate until a record validates or the
// attempts are exhausted. On exhaustion it returns *ExtractionFailed carrying
// the cause of the last attempt. Cancellation of ctx stops the loop at once
// and returns the context error.
func (e *Extractor) Extract(ctx context.Context, text string) (domain.Record, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	prompt := BuildExtractionPrompt(text, e.instructions)

	var lastErr error
	attempt := 0
	for attempt < e.maxAttempts {
		if err := ctx.Err(); err != nil {
			return domain.Record{}, err
		}
		attempt++

		rec, err := e.attempt(ctx, prompt)
		if err == nil {
			e.observer.ObserveAttempt("success")
			e.observer.ObserveExtraction("success", time.Since(start))
			log.Debug().Int("attempt", attempt).Msg("extraction succeeded")
			return rec, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Record{}, ctxErr
		}

		lastErr = err
		cause := CauseName(err)
		e.observer.ObserveAttempt(cause)
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", e.maxAttempts).
			Str("cause", cause).
			Msg("extraction attempt failed")

		if !isRetryable(err) {
			break
		}

		if attempt < e.maxAttempts && e.retryDelay > 0 {
			timer := time.NewTimer(e.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return domain.Record{}, ctx.Err()
			case <-timer.C:
			}
		}
	}

	e.observer.ObserveExtraction(CauseName(lastErr), time.Since(start))
	return domain.Record{}, &ExtractionFailed{Attempts: attempt, Cause: lastErr}
}

func (e *Extractor) attempt(ctx context.Context, prompt string) (domain.Record, error) {
	raw, err := e.model.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, ErrRemoteUnavailable) {
			return domain.Record{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Record{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return domain.Record{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return ParseModelResponse(raw)
}
