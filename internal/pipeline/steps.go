package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
)

// PipelineStep represents a single step of an ETL run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Items   []domain.RawItem
	Result  *Result
	Dataset *domain.Dataset
}

// FetchStep pulls raw items from a text source. An empty fetch halts the run.
type FetchStep struct {
	Source TextSource
}

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	items, err := s.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch from %s: %w", s.Source.Name(), err)
	}
	if len(items) == 0 {
		return fmt.Errorf("fetch from %s: %w", s.Source.Name(), ErrNoItems)
	}
	state.Items = items
	log := logger.FromContext(ctx)
	log.Info().Str("source", s.Source.Name()).Int("items", len(items)).Msg("fetched raw items")
	return nil
}

// SaveRawStep writes the fetched items to the raw handoff.
type SaveRawStep struct {
	Store RawStore
}

func (s *SaveRawStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Store.SaveRaw(ctx, state.Items); err != nil {
		return fmt.Errorf("save raw items: %w", err)
	}
	return nil
}

// LoadRawStep reads the raw handoff written by an earlier fetch.
type LoadRawStep struct {
	Store RawStore
}

func (s *LoadRawStep) Execute(ctx context.Context, state *PipelineState) error {
	items, err := s.Store.LoadRaw(ctx)
	if err != nil {
		return fmt.Errorf("load raw items: %w", err)
	}
	state.Items = items
	return nil
}

// ExtractStep runs the batch driver over the state's items and writes the dataset.
type ExtractStep struct {
	Driver *BatchDriver
	Pace   time.Duration
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Driver.Run(ctx, state.Items, s.Pace)
	state.Result = res
	if err != nil {
		return err
	}
	state.Dataset = res.Dataset
	return nil
}

// PublishStep hands the written dataset to an external sink.
type PublishStep struct {
	Sink Sink
}

func (s *PublishStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Dataset == nil {
		return fmt.Errorf("publish to %s: no dataset", s.Sink.Name())
	}
	if err := s.Sink.Publish(ctx, state.Dataset); err != nil {
		return fmt.Errorf("publish to %s: %w", s.Sink.Name(), err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("sink", s.Sink.Name()).Int("records", state.Dataset.Len()).Msg("dataset published")
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewFetchPipeline fetches items and saves them to the raw handoff.
func NewFetchPipeline(source TextSource, store RawStore) *Pipeline {
	return NewPipeline(
		&FetchStep{Source: source},
		&SaveRawStep{Store: store},
	)
}

// NewProcessPipeline loads the raw handoff, extracts records, writes the
// dataset and publishes it to each sink in order.
func NewProcessPipeline(store RawStore, driver *BatchDriver, pace time.Duration, sinks ...Sink) *Pipeline {
	steps := []PipelineStep{
		&LoadRawStep{Store: store},
		&ExtractStep{Driver: driver, Pace: pace},
	}
	for _, sink := range sinks {
		steps = append(steps, &PublishStep{Sink: sink})
	}
	return NewPipeline(steps...)
}

// NewRunPipeline is the full ETL run: fetch, save raw, extract, write, publish.
func NewRunPipeline(source TextSource, store RawStore, driver *BatchDriver, pace time.Duration, sinks ...Sink) *Pipeline {
	steps := []PipelineStep{
		&FetchStep{Source: source},
		&SaveRawStep{Store: store},
		&ExtractStep{Driver: driver, Pace: pace},
	}
	for _, sink := range sinks {
		steps = append(steps, &PublishStep{Sink: sink})
	}
	return NewPipeline(steps...)
}
