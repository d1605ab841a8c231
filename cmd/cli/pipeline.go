package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/flipsave/flipsave/internal/bootstrap"
	"github.com/flipsave/flipsave/internal/dataset"
	"github.com/flipsave/flipsave/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	fetchSource string
	fetchCSV    string

	pace  time.Duration
	limit int
	sinks []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch raw offer texts and save them to the raw data file",
	Long: `Fetch raw texts from NewsAPI (or the text_input column of a CSV file)
and save them as the JSON handoff read by "process".

Examples:
  flipsave fetch
  flipsave fetch --source csv --csv data/offers_input.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app := newApp(cmd)
		defer app.Close()

		source, err := textSource(app)
		if err != nil {
			return err
		}

		state := &pipeline.PipelineState{}
		if err := pipeline.NewFetchPipeline(source, app.Raw).Execute(ctx, state); err != nil {
			if errors.Is(err, pipeline.ErrNoItems) {
				log.Warn().Str("source", source.Name()).Msg("No items fetched, raw data file left unchanged")
				return nil
			}
			return err
		}

		fmt.Printf("Saved %d raw items to %s\n", len(state.Items), app.Raw.Path())
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract records from the raw data file and write the offers dataset",
	Long: `Process reads the raw data file, extracts one record per item with Gemini
and overwrites the output dataset once at the end. Items that fail are logged
and skipped; when no item succeeds the existing dataset is left untouched.

Examples:
  flipsave process
  flipsave process --limit 0 --pace 2s
  flipsave process --sink gcs --sink bigquery`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app := newApp(cmd)
		defer app.Close()

		driver, sinkList, err := batchComponents(cmd, app)
		if err != nil {
			return err
		}

		state := &pipeline.PipelineState{}
		err = pipeline.NewProcessPipeline(app.Raw, driver, effectivePace(cmd), sinkList...).Execute(ctx, state)
		printResult(state.Result, app.Writer.Paths())
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, process and publish in one run",
	Long: `Run executes the whole pipeline: fetch raw texts, save them, extract
records and write the dataset, then publish it to any requested sinks.
An empty fetch halts the run before any model call.

Examples:
  flipsave run
  flipsave run --source csv --csv data/offers_input.csv --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app := newApp(cmd)
		defer app.Close()

		source, err := textSource(app)
		if err != nil {
			return err
		}
		driver, sinkList, err := batchComponents(cmd, app)
		if err != nil {
			return err
		}

		log.Info().Str("source", source.Name()).Msg("Starting pipeline run")

		state := &pipeline.PipelineState{}
		err = pipeline.NewRunPipeline(source, app.Raw, driver, effectivePace(cmd), sinkList...).Execute(ctx, state)
		if errors.Is(err, pipeline.ErrNoItems) {
			log.Warn().Msg("No items fetched, pipeline halted")
			return nil
		}
		printResult(state.Result, app.Writer.Paths())
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{fetchCmd, runCmd} {
		c.Flags().StringVar(&fetchSource, "source", "news", "text source: news or csv")
		c.Flags().StringVar(&fetchCSV, "csv", "", "CSV file with a text_input column (for --source csv)")
	}
	for _, c := range []*cobra.Command{processCmd, runCmd} {
		c.Flags().DurationVar(&pace, "pace", pipeline.DefaultPace, "wait after each attempted item (default from PIPELINE_PACE)")
		c.Flags().IntVar(&limit, "limit", pipeline.DefaultLimit, "process only the first N items, 0 for all (default from PIPELINE_LIMIT)")
		c.Flags().StringSliceVar(&sinks, "sink", nil, "publish the dataset to: gcs, bigquery, notion (repeatable)")
	}
}

func textSource(app *bootstrap.App) (pipeline.TextSource, error) {
	switch fetchSource {
	case "news":
		return app.NewsSource(), nil
	case "csv":
		if fetchCSV == "" {
			return nil, errors.New("--csv is required with --source csv")
		}
		return &dataset.CSVSource{Path: fetchCSV}, nil
	default:
		return nil, fmt.Errorf("unknown source %q (want news or csv)", fetchSource)
	}
}

func batchComponents(cmd *cobra.Command, app *bootstrap.App) (*pipeline.BatchDriver, []pipeline.Sink, error) {
	n := -1
	if cmd.Flags().Changed("limit") {
		if limit < 0 {
			return nil, nil, fmt.Errorf("--limit must be >= 0, got %d", limit)
		}
		n = limit
	}
	driver, err := app.Driver(n)
	if err != nil {
		return nil, nil, err
	}
	sinkList, err := app.Sinks(cmd.Context(), sinks...)
	if err != nil {
		return nil, nil, err
	}
	return driver, sinkList, nil
}

// effectivePace prefers --pace over the configured pace.
func effectivePace(cmd *cobra.Command) time.Duration {
	if cmd.Flags().Changed("pace") {
		return pace
	}
	return cfg.PipelinePace
}

func printResult(res *pipeline.Result, paths []string) {
	if res == nil {
		return
	}
	fmt.Printf("Run %s: attempted %d, succeeded %d, failed %d, skipped %d\n",
		res.RunID, res.Attempted, res.Succeeded, res.Failed, res.Skipped)
	for _, f := range res.Failures {
		fmt.Printf("  item %d: %v\n", f.Index, f.Err)
	}
	if res.Dataset != nil {
		for _, p := range paths {
			fmt.Printf("Wrote %d records to %s\n", res.Dataset.Len(), p)
		}
	}
}
