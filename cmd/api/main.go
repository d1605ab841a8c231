package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/flipsave/flipsave/internal/api/handlers"
	"github.com/flipsave/flipsave/internal/api/middleware"
	"github.com/flipsave/flipsave/internal/bootstrap"
	"github.com/flipsave/flipsave/internal/config"
	"github.com/flipsave/flipsave/internal/jobs"
	"github.com/flipsave/flipsave/internal/jobs/inmemory"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/flipsave/flipsave/internal/news"
	"github.com/flipsave/flipsave/internal/pipeline"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	var (
		cfgFile = flag.String("config", "", "config file (default: ./flipsave.yaml)")
		port    = flag.Int("port", 0, "HTTP server port (overrides API_PORT)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.APIPort = *port
	}

	log := logger.Configure(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := logger.WithContext(context.Background(), log)

	app := bootstrap.New(ctx, cfg, "api")
	defer app.Close()

	if app.Extractor == nil {
		log.Warn().Err(app.ExtractorErr).Msg("Extraction model unavailable - /process-text/ will answer 503")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore).WithRetryPolicy(cfg.JobRetryDelay, retryableBatchError)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, batchJobHandler(app)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	handler := newRouter(app, jobQueue, jobStore, log)

	addr := ":" + strconv.Itoa(cfg.APIPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // extraction may retry a slow model call
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// newRouter registers every endpoint and wraps the mux in the middleware chain.
func newRouter(app *bootstrap.App, publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) http.Handler {
	cfg := app.Config

	extractHandler := handlers.NewExtractHandler(app.ItemExtractor(), log)
	reportHandler := handlers.NewReportHandler(app.LoadEntries, log)
	batchesHandler := handlers.NewBatchesHandler(publisher, cfg.JobMaxRetries, log)
	jobsHandler := handlers.NewJobsHandler(store, log)

	var limiter *rate.Limiter
	if cfg.APIRateLimit > 0 {
		burst := cfg.APIRateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.APIRateLimit), burst)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		handlers.Root(w, r)
	})

	mux.HandleFunc("/health", handlers.Health(app.Extractor != nil))
	mux.Handle("/metrics", app.Metrics.Handler())

	processText := middleware.RateLimit(limiter)(http.HandlerFunc(extractHandler.ProcessText))
	mux.HandleFunc("/process-text/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			processText.ServeHTTP(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/offers/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportHandler.GetReport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/batches", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			batchesHandler.CreateBatch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	return middleware.RequestID(
		middleware.Recovery(log)(
			middleware.Logger(log)(
				app.Metrics.Middleware(
					middleware.CORS(
						middleware.Auth(cfg.APIKey, "/", "/health", "/metrics")(mux),
					),
				),
			),
		),
	)
}

// batchJobHandler runs one queued batch: the process pipeline over the raw
// data file, or a full run with a fresh NewsAPI fetch.
func batchJobHandler(app *bootstrap.App) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.BatchJob) error {
		limit := -1
		if job.Limit != nil {
			limit = *job.Limit
		}
		driver, err := app.Driver(limit)
		if err != nil {
			return err
		}

		var p *pipeline.Pipeline
		switch job.Source {
		case jobs.SourceNews:
			p = pipeline.NewRunPipeline(app.NewsSource(), app.Raw, driver, app.Config.PipelinePace)
		default:
			p = pipeline.NewProcessPipeline(app.Raw, driver, app.Config.PipelinePace)
		}

		state := &pipeline.PipelineState{}
		err = p.Execute(ctx, state)
		if res := state.Result; res != nil {
			job.RunID = res.RunID
			job.Attempted, job.Succeeded, job.Failed, job.Skipped = res.Attempted, res.Succeeded, res.Failed, res.Skipped
		}
		if errors.Is(err, pipeline.ErrNoItems) {
			log := logger.FromContext(ctx)
			log.Warn().Msg("No items fetched, batch halted")
			return nil
		}
		return err
	}
}

// retryableBatchError reports whether a failed batch may succeed on a later
// attempt. Missing credentials or input files need an operator.
func retryableBatchError(err error) bool {
	switch {
	case errors.Is(err, pipeline.ErrServiceUnavailable),
		errors.Is(err, news.ErrMissingAPIKey),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
