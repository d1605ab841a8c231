package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flipsave/flipsave/internal/api/middleware"
	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/jobs"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/flipsave/flipsave/internal/pipeline"
	"github.com/flipsave/flipsave/internal/report"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies on the extraction endpoint.
const maxBodyBytes = 1 << 20

// ExtractHandler serves single-text extraction.
type ExtractHandler struct {
	extractor pipeline.ItemExtractor
	log       zerolog.Logger
}

// NewExtractHandler creates an extraction handler. A nil extractor makes
// every request fail with 503.
func NewExtractHandler(extractor pipeline.ItemExtractor, log zerolog.Logger) *ExtractHandler {
	return &ExtractHandler{
		extractor: extractor,
		log:       log,
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

// ProcessText handles POST /process-text/
func (h *ExtractHandler) ProcessText(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		middleware.WriteError(w, MapHTTPStatus(pipeline.ErrServiceUnavailable), "Extraction service is not initialized")
		return
	}

	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	log := h.log.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()
	ctx := logger.WithContext(r.Context(), log)

	record, err := h.extractor.Extract(ctx, req.Text)
	if err != nil {
		log.Error().Err(err).Str("cause", pipeline.CauseName(err)).Msg("Extraction failed")
		http.Error(w, err.Error(), MapHTTPStatus(err))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, record)
}

// Root handles GET /
func Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "FlipSave API is running",
	})
}

// Health handles GET /health
func Health(extractorReady bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"extractor": extractorReady,
			"time":      time.Now().Format(time.RFC3339),
		})
	}
}

// EntryLoader loads the current dataset entries.
type EntryLoader func(ctx context.Context) ([]domain.Entry, error)

// ReportHandler serves dashboard aggregates over the persisted dataset.
type ReportHandler struct {
	load EntryLoader
	log  zerolog.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(load EntryLoader, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		load: load,
		log:  log,
	}
}

// GetReport handles GET /api/offers/report?vendor=..&category=..
// Both parameters may repeat or carry comma separated values.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load dataset")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load dataset")
		return
	}

	query := r.URL.Query()
	filter := report.Filter{
		Vendors:    splitValues(query["vendor"]),
		Categories: splitValues(query["category"]),
	}

	middleware.WriteJSON(w, http.StatusOK, report.Build(entries, filter))
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// BatchesHandler enqueues asynchronous batch runs.
type BatchesHandler struct {
	publisher  jobs.Publisher
	maxRetries int
	log        zerolog.Logger
}

// NewBatchesHandler creates a new batches handler. Every enqueued job may be
// retried up to maxRetries times.
func NewBatchesHandler(publisher jobs.Publisher, maxRetries int, log zerolog.Logger) *BatchesHandler {
	return &BatchesHandler{
		publisher:  publisher,
		maxRetries: maxRetries,
		log:        log,
	}
}

type batchRequest struct {
	Source string `json:"source"`
	Limit  *int   `json:"limit"`
}

// CreateBatch handles POST /api/batches
func (h *BatchesHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	switch req.Source {
	case "":
		req.Source = jobs.SourceRaw
	case jobs.SourceRaw, jobs.SourceNews:
	default:
		middleware.WriteError(w, http.StatusBadRequest, "source must be raw or news")
		return
	}
	if req.Limit != nil && *req.Limit < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "limit must be >= 0")
		return
	}

	// The queue's worker owns the job once published, so the response is
	// built from values fixed beforehand.
	job := &jobs.BatchJob{
		JobID:      uuid.New().String(),
		Source:     req.Source,
		Limit:      req.Limit,
		Status:     jobs.JobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: h.maxRetries,
	}
	jobID, source := job.JobID, job.Source

	if err := h.publisher.PublishBatch(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue batch job")
		middleware.WriteError(w, MapHTTPStatus(err), "Failed to enqueue batch job")
		return
	}

	h.log.Info().Str("job_id", jobID).Str("source", source).Msg("Batch job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"source": source,
		"status": string(jobs.JobStatusPending),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		status := MapHTTPStatus(err)
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, status, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, status, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
