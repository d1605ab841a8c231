package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/jobs"
	"github.com/flipsave/flipsave/internal/jobs/inmemory"
	"github.com/flipsave/flipsave/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MockItemExtractor is a mock implementation of pipeline.ItemExtractor.
type MockItemExtractor struct {
	ExtractFunc func(ctx context.Context, text string) (domain.Record, error)
}

func (m *MockItemExtractor) Extract(ctx context.Context, text string) (domain.Record, error) {
	return m.ExtractFunc(ctx, text)
}

// MockPublisher is a mock implementation of jobs.Publisher.
type MockPublisher struct {
	PublishBatchFunc func(ctx context.Context, job *jobs.BatchJob) error
	published        []*jobs.BatchJob
}

func (m *MockPublisher) PublishBatch(ctx context.Context, job *jobs.BatchJob) error {
	if m.PublishBatchFunc != nil {
		if err := m.PublishBatchFunc(ctx, job); err != nil {
			return err
		}
	}
	m.published = append(m.published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func strPtr(s string) *string { return &s }

func postText(h *ExtractHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/process-text/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ProcessText(rec, req)
	return rec
}

func TestProcessText_Success(t *testing.T) {
	amount := decimal.RequireFromString("100")
	var gotText string
	h := NewExtractHandler(&MockItemExtractor{
		ExtractFunc: func(ctx context.Context, text string) (domain.Record, error) {
			gotText = text
			return domain.Record{
				TransactionType: domain.TransactionOffer,
				Vendor:          strPtr("Zomato"),
				Amount:          &amount,
				CouponCode:      strPtr("ZOMATO50"),
				Category:        domain.CategoryFoodDining,
			}, nil
		},
	}, zerolog.Nop())

	rec := postText(h, `{"text": "Zomato: 50% off up to Rs. 100 with ZOMATO50"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if gotText != "Zomato: 50% off up to Rs. 100 with ZOMATO50" {
		t.Errorf("Expected text to be passed through, got %q", gotText)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["transaction_type"] != "Offer" || body["category"] != "Food & Dining" || body["amount"] != float64(100) {
		t.Errorf("Unexpected record: %v", body)
	}
	if v, ok := body["offer_details"]; !ok || v != nil {
		t.Errorf("Expected offer_details to be null, got %v (present %v)", v, ok)
	}
}

func TestProcessText_BadRequests(t *testing.T) {
	h := NewExtractHandler(&MockItemExtractor{
		ExtractFunc: func(ctx context.Context, text string) (domain.Record, error) {
			t.Fatal("extractor must not be called")
			return domain.Record{}, nil
		},
	}, zerolog.Nop())

	for _, body := range []string{`not json`, `{}`, `{"text": "   "}`, `{"text": 42}`} {
		if rec := postText(h, body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, rec.Code)
		}
	}
}

func TestProcessText_ExtractionFailed(t *testing.T) {
	h := NewExtractHandler(&MockItemExtractor{
		ExtractFunc: func(ctx context.Context, text string) (domain.Record, error) {
			return domain.Record{}, &pipeline.ExtractionFailed{Attempts: 2, Cause: pipeline.ErrMalformedOutput}
		},
	}, zerolog.Nop())

	rec := postText(h, `{"text": "gibberish"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain error, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), pipeline.ErrMalformedOutput.Error()) {
		t.Errorf("Expected cause in body, got %q", rec.Body.String())
	}
}

func TestProcessText_ExtractorNotInitialized(t *testing.T) {
	h := NewExtractHandler(nil, zerolog.Nop())

	rec := postText(h, `{"text": "anything"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}

func TestRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"FlipSave API is running"}` {
		t.Errorf("Unexpected body %s", got)
	}
}

func TestGetReport(t *testing.T) {
	entries := []domain.Entry{
		{Record: domain.Record{TransactionType: domain.TransactionOffer, Vendor: strPtr("amazon"), Category: domain.CategoryShopping}},
		{Record: domain.Record{TransactionType: domain.TransactionOffer, Vendor: strPtr("Zomato"), Category: domain.CategoryFoodDining}},
		{Record: domain.Record{TransactionType: domain.TransactionOffer, Vendor: strPtr("Amazon "), Category: domain.CategoryShopping}},
	}
	h := NewReportHandler(func(ctx context.Context) ([]domain.Entry, error) { return entries, nil }, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/offers/report?category=Shopping,Travel", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		TotalOffers   int `json:"total_offers"`
		UniqueVendors int `json:"unique_vendors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.TotalOffers != 2 || body.UniqueVendors != 1 {
		t.Errorf("Unexpected report %+v", body)
	}
}

func TestGetReport_LoadError(t *testing.T) {
	h := NewReportHandler(func(ctx context.Context) ([]domain.Entry, error) {
		return nil, errors.New("no such file")
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/offers/report", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status %d, want 500", rec.Code)
	}
}

func TestCreateBatch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSource string
	}{
		{name: "default source", body: "", wantStatus: http.StatusAccepted, wantSource: jobs.SourceRaw},
		{name: "news source", body: `{"source":"news","limit":5}`, wantStatus: http.StatusAccepted, wantSource: jobs.SourceNews},
		{name: "unknown source", body: `{"source":"rss"}`, wantStatus: http.StatusBadRequest},
		{name: "negative limit", body: `{"limit":-1}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &MockPublisher{}
			h := NewBatchesHandler(pub, 2, zerolog.Nop())

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			rec := httptest.NewRecorder()
			h.CreateBatch(rec, httptest.NewRequest(http.MethodPost, "/api/batches", body))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				if len(pub.published) != 0 {
					t.Error("Expected nothing to be published")
				}
				return
			}
			if len(pub.published) != 1 || pub.published[0].Source != tt.wantSource {
				t.Fatalf("Unexpected published jobs %+v", pub.published)
			}
			if pub.published[0].MaxRetries != 2 {
				t.Errorf("Expected configured retries on the job, got %d", pub.published[0].MaxRetries)
			}
			var resp map[string]string
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp["job_id"] != pub.published[0].JobID || resp["status"] != "pending" {
				t.Errorf("Unexpected response %v", resp)
			}
		})
	}
}

func TestCreateBatch_QueueClosed(t *testing.T) {
	pub := &MockPublisher{
		PublishBatchFunc: func(ctx context.Context, job *jobs.BatchJob) error { return jobs.ErrQueueClosed },
	}
	rec := httptest.NewRecorder()
	NewBatchesHandler(pub, 0, zerolog.Nop()).CreateBatch(rec, httptest.NewRequest(http.MethodPost, "/api/batches", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", rec.Code)
	}
}

func TestJobsHandler(t *testing.T) {
	store := inmemory.NewStore()
	store.SaveJob(context.Background(), &jobs.BatchJob{JobID: "job-1", Status: jobs.JobStatusCompleted, Succeeded: 4})
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil), "job-1")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"succeeded":4`) {
		t.Errorf("GetJob: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil), "nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GetJob missing: status %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed&limit=10", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("ListJobs: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pipeline.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("get: %w", jobs.ErrJobNotFound), http.StatusNotFound},
		{jobs.ErrQueueClosed, http.StatusServiceUnavailable},
		{pipeline.ErrEmptyResult, http.StatusUnprocessableEntity},
		{&pipeline.ExtractionFailed{Attempts: 2, Cause: pipeline.ErrTimeout}, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
