package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	attemptsTotal     *prometheus.CounterVec
	extractionsTotal  *prometheus.CounterVec
	extractionLatency prometheus.Histogram
	batchItemsTotal   *prometheus.CounterVec
	batchRunsTotal    *prometheus.CounterVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

// New creates the collectors and registers them under the given service label.
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "flipsave",
			Subsystem:   "extraction",
			Name:        "attempts_total",
			Help:        "Model call attempts by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "flipsave",
			Subsystem:   "extraction",
			Name:        "total",
			Help:        "Completed extractions by final outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	extractionLatency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "flipsave",
			Subsystem:   "extraction",
			Name:        "duration_seconds",
			Help:        "Duration of a full extraction including retries.",
			Buckets:     []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			ConstLabels: constLabels,
		},
	)
	batchItemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "flipsave",
			Subsystem:   "batch",
			Name:        "items_total",
			Help:        "Batch items by status (succeeded, failed, skipped).",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	batchRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "flipsave",
			Subsystem:   "batch",
			Name:        "runs_total",
			Help:        "Batch runs by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "flipsave",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "flipsave",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "flipsave",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(
		attemptsTotal,
		extractionsTotal,
		extractionLatency,
		batchItemsTotal,
		batchRunsTotal,
		requestTotal,
		requestDuration,
		requestInFlight,
	)

	return &Metrics{
		registry:          registry,
		attemptsTotal:     attemptsTotal,
		extractionsTotal:  extractionsTotal,
		extractionLatency: extractionLatency,
		batchItemsTotal:   batchItemsTotal,
		batchRunsTotal:    batchRunsTotal,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveAttempt(outcome string) {
	m.attemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveExtraction(outcome string, d time.Duration) {
	m.extractionsTotal.WithLabelValues(outcome).Inc()
	m.extractionLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveBatchItem(status string) {
	m.batchItemsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveBatchRun(result string) {
	m.batchRunsTotal.WithLabelValues(result).Inc()
}

// Middleware records request counts, durations and in-flight requests.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if len(path) > len("/api/jobs/") && path[:len("/api/jobs/")] == "/api/jobs/" {
		return "/api/jobs/{job_id}"
	}
	return path
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
