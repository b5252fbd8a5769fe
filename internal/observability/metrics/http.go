package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	throttledTotal  *prometheus.CounterVec

	ingestFilesTotal    *prometheus.CounterVec
	ingestBatchDuration *prometheus.HistogramVec
	cacheLookupsTotal   *prometheus.CounterVec

	reviewTransitionsTotal *prometheus.CounterVec
	reviewConflictsTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reception",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reception",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	throttledTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "http",
			Name:      "throttled_total",
			Help:      "Total requests rejected by traffic control or upload admission.",
		},
		[]string{"service", "gate"},
	)
	ingestFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total ingested files by outcome.",
		},
		[]string{"service", "outcome"},
	)
	ingestBatchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reception",
			Subsystem: "ingest",
			Name:      "batch_duration_seconds",
			Help:      "Upload batch processing duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "ingest",
			Name:      "cache_lookups_total",
			Help:      "Total content cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	reviewTransitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "review",
			Name:      "transitions_total",
			Help:      "Total successful review transitions by action.",
		},
		[]string{"service", "action"},
	)
	reviewConflictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "review",
			Name:      "conflicts_total",
			Help:      "Total review transitions rejected by the state guard.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		throttledTotal,
		ingestFilesTotal,
		ingestBatchDuration,
		cacheLookupsTotal,
		reviewTransitionsTotal,
		reviewConflictsTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		throttledTotal:         throttledTotal,
		ingestFilesTotal:       ingestFilesTotal,
		ingestBatchDuration:    ingestBatchDuration,
		cacheLookupsTotal:      cacheLookupsTotal,
		reviewTransitionsTotal: reviewTransitionsTotal,
		reviewConflictsTotal:   reviewConflictsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/review/documents/"):
		return "/v1/review/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordThrottled(service, gate string) {
	m.throttledTotal.WithLabelValues(service, gate).Inc()
}

func (m *HTTPServerMetrics) RecordIngestFile(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.ingestFilesTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordIngestBatch(service string, duration time.Duration) {
	m.ingestBatchDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordCacheLookup(service string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(service, result).Inc()
}

func (m *HTTPServerMetrics) RecordReviewTransition(service, action string) {
	m.reviewTransitionsTotal.WithLabelValues(service, action).Inc()
}

func (m *HTTPServerMetrics) RecordReviewConflict(service, operation string) {
	m.reviewConflictsTotal.WithLabelValues(service, operation).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
