package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal  *prometheus.CounterVec
	eventLag     *prometheus.HistogramVec
	sweepRemoved *prometheus.CounterVec
	sweepErrors  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "worker",
			Name:      "ingest_events_total",
			Help:      "Total consumed ingest events by outcome.",
		},
		[]string{"service", "outcome"},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reception",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between document ingestion and event consumption.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	sweepRemoved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "worker",
			Name:      "sweep_removed_total",
			Help:      "Total entries removed by maintenance sweeps per target.",
		},
		[]string{"service", "target"},
	)
	sweepErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reception",
			Subsystem: "worker",
			Name:      "sweep_errors_total",
			Help:      "Total failed maintenance sweeps per target.",
		},
		[]string{"service", "target"},
	)

	registry.MustRegister(eventsTotal, eventLag, sweepRemoved, sweepErrors)

	return &WorkerMetrics{
		registry:     registry,
		eventsTotal:  eventsTotal,
		eventLag:     eventLag,
		sweepRemoved: sweepRemoved,
		sweepErrors:  sweepErrors,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObserveEvent(service, outcome string, lag time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.eventsTotal.WithLabelValues(service, outcome).Inc()
	if lag >= 0 {
		m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
	}
}

func (m *WorkerMetrics) ObserveSweep(service, target string, removed int, err error) {
	if err != nil {
		m.sweepErrors.WithLabelValues(service, target).Inc()
		return
	}
	if removed > 0 {
		m.sweepRemoved.WithLabelValues(service, target).Add(float64(removed))
	}
}
