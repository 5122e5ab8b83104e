package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	chunksIndexed  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "acebuddy",
			Subsystem: "worker",
			Name:      "source_ingest_total",
			Help:      "Total ingested knowledge sources by status.",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "acebuddy",
			Subsystem: "worker",
			Name:      "source_ingest_duration_seconds",
			Help:      "Knowledge source ingestion duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "acebuddy",
			Subsystem: "worker",
			Name:      "source_ingest_in_flight",
			Help:      "Number of in-flight ingestion tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "acebuddy",
			Subsystem: "worker",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks written to the vector index.",
		},
		[]string{"service"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, chunksIndexed)

	return &WorkerMetrics{
		registry:       registry,
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestInFlight: ingestInFlight,
		chunksIndexed:  chunksIndexed,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartIngest() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishIngest(service string, duration time.Duration, chunks int, err error) {
	m.ingestInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.ingestTotal.WithLabelValues(service, status).Inc()
	m.ingestDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if chunks > 0 {
		m.chunksIndexed.WithLabelValues(service).Add(float64(chunks))
	}
}
