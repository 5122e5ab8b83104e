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

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRequestsTotal   *prometheus.CounterVec
	chatDuration        prometheus.Histogram
	chatConfidence      prometheus.Histogram
	cacheLookupsTotal   *prometheus.CounterVec
	fallbackTotal       *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	retrievedCandidates prometheus.Histogram
	rankedContexts      prometheus.Histogram
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "acebuddy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "acebuddy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "acebuddy",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "acebuddy",
			Subsystem:   "chat",
			Name:        "requests_total",
			Help:        "Total answered chat requests by intent and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"intent", "outcome"},
	)
	chatDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "acebuddy",
			Subsystem:   "chat",
			Name:        "duration_seconds",
			Help:        "End-to-end chat pipeline duration in seconds.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
			ConstLabels: constLabels,
		},
	)
	chatConfidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "acebuddy",
			Subsystem:   "chat",
			Name:        "confidence",
			Help:        "Overall confidence of generated answers.",
			Buckets:     []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			ConstLabels: constLabels,
		},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "acebuddy",
			Subsystem:   "cache",
			Name:        "lookups_total",
			Help:        "Semantic cache lookups by tier.",
			ConstLabels: constLabels,
		},
		[]string{"tier"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "acebuddy",
			Subsystem:   "fallback",
			Name:        "triggered_total",
			Help:        "Fallback responses by reason.",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "acebuddy",
			Subsystem:   "chat",
			Name:        "stage_duration_seconds",
			Help:        "Duration of each chat pipeline stage in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)
	retrievedCandidates := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "acebuddy",
			Subsystem:   "rag",
			Name:        "retrieved_candidates",
			Help:        "Candidates returned by all retrieval strategies before fusion.",
			Buckets:     []float64{0, 1, 3, 5, 10, 20, 30, 50, 80},
			ConstLabels: constLabels,
		},
	)
	rankedContexts := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "acebuddy",
			Subsystem:   "rag",
			Name:        "ranked_contexts",
			Help:        "Contexts kept after reranking per answered request.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatRequestsTotal,
		chatDuration,
		chatConfidence,
		cacheLookupsTotal,
		fallbackTotal,
		stageDuration,
		retrievedCandidates,
		rankedContexts,
	)

	return &HTTPServerMetrics{
		service:             service,
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		chatRequestsTotal:   chatRequestsTotal,
		chatDuration:        chatDuration,
		chatConfidence:      chatConfidence,
		cacheLookupsTotal:   cacheLookupsTotal,
		fallbackTotal:       fallbackTotal,
		stageDuration:       stageDuration,
		retrievedCandidates: retrievedCandidates,
		rankedContexts:      rankedContexts,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterCacheStats exposes live cache size and hit rate read from stats.
func (m *HTTPServerMetrics) RegisterCacheStats(stats func() domain.CacheStats) {
	opts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{
			Namespace:   "acebuddy",
			Subsystem:   "cache",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": m.service},
		}
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(opts("entries", "Entries in the exact-match tier."), func() float64 {
			return float64(stats().Size)
		}),
		prometheus.NewGaugeFunc(opts("similarity_entries", "Entries in the similarity tier."), func() float64 {
			return float64(stats().SimilaritySize)
		}),
		prometheus.NewGaugeFunc(opts("hit_rate", "Share of lookups served from either tier."), func() float64 {
			return stats().HitRate
		}),
	)
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
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/{session_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveCacheLookup(tier domain.CacheTier) {
	m.cacheLookupsTotal.WithLabelValues(string(tier)).Inc()
}

func (m *HTTPServerMetrics) ObserveStage(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *HTTPServerMetrics) ObserveRetrieval(candidates int) {
	m.retrievedCandidates.Observe(float64(candidates))
}

func (m *HTTPServerMetrics) ObserveFallback(reason domain.FallbackReason) {
	if reason == "" {
		reason = "unknown"
	}
	m.fallbackTotal.WithLabelValues(string(reason)).Inc()
}

func (m *HTTPServerMetrics) ObserveChat(result *domain.ChatResult) {
	if result == nil {
		return
	}
	outcome := "answered"
	switch {
	case result.CacheHit:
		outcome = "cache_hit"
	case result.FallbackUsed:
		outcome = "fallback"
	}
	intent := result.Intent
	if intent == "" {
		intent = domain.IntentUnknown
	}
	m.chatRequestsTotal.WithLabelValues(intent, outcome).Inc()
	m.chatDuration.Observe(result.ProcessingTimeMS / 1000.0)
	if !result.CacheHit {
		m.chatConfidence.Observe(result.OverallConfidence)
		m.rankedContexts.Observe(float64(len(result.Contexts)))
	}
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
