package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal            *prometheus.CounterVec
	queryTypeTotal        *prometheus.CounterVec
	queryDuration         *prometheus.HistogramVec
	queryDegradedTotal    *prometheus.CounterVec
	fusionCandidates      *prometheus.HistogramVec
	contextSources        *prometheus.HistogramVec
	providerAttemptsTotal *prometheus.CounterVec
	llmTokensTotal        *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered queries by retrieval strategy.",
		},
		[]string{"service", "strategy"},
	)
	queryTypeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "query",
			Name:      "types_total",
			Help:      "Total classified queries by intent category.",
		},
		[]string{"service", "query_type"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "strategy"},
	)
	queryDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "query",
			Name:      "degraded_total",
			Help:      "Total queries answered with context-only degradation.",
		},
		[]string{"service"},
	)
	fusionCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "fusion",
			Name:      "candidates",
			Help:      "Distribution of candidates per hybrid leg before merge.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "leg"},
	)
	contextSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Subsystem: "context",
			Name:      "sources",
			Help:      "Distribution of sources packed into the context per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	providerAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "llm",
			Name:      "provider_attempts_total",
			Help:      "Total generation attempts by provider and outcome.",
		},
		[]string{"service", "provider", "status"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total tokens reported by generation providers.",
		},
		[]string{"service", "model"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryTypeTotal,
		queryDuration,
		queryDegradedTotal,
		fusionCandidates,
		contextSources,
		providerAttemptsTotal,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		queryTotal:            queryTotal,
		queryTypeTotal:        queryTypeTotal,
		queryDuration:         queryDuration,
		queryDegradedTotal:    queryDegradedTotal,
		fusionCandidates:      fusionCandidates,
		contextSources:        contextSources,
		providerAttemptsTotal: providerAttemptsTotal,
		llmTokensTotal:        llmTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
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

func (m *HTTPServerMetrics) RecordQuery(service, strategy, queryType string, degraded bool, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.queryTotal.WithLabelValues(service, strategy).Inc()
	m.queryDuration.WithLabelValues(service, strategy).Observe(duration.Seconds())
	if queryType != "" {
		m.queryTypeTotal.WithLabelValues(service, queryType).Inc()
	}
	if degraded {
		m.queryDegradedTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordFusionCandidates(service string, lexical, dense int) {
	m.fusionCandidates.WithLabelValues(service, "lexical").Observe(float64(lexical))
	m.fusionCandidates.WithLabelValues(service, "dense").Observe(float64(dense))
}

func (m *HTTPServerMetrics) RecordContextSources(service string, sources int) {
	m.contextSources.WithLabelValues(service).Observe(float64(sources))
}

func (m *HTTPServerMetrics) RecordProviderAttempt(service, provider, status string) {
	if provider == "" {
		provider = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.providerAttemptsTotal.WithLabelValues(service, provider, status).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, model string, tokens int) {
	if tokens <= 0 {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.llmTokensTotal.WithLabelValues(service, model).Add(float64(tokens))
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
