// Package monitoring provides Prometheus metrics and OpenTelemetry tracing
package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Generation metrics
	generationsTotal    *prometheus.CounterVec
	generationDuration  *prometheus.HistogramVec
	generationFragments *prometheus.HistogramVec
	generationsInFlight *prometheus.GaugeVec
	circuitState        *prometheus.GaugeVec

	// Edge metrics
	rateLimitRejections *prometheus.CounterVec
	websocketSessions   prometheus.Gauge
	uptimeSeconds       prometheus.Counter
}

var _ outbound.GenerationMetrics = (*MetricsCollector)(nil)

// NewMetricsCollector creates a collector on its own registry, which also
// carries the Go runtime and process collectors.
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger.Named("metrics"),
		registry: reg,

		// HTTP metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path", "status_code"},
		),

		// Generation metrics
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_generations_total",
				Help: "Total number of recipe generations by outcome",
			},
			[]string{"provider", "outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_generation_duration_seconds",
				Help:    "Time from request to last fragment",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "outcome"},
		),
		generationFragments: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_generation_fragments",
				Help:    "Fragments received per generation",
				Buckets: prometheus.ExponentialBuckets(1, 4, 7),
			},
			[]string{"provider"},
		),
		generationsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recipe_generations_in_flight",
				Help: "Generations currently streaming",
			},
			[]string{"provider"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ai_circuit_breaker_state",
				Help: "Provider circuit state: 0 closed, 1 half-open, 2 open",
			},
			[]string{"provider"},
		),

		// Edge metrics
		rateLimitRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
		websocketSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_sessions_active",
				Help: "Open websocket generation sessions",
			},
		),
		uptimeSeconds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_seconds_total",
				Help: "Total uptime in seconds",
			},
		),
	}
}

// Registry returns the registry the collector writes to
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPMiddleware creates a Gin middleware for HTTP metrics collection
func (m *MetricsCollector) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path, statusCode).Observe(duration)
		if size := c.Writer.Size(); size > 0 {
			m.httpResponseSize.WithLabelValues(c.Request.Method, path, statusCode).Observe(float64(size))
		}
	}
}

// GenerationStarted marks a generation as streaming
func (m *MetricsCollector) GenerationStarted(provider string) {
	m.generationsInFlight.WithLabelValues(provider).Inc()
}

// GenerationFinished records the outcome of a generation. Invalid
// requests never started streaming.
func (m *MetricsCollector) GenerationFinished(provider, outcome string, fragments int, duration time.Duration) {
	m.generationsTotal.WithLabelValues(provider, outcome).Inc()
	if outcome == outbound.OutcomeInvalid {
		return
	}
	m.generationsInFlight.WithLabelValues(provider).Dec()
	m.generationDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
	m.generationFragments.WithLabelValues(provider).Observe(float64(fragments))
}

// SetCircuitState publishes the provider circuit state
func (m *MetricsCollector) SetCircuitState(provider string, state int) {
	m.circuitState.WithLabelValues(provider).Set(float64(state))
}

// RateLimited counts a rejected request
func (m *MetricsCollector) RateLimited(path string) {
	m.rateLimitRejections.WithLabelValues(path).Inc()
}

// SessionOpened tracks a websocket session
func (m *MetricsCollector) SessionOpened() {
	m.websocketSessions.Inc()
}

// SessionClosed tracks a websocket session ending
func (m *MetricsCollector) SessionClosed() {
	m.websocketSessions.Dec()
}

// StartUptimeCounter starts the uptime counter
func (m *MetricsCollector) StartUptimeCounter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.uptimeSeconds.Inc()
		}
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
