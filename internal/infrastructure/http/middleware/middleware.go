// Package middleware provides HTTP middleware components
// following the Chain of Responsibility pattern
package middleware

import (
	"errors"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// Middleware provides all middleware functions
type Middleware struct {
	config  *config.Config
	logger  *zap.Logger
	limiter outbound.RateLimiter
	metrics *monitoring.MetricsCollector
	tracing *monitoring.TracingProvider
}

// New creates a new middleware instance. limiter, metrics and tracing may be nil.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	limiter outbound.RateLimiter,
	metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingProvider,
) *Middleware {
	return &Middleware{
		config:  cfg,
		logger:  logger,
		limiter: limiter,
		metrics: metrics,
		tracing: tracing,
	}
}

// RequestID adds a unique request ID to the context
func (m *Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// Logger provides structured logging for requests
func (m *Middleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		// Probes and scrapes are too chatty to log
		if strings.HasPrefix(path, "/health") || path == "/metrics" {
			return
		}

		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		fields := []zap.Field{
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if traceID := monitoring.TraceIDFromContext(c.Request.Context()); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}

		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()
		switch {
		case statusCode >= 500:
			m.logger.Error("Server error", append(fields, zap.String("error", errorMessage))...)
		case statusCode >= 400:
			m.logger.Warn("Client error", append(fields, zap.String("error", errorMessage))...)
		default:
			m.logger.Info("Request completed", fields...)
		}
	}
}

// Recovery recovers from panics and returns 500 error
func (m *Middleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// A client that went away mid-stream is not worth a stack trace
				if e, ok := err.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					c.Abort()
					return
				}

				m.logger.Error("Panic recovered",
					zap.String("request_id", c.GetString(RequestIDKey)),
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				appErr := apperrors.NewInternalError("")
				c.AbortWithStatusJSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, c.GetString(RequestIDKey)))
			}
		}()

		c.Next()
	}
}

// CORS handles Cross-Origin Resource Sharing
func (m *Middleware) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && m.isOriginAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")
			c.Header("Access-Control-Max-Age", "86400")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit limits generation requests per client IP
func (m *Middleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil || !m.config.RateLimit.Enabled {
			c.Next()
			return
		}

		decision, err := m.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Fail open when the limiter backend is unreachable
			m.logger.Warn("Rate limiter unavailable",
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			if m.metrics != nil {
				m.metrics.RateLimited(route)
			}

			appErr := apperrors.NewTooManyRequestsError(time.Duration(retryAfter) * time.Second)
			c.AbortWithStatusJSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, c.GetString(RequestIDKey)))
			return
		}

		c.Next()
	}
}

// Tracing adds distributed tracing
func (m *Middleware) Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.tracing == nil || !m.tracing.Enabled() {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := m.tracing.StartHTTPSpan(ctx, c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("request.id", c.GetString(RequestIDKey)),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int("http.response_size", c.Writer.Size()),
		)
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// Security adds security headers
func (m *Middleware) Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if m.config.IsProduction() {
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if c.Request.TLS != nil {
				c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
		}

		c.Next()
	}
}

// ErrorHandler renders errors attached with c.Error as the JSON error envelope
func (m *Middleware) ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr := apperrors.Wrap(err, "An unexpected error occurred")

		fields := []zap.Field{
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("code", string(appErr.Code)),
			zap.String("message", appErr.Message),
			zap.String("details", appErr.Details),
		}
		if appErr.StatusCode() >= 500 {
			m.logger.Error("Request error", append(fields, zap.Error(err))...)
		} else {
			m.logger.Debug("Request rejected", fields...)
		}

		// A streamed body has already committed the status
		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, c.GetString(RequestIDKey)))
	}
}

// Metrics records request counters and latency when metrics are enabled
func (m *Middleware) Metrics() gin.HandlerFunc {
	if m.metrics == nil || !m.config.Telemetry.MetricsEnabled {
		return func(c *gin.Context) { c.Next() }
	}
	return m.metrics.HTTPMiddleware()
}

// isOriginAllowed checks if origin is in allowed list
func (m *Middleware) isOriginAllowed(origin string) bool {
	for _, allowed := range m.config.CORS.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return m.config.IsDevelopment() && strings.HasPrefix(origin, "http://localhost")
}

// RequestIDFrom returns the request id set by RequestID
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
