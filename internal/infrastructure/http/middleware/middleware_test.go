package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLimiter struct {
	decision outbound.RateDecision
	err      error
	keys     []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (outbound.RateDecision, error) {
	l.keys = append(l.keys, key)
	return l.decision, l.err
}

type MiddlewareTestSuite struct {
	suite.Suite
	cfg     *config.Config
	limiter *stubLimiter
	metrics *monitoring.MetricsCollector
	mw      *Middleware
}

func (s *MiddlewareTestSuite) SetupTest() {
	s.cfg = &config.Config{
		App:         config.AppConfig{Environment: "production"},
		RateLimit:   config.RateLimitConfig{Enabled: true, RequestsPerMinute: 30, Burst: 5},
		Compression: config.CompressionConfig{Enabled: true, Level: 5, MinSize: 64},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Telemetry:   config.TelemetryConfig{MetricsEnabled: true},
	}
	s.limiter = &stubLimiter{decision: outbound.RateDecision{Allowed: true, Limit: 30, Remaining: 29}}
	s.metrics = monitoring.NewMetricsCollector(zap.NewNop())
	s.mw = New(s.cfg, zap.NewNop(), s.limiter, s.metrics, nil)
}

func (s *MiddlewareTestSuite) engine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(s.mw.RequestID(), s.mw.Recovery(), s.mw.ErrorHandler())
	r.Use(handlers...)
	return r
}

func (s *MiddlewareTestSuite) do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (s *MiddlewareTestSuite) TestRequestID() {
	s.Run("MissingHeader_ShouldGenerate", func() {
		r := s.engine()
		r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

		w := s.do(r, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Len(s.T(), w.Header().Get("X-Request-ID"), 36)
		assert.Equal(s.T(), w.Header().Get("X-Request-ID"), w.Body.String())
	})

	s.Run("IncomingHeader_ShouldBeKept", func() {
		r := s.engine()
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Request-ID", "abc-123")

		w := s.do(r, req)

		assert.Equal(s.T(), "abc-123", w.Header().Get("X-Request-ID"))
	})
}

func (s *MiddlewareTestSuite) TestRecovery() {
	s.Run("Panic_ShouldReturnErrorEnvelope", func() {
		s.SetupTest()
		r := s.engine()
		r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

		w := s.do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

		require.Equal(s.T(), http.StatusInternalServerError, w.Code)
		var body apperrors.ErrorResponse
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(s.T(), body.Success)
		assert.Equal(s.T(), apperrors.CodeInternal, body.Error.Code)
		assert.NotEmpty(s.T(), body.Error.RequestID)
	})
}

func (s *MiddlewareTestSuite) TestErrorHandler() {
	s.Run("AppError_ShouldUseItsStatus", func() {
		s.SetupTest()
		r := s.engine()
		r.POST("/x", func(c *gin.Context) {
			_ = c.Error(apperrors.NewValidationError("user_message is required"))
		})

		w := s.do(r, httptest.NewRequest(http.MethodPost, "/x", nil))

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
		assert.Contains(s.T(), w.Body.String(), "user_message is required")
	})

	s.Run("PlainError_ShouldBecomeInternal", func() {
		s.SetupTest()
		r := s.engine()
		r.GET("/x", func(c *gin.Context) { _ = c.Error(errors.New("disk on fire")) })

		w := s.do(r, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
		var body apperrors.ErrorResponse
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(s.T(), apperrors.CodeInternal, body.Error.Code)
		assert.Equal(s.T(), "An unexpected error occurred", body.Error.Message)
		assert.NotContains(s.T(), w.Body.String(), "disk on fire")
	})

	s.Run("WrappedAppError_ShouldKeepItsCode", func() {
		s.SetupTest()
		r := s.engine()
		r.GET("/x", func(c *gin.Context) {
			_ = c.Error(fmt.Errorf("lookup: %w", apperrors.NewNotFoundError("session")))
		})

		w := s.do(r, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(s.T(), http.StatusNotFound, w.Code)
		assert.Contains(s.T(), w.Body.String(), string(apperrors.CodeNotFound))
	})

	s.Run("AlreadyWritten_ShouldNotAppend", func() {
		s.SetupTest()
		r := s.engine()
		r.GET("/x", func(c *gin.Context) {
			c.String(http.StatusOK, "partial")
			_ = c.Error(errors.New("late failure"))
		})

		w := s.do(r, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(s.T(), http.StatusOK, w.Code)
		assert.Equal(s.T(), "partial", w.Body.String())
	})
}

func (s *MiddlewareTestSuite) TestCORS() {
	s.Run("AllowedOrigin_ShouldEchoHeaders", func() {
		s.SetupTest()
		r := s.engine(s.mw.CORS())
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		w := s.do(r, req)

		assert.Equal(s.T(), "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	s.Run("UnknownOrigin_ShouldNotEcho", func() {
		s.SetupTest()
		r := s.engine(s.mw.CORS())
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "http://evil.example")

		w := s.do(r, req)

		assert.Empty(s.T(), w.Header().Get("Access-Control-Allow-Origin"))
	})

	s.Run("Preflight_ShouldShortCircuit", func() {
		s.SetupTest()
		r := s.engine(s.mw.CORS())
		called := false
		r.OPTIONS("/x", func(c *gin.Context) { called = true })
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		w := s.do(r, req)

		assert.Equal(s.T(), http.StatusNoContent, w.Code)
		assert.False(s.T(), called)
	})
}

func (s *MiddlewareTestSuite) TestRateLimit() {
	s.Run("Allowed_ShouldSetHeaders", func() {
		s.SetupTest()
		r := s.engine()
		r.POST("/api/chat", s.mw.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

		w := s.do(r, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

		assert.Equal(s.T(), http.StatusOK, w.Code)
		assert.Equal(s.T(), "30", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(s.T(), "29", w.Header().Get("X-RateLimit-Remaining"))
		assert.Len(s.T(), s.limiter.keys, 1)
	})

	s.Run("Rejected_ShouldReturn429", func() {
		s.SetupTest()
		s.limiter.decision = outbound.RateDecision{Allowed: false, Limit: 30, RetryAfter: 1500 * time.Millisecond}
		r := s.engine()
		called := false
		r.POST("/api/chat", s.mw.RateLimit(), func(c *gin.Context) { called = true })

		w := s.do(r, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

		assert.Equal(s.T(), http.StatusTooManyRequests, w.Code)
		assert.Equal(s.T(), "2", w.Header().Get("Retry-After"))
		assert.False(s.T(), called)
		assert.Contains(s.T(), w.Body.String(), string(apperrors.CodeTooManyRequests))
		assert.Equal(s.T(), 1, testutil.CollectAndCount(s.metrics.Registry(), "rate_limit_rejections_total"))
	})

	s.Run("LimiterError_ShouldFailOpen", func() {
		s.SetupTest()
		s.limiter.err = errors.New("redis down")
		r := s.engine()
		r.POST("/api/chat", s.mw.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

		w := s.do(r, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

		assert.Equal(s.T(), http.StatusOK, w.Code)
	})

	s.Run("Disabled_ShouldSkipLimiter", func() {
		s.SetupTest()
		s.cfg.RateLimit.Enabled = false
		r := s.engine()
		r.POST("/api/chat", s.mw.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

		s.do(r, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

		assert.Empty(s.T(), s.limiter.keys)
	})
}

func (s *MiddlewareTestSuite) TestSecurity() {
	s.Run("Production_ShouldSetCSP", func() {
		s.SetupTest()
		r := s.engine(s.mw.Security())
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := s.do(r, httptest.NewRequest(http.MethodGet, "/x", nil))

		assert.Equal(s.T(), "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(s.T(), "DENY", w.Header().Get("X-Frame-Options"))
		assert.NotEmpty(s.T(), w.Header().Get("Content-Security-Policy"))
	})
}

func (s *MiddlewareTestSuite) TestCompression() {
	payload := strings.Repeat(`{"title":"Garlic Butter Pasta"}`, 20)

	s.Run("Gzip_ShouldCompressLargeJSON", func() {
		s.SetupTest()
		r := s.engine(s.mw.Compression("/api/chat"))
		r.GET("/x", func(c *gin.Context) { c.Data(http.StatusCreated, "application/json", []byte(payload)) })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		w := s.do(r, req)

		require.Equal(s.T(), http.StatusCreated, w.Code)
		assert.Equal(s.T(), "gzip", w.Header().Get("Content-Encoding"))
		zr, err := gzip.NewReader(w.Body)
		require.NoError(s.T(), err)
		body, err := io.ReadAll(zr)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), payload, string(body))
	})

	s.Run("Brotli_ShouldWinWhenAccepted", func() {
		s.SetupTest()
		r := s.engine(s.mw.Compression())
		r.GET("/x", func(c *gin.Context) { c.Data(http.StatusOK, "application/json", []byte(payload)) })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")

		w := s.do(r, req)

		assert.Equal(s.T(), "br", w.Header().Get("Content-Encoding"))
		body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
		require.NoError(s.T(), err)
		assert.Equal(s.T(), payload, string(body))
	})

	s.Run("SmallBody_ShouldPassThrough", func() {
		s.SetupTest()
		r := s.engine(s.mw.Compression())
		r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		w := s.do(r, req)

		assert.Empty(s.T(), w.Header().Get("Content-Encoding"))
		assert.Equal(s.T(), "ok", w.Body.String())
	})

	s.Run("SkippedPath_ShouldPassThrough", func() {
		s.SetupTest()
		r := s.engine(s.mw.Compression("/api/chat"))
		r.POST("/api/chat", func(c *gin.Context) { c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(payload)) })
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Accept-Encoding", "gzip")

		w := s.do(r, req)

		assert.Empty(s.T(), w.Header().Get("Content-Encoding"))
		assert.Equal(s.T(), payload, w.Body.String())
	})
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareTestSuite))
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"gzip", EncodingGzip},
		{"br", EncodingBrotli},
		{"gzip, br", EncodingBrotli},
		{"br;q=0.5, gzip", EncodingGzip},
		{"br;q=0, gzip;q=0", ""},
		{"*", EncodingBrotli},
		{"identity", ""},
		{"deflate, GZIP;q=0.8", EncodingGzip},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, negotiateEncoding(tt.header))
		})
	}
}
