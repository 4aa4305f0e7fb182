package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipegen/internal/application/generation"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/mock"
	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipegen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ratelimit"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/alchemorsel/recipegen/pkg/healthcheck"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type ServerTestSuite struct {
	suite.Suite
	cfg     *config.Config
	metrics *monitoring.MetricsCollector
	server  *Server
}

func (s *ServerTestSuite) SetupTest() {
	s.cfg = &config.Config{
		App:         config.AppConfig{Name: "recipegen", Version: "test", Environment: "test"},
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 0, WriteTimeout: time.Minute},
		RateLimit:   config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 2},
		Compression: config.CompressionConfig{Enabled: true, Level: 5, MinSize: 16},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Telemetry:   config.TelemetryConfig{MetricsEnabled: true},
	}
	s.server = s.build()
}

func (s *ServerTestSuite) build() *Server {
	logger := zap.NewNop()
	s.metrics = monitoring.NewMetricsCollector(logger)
	service := generation.NewService(mock.NewProvider(32, 0), s.metrics, generation.Config{}, logger)
	limiter := ratelimit.NewMemoryLimiter(s.cfg.RateLimit.RequestsPerMinute, s.cfg.RateLimit.Burst)
	mw := middleware.New(s.cfg, logger, limiter, s.metrics, nil)

	return NewServer(s.cfg, logger, mw, Handlers{
		Chat:      handlers.NewChatHandler(service, logger),
		Recipes:   handlers.NewRecipeHandler(service, logger),
		WebSocket: handlers.NewWebSocketHandler(handlers.NewSessionStore(service, time.Minute, logger), s.metrics, s.cfg.CORS.AllowedOrigins, logger),
		Health:    healthcheck.New("test", logger),
		Metrics:   s.metrics.Handler(),
	})
}

func (s *ServerTestSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) TestRoutes() {
	s.Run("Health_ShouldBeServed", func() {
		for _, path := range []string{"/health", "/health/live", "/health/ready"} {
			w := s.do(http.MethodGet, path, "", nil)
			assert.Equal(s.T(), http.StatusOK, w.Code, path)
		}
	})

	s.Run("Options_ShouldBeServed", func() {
		w := s.do(http.MethodGet, "/api/options", "", nil)

		assert.Equal(s.T(), http.StatusOK, w.Code)
		assert.Contains(s.T(), w.Body.String(), "cooking_times")
		assert.NotEmpty(s.T(), w.Header().Get("X-Request-ID"))
	})

	s.Run("OpenAPI_ShouldBeServed", func() {
		w := s.do(http.MethodGet, "/api/openapi.yaml", "", nil)

		assert.Equal(s.T(), http.StatusOK, w.Code)
		assert.Contains(s.T(), w.Body.String(), "/api/recipes/ws")
	})

	s.Run("Metrics_ShouldExposeRequestCounter", func() {
		s.do(http.MethodGet, "/api/options", "", nil)

		w := s.do(http.MethodGet, "/metrics", "", nil)

		assert.Equal(s.T(), http.StatusOK, w.Code)
		assert.Contains(s.T(), w.Body.String(), "http_requests_total")
	})

	s.Run("UnknownRoute_ShouldReturnNotFoundEnvelope", func() {
		w := s.do(http.MethodGet, "/nope", "", nil)

		require.Equal(s.T(), http.StatusNotFound, w.Code)
		var body apperrors.ErrorResponse
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(s.T(), apperrors.CodeNotFound, body.Error.Code)
	})

	s.Run("WrongMethod_ShouldBeRejected", func() {
		w := s.do(http.MethodDelete, "/api/options", "", nil)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})
}

func (s *ServerTestSuite) TestGeneration() {
	s.Run("Recipes_ShouldGenerateThroughFullStack", func() {
		s.SetupTest()

		w := s.do(http.MethodPost, "/api/recipes", `{"ingredients":["salmon","lemon"],"cooking_time":"45 minutes"}`, nil)

		require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
		var resp handlers.RecipeResponse
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), "Salmon Skillet", resp.Recipe.Title)
		assert.Equal(s.T(), "60", w.Header().Get("X-RateLimit-Limit"))
	})

	s.Run("Chat_ShouldStreamUncompressed", func() {
		s.SetupTest()

		w := s.do(http.MethodPost, "/api/chat",
			`{"developer_message":"","user_message":"Ingredients: tofu"}`,
			map[string]string{"Accept-Encoding": "gzip, br"})

		require.Equal(s.T(), http.StatusOK, w.Code)
		assert.Empty(s.T(), w.Header().Get("Content-Encoding"))
		assert.True(s.T(), strings.HasPrefix(w.Body.String(), "Recipe Title: Tofu Skillet"))
	})

	s.Run("Burst_ShouldBeRateLimited", func() {
		s.SetupTest()
		body := `{"developer_message":"","user_message":"Ingredients: tofu"}`

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			codes = append(codes, s.do(http.MethodPost, "/api/chat", body, nil).Code)
		}

		assert.Equal(s.T(), []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	s.Run("Options_ShouldNotCountAgainstLimit", func() {
		s.SetupTest()

		for i := 0; i < 5; i++ {
			assert.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, "/api/options", "", nil).Code)
		}
	})
}

func (s *ServerTestSuite) TestCORS() {
	s.Run("Preflight_ShouldAllowConfiguredOrigin", func() {
		w := s.do(http.MethodOptions, "/api/recipes", "", map[string]string{
			"Origin":                        "http://localhost:3000",
			"Access-Control-Request-Method": "POST",
		})

		assert.Equal(s.T(), http.StatusNoContent, w.Code)
		assert.Equal(s.T(), "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func (s *ServerTestSuite) TestLifecycle() {
	s.Run("ServeAndShutdown_ShouldReturnCleanly", func() {
		s.SetupTest()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(s.T(), err)

		done := make(chan error, 1)
		go func() { done <- s.server.Serve(ln) }()

		require.Eventually(s.T(), func() bool {
			resp, err := http.Get("http://" + ln.Addr().String() + "/health/live")
			if err != nil {
				return false
			}
			resp.Body.Close()
			return resp.StatusCode == http.StatusOK
		}, 2*time.Second, 20*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(s.T(), s.server.Shutdown(ctx))
		assert.NoError(s.T(), <-done)
	})

	s.Run("H2C_ShouldWrapEngine", func() {
		s.cfg.Server.EnableH2C = true
		srv := s.build()

		_, isEngine := srv.Handler().(*gin.Engine)
		assert.False(s.T(), isEngine)
	})
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
