// Package server provides the HTTP server and route table
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/middleware"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/alchemorsel/recipegen/pkg/healthcheck"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Routes that stream and must bypass response buffering
const (
	ChatPath      = "/api/chat"
	WebSocketPath = "/api/recipes/ws"
)

// Handlers groups everything the route table needs
type Handlers struct {
	Chat      *handlers.ChatHandler
	Recipes   *handlers.RecipeHandler
	WebSocket *handlers.WebSocketHandler
	Health    *healthcheck.HealthCheck
	Metrics   http.Handler
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *zap.Logger
	engine *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, logger *zap.Logger, mw *middleware.Middleware, h Handlers) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: cfg,
		logger: logger.Named("http"),
	}
	s.engine = s.setupRouter(mw, h)

	var handler http.Handler = s.engine
	if cfg.Server.EnableH2C {
		handler = h2c.NewHandler(s.engine, &http2.Server{IdleTimeout: cfg.Server.IdleTimeout})
	}

	s.server = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	return s
}

func (s *Server) setupRouter(mw *middleware.Middleware, h Handlers) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		mw.RequestID(),
		mw.Tracing(),
		mw.Logger(),
		mw.Metrics(),
		mw.Recovery(),
		mw.Security(),
		mw.CORS(),
		mw.Compression(ChatPath, WebSocketPath),
		mw.ErrorHandler(),
	)

	if h.Health != nil {
		r.GET("/health", h.Health.Handler())
		r.GET("/health/live", h.Health.LivenessHandler())
		r.GET("/health/ready", h.Health.ReadinessHandler())
	}
	if h.Metrics != nil && s.config.Telemetry.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := r.Group("/api")
	api.GET("/openapi.yaml", handlers.OpenAPI)
	api.GET("/options", h.Recipes.Options)
	api.GET("/chat/schema", h.Chat.Schema)

	limited := api.Group("", mw.RateLimit())
	limited.POST("/chat", h.Chat.Relay)
	limited.POST("/recipes", h.Recipes.Generate)
	limited.GET("/recipes/ws", h.WebSocket.Serve)

	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.NewNotFoundError("Route"))
	})
	r.NoMethod(func(c *gin.Context) {
		_ = c.Error(apperrors.NewAppError(apperrors.CodeBadRequest, "Method not allowed", c.Request.Method))
	})

	return r
}

// Handler returns the root handler, including the h2c wrapper when enabled
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", ln.Addr().String()),
		zap.Bool("h2c", s.config.Server.EnableH2C),
	)

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
