// Package container provides dependency injection using Uber FX
// This implements the Dependency Inversion Principle from SOLID
package container

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/alchemorsel/recipegen/internal/application/generation"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai"
	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/server"
	"github.com/alchemorsel/recipegen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ratelimit"
	"github.com/alchemorsel/recipegen/internal/ports/inbound"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"github.com/alchemorsel/recipegen/pkg/healthcheck"
	"github.com/alchemorsel/recipegen/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Options carries command line settings into the graph
type Options struct {
	ConfigPath string
}

// Module provides all dependency injection modules
var Module = fx.Options(
	// Infrastructure modules
	ConfigModule,
	LoggerModule,
	TelemetryModule,
	RedisModule,

	// Adapters
	ProviderModule,
	RateLimitModule,

	// Service modules
	ServiceModule,

	// HTTP modules
	HTTPModule,

	// Lifecycle hooks
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(opts Options) *config.Loader {
		return config.NewLoader(opts.ConfigPath)
	},
	func(loader *config.Loader) (*config.Config, error) {
		return loader.Load()
	},
)

// LoggerModule provides logging. The atomic level lets config reloads
// change verbosity in place.
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
		return logger.NewWithLevel(logger.Config{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			Development: cfg.IsDevelopment(),
		})
	},
)

// TelemetryModule provides metrics and tracing
var TelemetryModule = fx.Provide(
	monitoring.NewMetricsCollector,
	func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			SamplingRate:   cfg.Telemetry.SamplingRate,
			Enabled:        cfg.Telemetry.TracingEnabled,
		}, log)
	},
)

// RedisModule provides the optional Redis client. It is nil when
// redis.enabled is false.
var RedisModule = fx.Provide(NewRedisClient)

// NewRedisClient connects to redis.url
func NewRedisClient(cfg *config.Config, log *zap.Logger) (redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis.url: %w", err)
	}
	client := redis.NewClient(opts)

	log.Info("Redis client configured", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}

// ProviderModule provides the guarded chat provider
var ProviderModule = fx.Provide(
	NewChatProvider,
	func(g *ai.GuardedProvider) outbound.ChatProvider { return g },
)

// NewChatProvider builds the configured provider behind a circuit breaker
// whose state is exported as a metric
func NewChatProvider(cfg *config.Config, metrics *monitoring.MetricsCollector, log *zap.Logger) (*ai.GuardedProvider, error) {
	provider, err := ai.NewProvider(cfg.AI, log)
	if err != nil {
		return nil, err
	}

	breaker := cfg.AI.CircuitBreaker
	breaker.OnStateChange = func(name string, _, to healthcheck.CircuitBreakerState) {
		metrics.SetCircuitState(name, int(to))
	}
	metrics.SetCircuitState(provider.Name(), int(healthcheck.StateClosed))

	return ai.Guard(provider, breaker, log), nil
}

// RateLimitModule provides the request limiter
var RateLimitModule = fx.Provide(
	func(cfg *config.Config) *ratelimit.MemoryLimiter {
		return ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	},
	NewRateLimiter,
)

// NewRateLimiter picks the limiter named by rate_limit.backend
func NewRateLimiter(cfg *config.Config, client redis.UniversalClient, memory *ratelimit.MemoryLimiter, log *zap.Logger) outbound.RateLimiter {
	if cfg.RateLimit.Backend == "redis" && client != nil {
		log.Info("Using Redis rate limiter", zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute))
		return ratelimit.NewRedisLimiter(client, cfg.RateLimit.RequestsPerMinute, time.Minute)
	}
	return memory
}

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	func(cfg *config.Config, provider outbound.ChatProvider, metrics *monitoring.MetricsCollector, log *zap.Logger) *generation.Service {
		return generation.NewService(provider, metrics, generation.Config{
			Model:            cfg.AI.Model,
			DeveloperMessage: cfg.AI.DeveloperMessage,
		}, log)
	},
	func(s *generation.Service) inbound.RecipeGenerator { return s },
	NewHealthCheck,
)

// NewHealthCheck registers the provider, its circuit, the websocket
// sessions and Redis
func NewHealthCheck(cfg *config.Config, provider *ai.GuardedProvider, sessions *handlers.SessionStore, client redis.UniversalClient, log *zap.Logger) *healthcheck.HealthCheck {
	health := healthcheck.New(cfg.App.Version, log)
	health.SetCacheTTL(cfg.Server.HealthCacheTTL)

	health.Register("circuit_breaker", provider.Breaker())
	health.Register("sessions", healthcheck.NewCustomChecker("sessions", func(context.Context) (healthcheck.Status, string, interface{}) {
		return healthcheck.StatusHealthy, "", map[string]interface{}{"active": sessions.Len()}
	}))
	if url := ai.HealthURL(provider); url != "" {
		health.Register("ai_provider", healthcheck.NewExternalServiceChecker(provider.Name(), url, 5*time.Second))
	}
	if client != nil {
		health.Register("redis", healthcheck.NewRedisChecker(client))
	}
	return health
}

// HTTPModule provides HTTP server and handlers
var HTTPModule = fx.Provide(
	middleware.New,
	func(cfg *config.Config, service *generation.Service, log *zap.Logger) *handlers.SessionStore {
		return handlers.NewSessionStore(service, cfg.Server.SessionIdle, log)
	},
	func(
		cfg *config.Config,
		log *zap.Logger,
		mw *middleware.Middleware,
		generator inbound.RecipeGenerator,
		sessions *handlers.SessionStore,
		metrics *monitoring.MetricsCollector,
		health *healthcheck.HealthCheck,
	) *server.Server {
		return server.NewServer(cfg, log, mw, server.Handlers{
			Chat:      handlers.NewChatHandler(generator, log),
			Recipes:   handlers.NewRecipeHandler(generator, log),
			WebSocket: handlers.NewWebSocketHandler(sessions, metrics, cfg.CORS.AllowedOrigins, log),
			Health:    health,
			Metrics:   metrics.Handler(),
		})
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(RegisterLifecycleHooks)

// LifecycleParams collects what the hooks start and stop
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Loader    *config.Loader
	Logger    *zap.Logger
	Level     zap.AtomicLevel
	Server    *server.Server
	Sessions  *handlers.SessionStore
	Memory    *ratelimit.MemoryLimiter
	Metrics   *monitoring.MetricsCollector
	Tracing   *monitoring.TracingProvider
	Redis     redis.UniversalClient
}

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(p LifecycleParams) {
	log := p.Logger
	cfg := p.Config
	var stopBackground context.CancelFunc

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting recipegen",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("provider", cfg.AI.Provider),
				zap.String("config_file", p.Loader.ConfigFile()),
			)

			if p.Redis != nil {
				if err := p.Redis.Ping(ctx).Err(); err != nil {
					log.Warn("Redis is not reachable yet", zap.Error(err))
				}
			}

			ln, err := net.Listen("tcp", p.Server.Addr())
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", p.Server.Addr(), err)
			}
			go func() {
				if err := p.Server.Serve(ln); err != nil {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()

			var bg context.Context
			bg, stopBackground = context.WithCancel(context.Background())
			go p.Metrics.StartUptimeCounter(bg)
			go p.Memory.Run(bg, cfg.RateLimit.CleanupInterval)
			go p.Sessions.Run(bg, time.Minute)

			if p.Loader.ConfigFile() != "" {
				p.Loader.Watch(func(next *config.Config) {
					p.Level.SetLevel(logger.ParseLevel(next.Logging.Level))
					p.Memory.SetRate(next.RateLimit.RequestsPerMinute, next.RateLimit.Burst)
					log.Info("Configuration reloaded",
						zap.String("log_level", next.Logging.Level),
						zap.Int("requests_per_minute", next.RateLimit.RequestsPerMinute),
					)
				}, func(err error) {
					log.Error("Ignoring invalid configuration change", zap.Error(err))
				})
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down recipegen")

			if stopBackground != nil {
				stopBackground()
			}
			p.Sessions.CloseAll()

			if err := p.Server.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}
			if err := p.Tracing.Shutdown(ctx); err != nil {
				log.Error("Failed to flush traces", zap.Error(err))
			}
			if p.Redis != nil {
				if err := p.Redis.Close(); err != nil {
					log.Error("Failed to close Redis client", zap.Error(err))
				}
			}

			_ = log.Sync()
			return nil
		},
	})
}
