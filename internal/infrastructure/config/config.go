// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/recipegen/pkg/healthcheck"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RECIPEGEN_AI_PROVIDER
const EnvPrefix = "RECIPEGEN"

// Provider names accepted by ai.provider
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderRelay  = "relay"
	ProviderMock   = "mock"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	AI          AIConfig          `mapstructure:"ai"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Compression CompressionConfig `mapstructure:"compression"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionIdle     time.Duration `mapstructure:"session_idle"`
	HealthCacheTTL  time.Duration `mapstructure:"health_cache_ttl"`
	EnableH2C       bool          `mapstructure:"enable_h2c"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AIConfig contains chat provider configuration
type AIConfig struct {
	Provider         string                           `mapstructure:"provider"`
	Model            string                           `mapstructure:"model"`
	DeveloperMessage string                           `mapstructure:"developer_message"`
	RequestTimeout   time.Duration                    `mapstructure:"request_timeout"`
	OpenAI           OpenAIConfig                     `mapstructure:"openai"`
	Ollama           OllamaConfig                     `mapstructure:"ollama"`
	Relay            RelayConfig                      `mapstructure:"relay"`
	CircuitBreaker   healthcheck.CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// OpenAIConfig configures the OpenAI chat completions provider
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// OllamaConfig configures a local Ollama server
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// RelayConfig points at another recipegen (or compatible) /api/chat relay
type RelayConfig struct {
	BackendURL string `mapstructure:"backend_url"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Backend           string        `mapstructure:"backend"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// CompressionConfig controls response compression
type CompressionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Level   int  `mapstructure:"level"`
	MinSize int  `mapstructure:"min_size"`
}

// CORSConfig lists the origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// TelemetryConfig controls tracing and metrics
type TelemetryConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Loader reads configuration and keeps the viper instance for reloads
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// NewLoader prepares a loader. An empty configPath searches the default
// locations for config.yaml.
func NewLoader(configPath string) *Loader {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/recipegen")
	}

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Load reads the config file, if any, and returns a validated Config
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Watch calls fn with the new configuration whenever the config file
// changes. Invalid edits are reported to onError and otherwise ignored.
func (l *Loader) Watch(fn func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFile returns the file in use, or "" when running on defaults
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "recipegen")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	// Streams can run for a while
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.session_idle", "30m")
	v.SetDefault("server.health_cache_ttl", "5s")
	v.SetDefault("server.enable_h2c", false)

	// AI defaults
	v.SetDefault("ai.provider", ProviderRelay)
	v.SetDefault("ai.model", "gpt-4.1-mini")
	v.SetDefault("ai.developer_message", "Generate a recipe")
	v.SetDefault("ai.request_timeout", "2m")
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", "")
	v.SetDefault("ai.ollama.base_url", "http://localhost:11434")
	v.SetDefault("ai.ollama.model", "llama3.2:3b")
	v.SetDefault("ai.relay.backend_url", "http://localhost:8000")
	v.SetDefault("ai.circuit_breaker.failure_threshold", 5)
	v.SetDefault("ai.circuit_breaker.success_threshold", 1)
	v.SetDefault("ai.circuit_breaker.timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.cleanup_interval", "5m")

	// Compression defaults
	v.SetDefault("compression.enabled", true)
	v.SetDefault("compression.level", 5)
	v.SetDefault("compression.min_size", 1024)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	// Telemetry defaults
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.sampling_rate", 0.1)
	v.SetDefault("telemetry.metrics_enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	// Validate port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.AI.Provider {
	case ProviderOpenAI:
		if c.AI.OpenAI.APIKey == "" && c.AI.OpenAI.BaseURL == "" {
			return fmt.Errorf("ai.openai.api_key is required for the openai provider")
		}
	case ProviderOllama:
		if err := validURL("ai.ollama.base_url", c.AI.Ollama.BaseURL); err != nil {
			return err
		}
	case ProviderRelay:
		if err := validURL("ai.relay.backend_url", c.AI.Relay.BackendURL); err != nil {
			return err
		}
	case ProviderMock:
	default:
		return fmt.Errorf("ai.provider must be one of openai, ollama, relay, mock; got %q", c.AI.Provider)
	}

	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate_limit.requests_per_minute must be positive")
		}
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if !c.Redis.Enabled {
				return fmt.Errorf("rate_limit.backend redis requires redis.enabled")
			}
		default:
			return fmt.Errorf("rate_limit.backend must be memory or redis; got %q", c.RateLimit.Backend)
		}
	}

	if c.Compression.Level < -1 || c.Compression.Level > 11 {
		return fmt.Errorf("compression.level must be between -1 and 11")
	}

	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate must be between 0 and 1")
	}

	return nil
}

func validURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL; got %q", key, raw)
	}
	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
