// Package ai wires the configured chat provider and guards it with a
// circuit breaker.
package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/mock"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/ollama"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/openai"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/relay"
	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"github.com/alchemorsel/recipegen/pkg/healthcheck"
	"go.uber.org/zap"
)

// NewProvider builds the provider named by cfg.Provider
func NewProvider(cfg config.AIConfig, logger *zap.Logger) (outbound.ChatProvider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.RequestTimeout,
		}, logger), nil
	case config.ProviderOllama:
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: cfg.RequestTimeout,
		}, logger), nil
	case config.ProviderRelay:
		return relay.NewClient(relay.Config{
			BackendURL: cfg.Relay.BackendURL,
			Timeout:    cfg.RequestTimeout,
		}, logger), nil
	case config.ProviderMock:
		return mock.NewProvider(24, 15*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// HealthURL returns the URL readiness checks should probe for provider,
// or "" when it has none.
func HealthURL(provider outbound.ChatProvider) string {
	if g, ok := provider.(*GuardedProvider); ok {
		provider = g.provider
	}
	if h, ok := provider.(interface{ HealthURL() string }); ok {
		return h.HealthURL()
	}
	return ""
}

// GuardedProvider rejects calls while its circuit is open. A stream
// counts as failed when it ends with an error other than cancellation.
type GuardedProvider struct {
	provider outbound.ChatProvider
	breaker  *healthcheck.CircuitBreaker
}

var _ outbound.ChatProvider = (*GuardedProvider)(nil)

// Guard wraps provider with a circuit breaker named after it
func Guard(provider outbound.ChatProvider, cfg healthcheck.CircuitBreakerConfig, logger *zap.Logger) *GuardedProvider {
	log := logger.Named("circuit-breaker")
	onChange := cfg.OnStateChange
	cfg.OnStateChange = func(name string, from, to healthcheck.CircuitBreakerState) {
		log.Warn("Circuit breaker state changed",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	return &GuardedProvider{
		provider: provider,
		breaker:  healthcheck.NewCircuitBreaker(provider.Name(), cfg),
	}
}

// Name returns the wrapped provider's name
func (g *GuardedProvider) Name() string {
	return g.provider.Name()
}

// Breaker exposes the circuit for health reporting
func (g *GuardedProvider) Breaker() *healthcheck.CircuitBreaker {
	return g.breaker
}

// StreamChat forwards to the wrapped provider when the circuit allows it
func (g *GuardedProvider) StreamChat(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, err
	}

	stream, err := g.provider.StreamChat(ctx, req)
	if err != nil {
		g.breaker.Record(failure(err))
		return nil, err
	}
	return &guardedStream{FragmentStream: stream, breaker: g.breaker}, nil
}

func failure(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type guardedStream struct {
	outbound.FragmentStream
	breaker *healthcheck.CircuitBreaker
	once    sync.Once
}

func (s *guardedStream) Next() bool {
	if s.FragmentStream.Next() {
		return true
	}
	s.once.Do(func() { s.breaker.Record(failure(s.FragmentStream.Err())) })
	return false
}

func (s *guardedStream) Close() error {
	s.once.Do(func() { s.breaker.Record(nil) })
	return s.FragmentStream.Close()
}
