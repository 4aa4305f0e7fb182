// Package generation provides the application layer for recipe generation
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/ports/inbound"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrSuperseded is returned to a generation replaced by a newer one in
// the same session.
var ErrSuperseded = errors.New("generation superseded by a newer request")

// Config holds generation settings
type Config struct {
	Model            string
	DeveloperMessage string
}

// Service streams recipes from the configured chat provider
type Service struct {
	provider outbound.ChatProvider
	metrics  outbound.GenerationMetrics
	tracer   trace.Tracer
	logger   *zap.Logger
	config   Config
}

var _ inbound.RecipeGenerator = (*Service)(nil)

// NewService creates a generation service
func NewService(provider outbound.ChatProvider, metrics outbound.GenerationMetrics, cfg Config, logger *zap.Logger) *Service {
	if cfg.DeveloperMessage == "" {
		cfg.DeveloperMessage = recipe.DefaultDeveloperMessage
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	namedLogger := logger.Named("generation")
	namedLogger.Info("Generation service initialized",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Model),
	)

	return &Service{
		provider: provider,
		metrics:  metrics,
		tracer:   otel.Tracer("github.com/alchemorsel/recipegen/generation"),
		logger:   namedLogger,
		config:   cfg,
	}
}

// ProviderName names the configured chat provider
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// NewSession starts an empty session bound to this service
func (s *Service) NewSession() *Session {
	return newSession(s)
}

// Generate runs a single generation in a throwaway session
func (s *Service) Generate(ctx context.Context, req recipe.Request, progress inbound.ProgressFunc) (*inbound.GenerationResult, error) {
	return s.NewSession().Generate(ctx, req, progress)
}

// Relay forwards a caller-built chat request. The model falls back to the
// configured one.
func (s *Service) Relay(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error) {
	if req.Model == "" {
		req.Model = s.config.Model
	}

	stream, err := s.provider.StreamChat(ctx, req)
	if err != nil {
		s.logger.Error("Relay request failed",
			zap.String("provider", s.provider.Name()),
			zap.Error(err),
		)
		return nil, apperrors.NewGenerationFailedError(s.provider.Name(), err)
	}
	return stream, nil
}

func (s *Service) chatRequest(req recipe.Request) outbound.ChatRequest {
	return outbound.ChatRequest{
		DeveloperMessage: s.config.DeveloperMessage,
		UserMessage:      recipe.BuildPrompt(req),
		Model:            s.config.Model,
	}
}

// validationError maps a domain validation error to an AppError
func validationError(err error) error {
	return apperrors.NewValidationError(err.Error()).WithCause(err)
}

func transportError(provider string, err error) error {
	return apperrors.NewGenerationFailedError(provider, fmt.Errorf("stream: %w", err))
}

type noopMetrics struct{}

func (noopMetrics) GenerationStarted(string)                              {}
func (noopMetrics) GenerationFinished(string, string, int, time.Duration) {}
