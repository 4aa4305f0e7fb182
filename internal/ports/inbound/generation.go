// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"
	"time"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"github.com/google/uuid"
)

// ProgressFunc receives the full accumulated text after every fragment
type ProgressFunc func(text string)

// GenerationResult is one finished generation
type GenerationResult struct {
	ID        uuid.UUID     `json:"id"`
	Provider  string        `json:"provider"`
	RawText   string        `json:"raw_text"`
	Recipe    recipe.Recipe `json:"recipe"`
	Defaulted []string      `json:"defaulted,omitempty"`
	Recovered bool          `json:"recovered,omitempty"`
	Fragments int           `json:"fragments"`
	Duration  time.Duration `json:"-"`
}

// RecipeGenerator is the primary port used by HTTP handlers and the CLI
type RecipeGenerator interface {
	// Generate streams a recipe for req and extracts it once the stream ends
	Generate(ctx context.Context, req recipe.Request, progress ProgressFunc) (*GenerationResult, error)

	// Relay forwards a raw chat request and returns the fragment stream
	Relay(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error)

	// ProviderName names the configured chat provider
	ProviderName() string
}
