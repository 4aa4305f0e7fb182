// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"time"
)

// ChatRequest is the body of a streaming chat completion. It matches the
// JSON accepted by the /api/chat relay.
type ChatRequest struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	Model            string `json:"model,omitempty"`
}

// FragmentStream yields response text in arrival order. Next blocks until
// a fragment is available or the stream ends; Err reports why it ended.
type FragmentStream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// ChatProvider streams chat completions from a language model
type ChatProvider interface {
	Name() string
	StreamChat(ctx context.Context, req ChatRequest) (FragmentStream, error)
}

// RateDecision is the outcome of a rate limit check
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter limits requests per client key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}

// Generation outcomes reported to metrics
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
	OutcomeCanceled   = "canceled"
	OutcomeInvalid    = "invalid"
)

// GenerationMetrics records generation activity
type GenerationMetrics interface {
	GenerationStarted(provider string)
	GenerationFinished(provider, outcome string, fragments int, duration time.Duration)
}
