// Package openai streams chat completions through the official OpenAI SDK
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/httpstream"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"go.uber.org/zap"
)

// Name identifies this provider in logs and metrics
const Name = "openai"

// Config configures the OpenAI client
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// HTTPClient replaces the traced default client
	HTTPClient *http.Client
}

// Client implements outbound.ChatProvider using chat completions
type Client struct {
	client openai.Client
	logger *zap.Logger
}

var _ outbound.ChatProvider = (*Client)(nil)

// NewClient creates a new OpenAI client. Failed requests are not retried.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpstream.NewClient(cfg.Timeout)
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logger.Info("OpenAI client initialized",
		zap.Bool("custom_base_url", cfg.BaseURL != ""),
		zap.Duration("timeout", cfg.Timeout))

	return &Client{
		client: openai.NewClient(opts...),
		logger: logger.Named("openai-client"),
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return Name
}

// StreamChat opens a streaming chat completion. The first content chunk
// is read before returning so that connection and status errors surface
// here rather than mid-stream.
func (c *Client) StreamChat(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.DeveloperMessage != "" {
		messages = append(messages, openai.SystemMessage(req.DeveloperMessage))
	}
	messages = append(messages, openai.UserMessage(req.UserMessage))

	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	})

	cs := &chunkStream{stream: stream}
	cs.primed = cs.advance()
	cs.pending = true
	if !cs.primed && stream.Err() != nil {
		err := stream.Err()
		_ = stream.Close()
		c.logger.Warn("OpenAI stream failed to open", zap.String("model", req.Model), zap.Error(err))
		return nil, fmt.Errorf("openai: %w", err)
	}

	return cs, nil
}

// chunkStream adapts the SDK stream to outbound.FragmentStream, skipping
// chunks without content such as the role preamble and finish marker.
type chunkStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
	primed  bool
	pending bool
}

func (s *chunkStream) advance() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			s.current = text
			return true
		}
	}
	return false
}

func (s *chunkStream) Next() bool {
	if s.pending {
		s.pending = false
		return s.primed
	}
	return s.advance()
}

func (s *chunkStream) Fragment() string { return s.current }

func (s *chunkStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("openai: %w", err)
	}
	return nil
}

func (s *chunkStream) Close() error { return s.stream.Close() }
