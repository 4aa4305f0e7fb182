// Package ollama streams chat completions from a local Ollama server
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/httpstream"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"go.uber.org/zap"
)

// Name identifies this provider in logs and metrics
const Name = "ollama"

// Config configures the Ollama client
type Config struct {
	BaseURL string
	// Model overrides the model named in each request
	Model   string
	Timeout time.Duration
}

// Client implements outbound.ChatProvider using the Ollama chat API
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ outbound.ChatProvider = (*Client)(nil)

// NewClient creates a new Ollama client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", baseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout))

	return &Client{
		baseURL: baseURL,
		model:   cfg.Model,
		client:  httpstream.NewClient(cfg.Timeout),
		logger:  logger.Named("ollama-client"),
	}
}

// Ollama API structures
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Name returns the provider name
func (c *Client) Name() string {
	return Name
}

// HealthURL is the endpoint probed by readiness checks
func (c *Client) HealthURL() string {
	return c.baseURL + "/api/tags"
}

// StreamChat opens a streaming chat completion
func (c *Client) StreamChat(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error) {
	model := c.model
	if model == "" {
		model = req.Model
	}

	messages := make([]chatMessage, 0, 2)
	if req.DeveloperMessage != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.DeveloperMessage})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserMessage})

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if err := httpstream.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	c.logger.Debug("Ollama stream opened", zap.String("model", model))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &lineStream{body: resp.Body, scanner: scanner}, nil
}

// lineStream decodes newline-delimited JSON chunks
type lineStream struct {
	body interface{ Close() error }

	scanner *bufio.Scanner
	current string
	err     error
	done    bool
}

func (s *lineStream) Next() bool {
	for !s.done && s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			s.err = fmt.Errorf("failed to decode ollama chunk: %w", err)
			s.done = true
			return false
		}
		if chunk.Error != "" {
			s.err = errors.New(chunk.Error)
			s.done = true
			return false
		}
		if chunk.Done {
			s.done = true
		}
		if chunk.Message.Content != "" {
			s.current = chunk.Message.Content
			return true
		}
	}
	if !s.done {
		s.done = true
		s.err = s.scanner.Err()
		if s.err == nil {
			s.err = fmt.Errorf("ollama stream ended before done: %w", io.ErrUnexpectedEOF)
		}
	}
	return false
}

func (s *lineStream) Fragment() string { return s.current }

func (s *lineStream) Err() error { return s.err }

func (s *lineStream) Close() error { return s.body.Close() }
