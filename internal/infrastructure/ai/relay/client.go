// Package relay streams recipes through a backend exposing POST /api/chat
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/httpstream"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"go.uber.org/zap"
)

// Name identifies this provider in logs and metrics
const Name = "relay"

// ChatPath is the relay endpoint on the backend
const ChatPath = "/api/chat"

// Config configures the relay client
type Config struct {
	BackendURL string
	Timeout    time.Duration
	// ReadSize caps the bytes read per fragment
	ReadSize int
}

// Client implements outbound.ChatProvider against a /api/chat backend
type Client struct {
	baseURL    string
	readSize   int
	httpClient *http.Client
	logger     *zap.Logger
}

var _ outbound.ChatProvider = (*Client)(nil)

// NewClient creates a new relay client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BackendURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	logger.Info("Relay client initialized", zap.String("backend_url", baseURL))

	return &Client{
		baseURL:    baseURL,
		readSize:   cfg.ReadSize,
		httpClient: httpstream.NewClient(cfg.Timeout),
		logger:     logger.Named("relay-client"),
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return Name
}

// BaseURL returns the backend the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HealthURL is the endpoint probed by readiness checks
func (c *Client) HealthURL() string {
	return c.baseURL + "/health"
}

// StreamChat posts req and streams the text/plain response body
func (c *Client) StreamChat(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ChatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Relay request failed", zap.Error(err))
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	if err := httpstream.CheckStatus(resp); err != nil {
		c.logger.Warn("Relay rejected request", zap.Error(err))
		return nil, fmt.Errorf("relay: %w", err)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, fmt.Errorf("relay: response has no body")
	}

	return httpstream.NewChunkReader(resp.Body, c.readSize), nil
}
