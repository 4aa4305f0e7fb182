// Package handlers implements the HTTP API handlers
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/alchemorsel/recipegen/internal/infrastructure/http/contract"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipegen/internal/ports/inbound"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BackendErrorMessage is the relay's body when the chat provider cannot
// be reached
const BackendErrorMessage = "Failed to connect to backend"

const maxChatBody = 64 << 10

type chatBody struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	Model            string `json:"model,omitempty"`
}

// ChatHandler relays raw chat requests to the configured provider
type ChatHandler struct {
	generator inbound.RecipeGenerator
	logger    *zap.Logger
}

// NewChatHandler creates a new chat relay handler
func NewChatHandler(generator inbound.RecipeGenerator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		generator: generator,
		logger:    logger.Named("chat"),
	}
}

// Relay handles POST /api/chat and streams the model output as text/plain
func (h *ChatHandler) Relay(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxChatBody))
	if err != nil {
		_ = c.Error(apperrors.NewBadRequestError("Request body too large"))
		return
	}

	if err := contract.ValidateChat(raw); err != nil {
		if errors.Is(err, contract.ErrMalformedJSON) {
			_ = c.Error(apperrors.NewBadRequestError("Request body must be a JSON object").WithCause(err))
			return
		}
		_ = c.Error(apperrors.NewValidationError(strings.Join(contract.Violations(err), "; ")))
		return
	}

	var body chatBody
	if err := json.Unmarshal(raw, &body); err != nil {
		_ = c.Error(apperrors.NewBadRequestError("Request body must be a JSON object").WithCause(err))
		return
	}

	fragments, err := h.generator.Relay(c.Request.Context(), outbound.ChatRequest{
		DeveloperMessage: body.DeveloperMessage,
		UserMessage:      body.UserMessage,
		Model:            body.Model,
	})
	if err != nil {
		h.logger.Error("Relay failed before streaming",
			zap.String("request_id", middleware.RequestIDFrom(c)),
			zap.String("code", string(apperrors.GetCode(err))),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": BackendErrorMessage})
		return
	}
	defer fragments.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	count := 0
	c.Stream(func(w io.Writer) bool {
		if !fragments.Next() {
			return false
		}
		if _, err := io.WriteString(w, fragments.Fragment()); err != nil {
			return false
		}
		count++
		return true
	})

	if err := fragments.Err(); err != nil && c.Request.Context().Err() == nil {
		h.logger.Warn("Relay stream ended with error",
			zap.String("request_id", middleware.RequestIDFrom(c)),
			zap.Int("fragments", count),
			zap.Error(err),
		)
	}
}

// Schema serves the JSON Schema of the relay body
func (h *ChatHandler) Schema(c *gin.Context) {
	c.Data(http.StatusOK, "application/schema+json", []byte(contract.ChatSchema))
}
