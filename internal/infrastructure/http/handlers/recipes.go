package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipegen/internal/infrastructure/render"
	"github.com/alchemorsel/recipegen/internal/ports/inbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecipeResponse is the body of a finished generation
type RecipeResponse struct {
	ID        uuid.UUID     `json:"id"`
	Provider  string        `json:"provider"`
	Recipe    recipe.Recipe `json:"recipe"`
	RawText   string        `json:"raw_text"`
	RawHTML   string        `json:"raw_html"`
	Defaulted []string      `json:"defaulted,omitempty"`
}

// NewRecipeResponse renders result for clients
func NewRecipeResponse(result *inbound.GenerationResult, logger *zap.Logger) RecipeResponse {
	html, err := render.HTML(result.RawText)
	if err != nil {
		logger.Warn("Failed to render recipe markdown",
			zap.String("generation_id", result.ID.String()),
			zap.Error(err),
		)
	}
	return RecipeResponse{
		ID:        result.ID,
		Provider:  result.Provider,
		Recipe:    result.Recipe,
		RawText:   result.RawText,
		RawHTML:   html,
		Defaulted: result.Defaulted,
	}
}

// RecipeHandler serves one-shot generations and the form options
type RecipeHandler struct {
	generator inbound.RecipeGenerator
	logger    *zap.Logger
}

// NewRecipeHandler creates a new recipe handler
func NewRecipeHandler(generator inbound.RecipeGenerator, logger *zap.Logger) *RecipeHandler {
	return &RecipeHandler{
		generator: generator,
		logger:    logger.Named("recipes"),
	}
}

// Generate handles POST /api/recipes
func (h *RecipeHandler) Generate(c *gin.Context) {
	var req recipe.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewBadRequestError("Invalid request body").WithCause(err))
		return
	}

	result, err := h.generator.Generate(c.Request.Context(), req, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Debug("Client went away during generation",
				zap.String("request_id", middleware.RequestIDFrom(c)))
			c.Abort()
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, NewRecipeResponse(result, h.logger))
}

// Options handles GET /api/options
func (h *RecipeHandler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, recipe.AllOptions())
}
