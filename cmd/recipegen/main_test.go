package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/mock"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CLITestSuite struct {
	suite.Suite
	backend  *httptest.Server
	mu       sync.Mutex
	received outbound.ChatRequest
}

func (s *CLITestSuite) lastRequest() outbound.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

func (s *CLITestSuite) SetupSubTest() {
	s.received = outbound.ChatRequest{}
	s.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req outbound.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.received = req
		s.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(mock.Recipe([]string{"chicken", "rice"})))
	}))
}

func (s *CLITestSuite) TearDownSubTest() {
	s.backend.Close()
}

func (s *CLITestSuite) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env-file", "testdata-missing.env"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (s *CLITestSuite) TestGenerate() {
	s.Run("Server_ShouldPrintRecipeAsJSON", func() {
		// Act
		stdout, stderr, err := s.run("generate", "-i", "chicken", "-i", "rice",
			"--time", "15 minutes", "--diet", recipe.RestrictionLowCarb,
			"--server", s.backend.URL, "--format", "json")

		// Assert
		require.NoError(s.T(), err)
		var r recipe.Recipe
		require.NoError(s.T(), json.Unmarshal([]byte(stdout), &r))
		assert.Equal(s.T(), "Chicken Skillet", r.Title)
		assert.Len(s.T(), r.Instructions, 4)
		assert.LessOrEqual(s.T(), int(r.TotalTime), 15)
		assert.Contains(s.T(), stderr, recipe.MarkerTitle)
		assert.Contains(s.T(), s.lastRequest().UserMessage, "chicken, rice")
		assert.Contains(s.T(), s.lastRequest().UserMessage, recipe.RestrictionLowCarb)
	})

	s.Run("TextFormat_ShouldListSections", func() {
		stdout, _, err := s.run("generate", "-i", "chicken", "--server", s.backend.URL, "--quiet")

		require.NoError(s.T(), err)
		assert.True(s.T(), strings.HasPrefix(stdout, "Chicken Skillet\n"))
		assert.Contains(s.T(), stdout, "Instructions\n  1. ")
	})

	s.Run("Quiet_ShouldNotStreamProgress", func() {
		_, stderr, err := s.run("generate", "-i", "chicken", "--server", s.backend.URL, "--quiet")

		require.NoError(s.T(), err)
		assert.NotContains(s.T(), stderr, recipe.MarkerTitle)
	})

	s.Run("BackendDown_ShouldReportFixedMessage", func() {
		// Arrange
		url := s.backend.URL
		s.backend.Close()

		// Act
		_, _, err := s.run("generate", "-i", "chicken", "--server", url, "--quiet")

		// Assert
		require.Error(s.T(), err)
		assert.Equal(s.T(), apperrors.GenerationFailedMessage, userMessage(err))
	})

	s.Run("UnsupportedTime_ShouldFailBeforeGenerating", func() {
		_, _, err := s.run("generate", "-i", "chicken", "--time", "20 minutes", "--server", s.backend.URL)

		assert.ErrorIs(s.T(), err, recipe.ErrInvalidCookingTime)
		assert.Empty(s.T(), s.lastRequest().UserMessage)
	})

	s.Run("MissingIngredient_ShouldFail", func() {
		_, _, err := s.run("generate", "--server", s.backend.URL)

		assert.Error(s.T(), err)
	})

	s.Run("UnknownFormat_ShouldFail", func() {
		_, _, err := s.run("generate", "-i", "chicken", "--format", "xml")

		assert.ErrorContains(s.T(), err, "unknown format")
	})
}

func (s *CLITestSuite) TestOptions() {
	s.Run("JSON_ShouldListCuisines", func() {
		stdout, _, err := s.run("options", "--format", "json")

		require.NoError(s.T(), err)
		var options recipe.Options
		require.NoError(s.T(), json.Unmarshal([]byte(stdout), &options))
		assert.Equal(s.T(), recipe.CuisineOptions, options.Cuisines)
	})

	s.Run("Text_ShouldListEveryGroup", func() {
		stdout, _, err := s.run("options")

		require.NoError(s.T(), err)
		assert.Contains(s.T(), stdout, "Cooking times: 15 minutes")
		assert.Contains(s.T(), stdout, "Dietary:")
	})
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func TestProgressWriter(t *testing.T) {
	var buf bytes.Buffer
	progress := progressWriter(&buf)

	progress("Rec")
	progress("Recipe")
	progress("Recipe Title")

	assert.Equal(t, "Recipe Title", buf.String())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Validation failed: bad time",
		userMessage(apperrors.NewValidationError("bad time")))
	assert.Equal(t, assert.AnError.Error(), userMessage(assert.AnError))
}
