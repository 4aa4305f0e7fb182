package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/ports/inbound"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/alchemorsel/recipegen/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// GenerationServiceTestSuite exercises the service against a scripted provider
type GenerationServiceTestSuite struct {
	suite.Suite
	provider *testutils.MockChatProvider
	metrics  *testutils.RecordingMetrics
	service  *Service
}

func (s *GenerationServiceTestSuite) SetupTest() {
	s.provider = testutils.NewMockChatProvider("scripted")
	s.metrics = testutils.NewRecordingMetrics()
	s.service = NewService(s.provider, s.metrics, Config{Model: "gpt-4.1-mini"}, zap.NewNop())
}

func request() recipe.Request {
	return recipe.Request{
		Ingredients: []string{"chicken breast", "rice", "garlic", "olive oil"},
		Servings:    "4 people",
		CookingTime: "30 minutes",
		Cuisine:     "Continental",
	}
}

func recipeText() string {
	return testutils.NewRecipeTextBuilder().
		WithTitle("Garlic Chicken Rice").
		WithDescription("Weeknight comfort food.").
		WithIngredients("chicken breast", "rice", "garlic", "olive oil").
		WithInstructions("Cook the rice.", "Sear the chicken.").
		WithTips("Rest the chicken before slicing.").
		String()
}

func (s *GenerationServiceTestSuite) TestGenerate() {
	s.Run("Stream_ShouldAccumulateAndExtract", func() {
		s.SetupTest()
		// Arrange
		text := recipeText()
		chunks := testutils.Chunks(text, 7)
		s.provider.On("StreamChat", mock.Anything, mock.Anything).
			Return(testutils.NewScriptedStream(chunks, nil), nil).Once()

		var progress []string

		// Act
		result, err := s.service.Generate(context.Background(), request(), func(text string) {
			progress = append(progress, text)
		})

		// Assert
		require.NoError(s.T(), err)
		assert.Equal(s.T(), text, result.RawText)
		assert.Equal(s.T(), len(chunks), result.Fragments)
		assert.Equal(s.T(), "scripted", result.Provider)
		assert.Equal(s.T(), "Garlic Chicken Rice", result.Recipe.Title)
		assert.Equal(s.T(), []string{"Cook the rice.", "Sear the chicken."}, result.Recipe.Instructions)
		assert.Equal(s.T(), 500, result.Recipe.Calories)
		assert.Equal(s.T(), recipe.Minutes(9), result.Recipe.PrepTime)

		require.Len(s.T(), progress, len(chunks))
		for i := 1; i < len(progress); i++ {
			assert.True(s.T(), strings.HasPrefix(progress[i], progress[i-1]))
		}
		assert.Equal(s.T(), text, progress[len(progress)-1])

		assert.Equal(s.T(), []string{outbound.OutcomeSuccess}, s.metrics.Outcomes())
	})

	s.Run("Prompt_ShouldCarryMarkersAndModel", func() {
		s.SetupTest()
		var sent outbound.ChatRequest
		s.provider.On("StreamChat", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { sent = args.Get(1).(outbound.ChatRequest) }).
			Return(testutils.NewScriptedStream([]string{"Title: Quick"}, nil), nil).Once()

		req := request()
		req.Ingredients = append(req.Ingredients, "  rice  ")
		_, err := s.service.Generate(context.Background(), req, nil)

		require.NoError(s.T(), err)
		assert.Equal(s.T(), recipe.DefaultDeveloperMessage, sent.DeveloperMessage)
		assert.Equal(s.T(), "gpt-4.1-mini", sent.Model)
		assert.Equal(s.T(), recipe.BuildPrompt(request()), sent.UserMessage)
	})

	s.Run("EmptyStream_ShouldYieldDefaults", func() {
		s.SetupTest()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).
			Return(testutils.NewScriptedStream(nil, nil), nil).Once()

		result, err := s.service.Generate(context.Background(), request(), nil)

		require.NoError(s.T(), err)
		assert.Equal(s.T(), recipe.DefaultTitle, result.Recipe.Title)
		assert.Equal(s.T(), request().Ingredients, result.Recipe.Ingredients)
		assert.Zero(s.T(), result.Fragments)
	})

	s.Run("InvalidRequest_ShouldNotCallProvider", func() {
		s.SetupTest()
		req := request()
		req.Ingredients = nil

		result, err := s.service.Generate(context.Background(), req, nil)

		assert.Nil(s.T(), result)
		assert.True(s.T(), apperrors.Is(err, apperrors.CodeValidationFailed))
		assert.ErrorIs(s.T(), err, recipe.ErrNoIngredients)
		s.provider.AssertNotCalled(s.T(), "StreamChat", mock.Anything, mock.Anything)
		assert.Equal(s.T(), []string{outbound.OutcomeInvalid}, s.metrics.Outcomes())
	})
}

func (s *GenerationServiceTestSuite) TestTransportFailures() {
	s.Run("ProviderError_ShouldReturnFixedMessage", func() {
		s.SetupTest()
		cause := errors.New("status 500")
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(nil, cause).Once()

		result, err := s.service.Generate(context.Background(), request(), nil)

		assert.Nil(s.T(), result)
		var appErr *apperrors.AppError
		require.ErrorAs(s.T(), err, &appErr)
		assert.Equal(s.T(), apperrors.CodeGenerationFailed, appErr.Code)
		assert.Equal(s.T(), apperrors.GenerationFailedMessage, appErr.Message)
		assert.ErrorIs(s.T(), err, cause)
		assert.Equal(s.T(), []string{outbound.OutcomeFailed}, s.metrics.Outcomes())
	})

	s.Run("MidStreamError_ShouldFailAndKeepPreviousRecipe", func() {
		s.SetupTest()
		session := s.service.NewSession()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).
			Return(testutils.NewScriptedStream([]string{recipeText()}, nil), nil).Once()
		first, err := session.Generate(context.Background(), request(), nil)
		require.NoError(s.T(), err)

		broken := testutils.NewScriptedStream([]string{"Recipe Title: Half"}, errors.New("connection reset"))
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(broken, nil).Once()

		_, err = session.Generate(context.Background(), request(), nil)

		assert.True(s.T(), apperrors.Is(err, apperrors.CodeGenerationFailed))
		assert.Same(s.T(), first, session.Latest())
		assert.False(s.T(), session.Generating())
		assert.True(s.T(), broken.Closed())
	})

	s.Run("ParentCanceled_ShouldReturnContextError", func() {
		s.SetupTest()
		ctx, cancel := context.WithCancel(context.Background())
		stream := testutils.NewScriptedStream([]string{"a", "b"}, nil).Gated()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(stream, nil).Once()

		stream.Release(1)
		_, err := s.service.Generate(ctx, request(), func(string) { cancel() })

		assert.ErrorIs(s.T(), err, context.Canceled)
		assert.Equal(s.T(), []string{outbound.OutcomeCanceled}, s.metrics.Outcomes())
	})
}

func (s *GenerationServiceTestSuite) TestSessionGenerations() {
	s.Run("NewGeneration_ShouldSupersedeInFlight", func() {
		s.SetupTest()
		session := s.service.NewSession()

		stale := testutils.NewScriptedStream([]string{"stale ", "late fragment"}, nil).Gated()
		fresh := testutils.NewScriptedStream(testutils.Chunks(recipeText(), 11), nil)
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(stale, nil).Once()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(fresh, nil).Once()

		firstFragment := make(chan struct{})
		type outcome struct {
			result *inbound.GenerationResult
			err    error
		}
		done := make(chan outcome, 1)

		stale.Release(1)
		go func() {
			r, err := session.Generate(context.Background(), request(), func(string) {
				close(firstFragment)
			})
			done <- outcome{r, err}
		}()

		select {
		case <-firstFragment:
		case <-time.After(2 * time.Second):
			s.FailNow("first generation never produced a fragment")
		}
		assert.True(s.T(), session.Generating())

		second, err := session.Generate(context.Background(), request(), nil)
		require.NoError(s.T(), err)

		var first outcome
		select {
		case first = <-done:
		case <-time.After(2 * time.Second):
			s.FailNow("superseded generation did not return")
		}

		assert.ErrorIs(s.T(), first.err, ErrSuperseded)
		assert.Nil(s.T(), first.result)
		assert.Same(s.T(), second, session.Latest())
		assert.Equal(s.T(), recipeText(), session.Text())
		assert.NotContains(s.T(), session.Text(), "stale")
		assert.False(s.T(), session.Generating())
		assert.ElementsMatch(s.T(), []string{outbound.OutcomeSuccess, outbound.OutcomeSuperseded}, s.metrics.Outcomes())
	})

	s.Run("Cancel_ShouldStopInFlight", func() {
		s.SetupTest()
		session := s.service.NewSession()
		stream := testutils.NewScriptedStream([]string{"a", "b"}, nil).Gated()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(stream, nil).Once()

		stream.Release(1)
		_, err := session.Generate(context.Background(), request(), func(string) { session.Cancel() })

		assert.ErrorIs(s.T(), err, context.Canceled)
		assert.NotErrorIs(s.T(), err, ErrSuperseded)
		assert.Nil(s.T(), session.Latest())
		assert.Empty(s.T(), session.Text())
		assert.Equal(s.T(), []string{outbound.OutcomeCanceled}, s.metrics.Outcomes())
	})

	s.Run("CancelThenGenerate_ShouldCountSupersededNotCanceled", func() {
		s.SetupTest()
		session := s.service.NewSession()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).
			Return(testutils.NewScriptedStream([]string{recipeText()}, nil), nil).Once()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).
			Return(testutils.NewScriptedStream([]string{recipeText()}, nil), nil).Once()

		session.Cancel()
		stale, err := session.Begin(context.Background(), request())
		require.NoError(s.T(), err)
		fresh, err := session.Begin(context.Background(), request())
		require.NoError(s.T(), err)

		_, err = stale.Run(nil)
		assert.ErrorIs(s.T(), err, ErrSuperseded)
		_, err = fresh.Run(nil)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), []string{outbound.OutcomeSuperseded, outbound.OutcomeSuccess}, s.metrics.Outcomes())
	})
}

func (s *GenerationServiceTestSuite) TestBeginOrder() {
	s.Run("LaterBegin_ShouldWinWhicheverRunsFirst", func() {
		s.SetupTest()
		session := s.service.NewSession()
		older := testutils.NewScriptedStream([]string{"Recipe Title: Older"}, nil)
		newer := testutils.NewScriptedStream(testutils.Chunks(recipeText(), 9), nil)
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(newer, nil).Once()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(older, nil).Once()

		first, err := session.Begin(context.Background(), request())
		require.NoError(s.T(), err)
		second, err := session.Begin(context.Background(), request())
		require.NoError(s.T(), err)

		// Run in the reverse order of Begin
		result, err := second.Run(nil)
		require.NoError(s.T(), err)
		_, err = first.Run(nil)

		assert.ErrorIs(s.T(), err, ErrSuperseded)
		assert.Same(s.T(), result, session.Latest())
		assert.Equal(s.T(), "Garlic Chicken Rice", session.Latest().Recipe.Title)
		assert.Equal(s.T(), recipeText(), session.Text())
		assert.False(s.T(), session.Generating())
	})

	s.Run("InvalidRequest_ShouldNotDisturbInFlight", func() {
		s.SetupTest()
		session := s.service.NewSession()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).
			Return(testutils.NewScriptedStream([]string{recipeText()}, nil), nil).Once()

		gen, err := session.Begin(context.Background(), request())
		require.NoError(s.T(), err)
		_, err = session.Begin(context.Background(), recipe.Request{})
		require.True(s.T(), apperrors.Is(err, apperrors.CodeValidationFailed))

		result, err := gen.Run(nil)
		require.NoError(s.T(), err)
		assert.Same(s.T(), result, session.Latest())
		assert.Equal(s.T(), []string{outbound.OutcomeInvalid, outbound.OutcomeSuccess}, s.metrics.Outcomes())
	})
}

func (s *GenerationServiceTestSuite) TestRelay() {
	s.Run("EmptyModel_ShouldUseConfigured", func() {
		s.SetupTest()
		stream := testutils.NewScriptedStream([]string{"hi"}, nil)
		s.provider.On("StreamChat", mock.Anything, outbound.ChatRequest{
			DeveloperMessage: "dev",
			UserMessage:      "user",
			Model:            "gpt-4.1-mini",
		}).Return(stream, nil).Once()

		got, err := s.service.Relay(context.Background(), outbound.ChatRequest{DeveloperMessage: "dev", UserMessage: "user"})

		require.NoError(s.T(), err)
		assert.Same(s.T(), stream, got)
	})

	s.Run("ProviderError_ShouldWrap", func() {
		s.SetupTest()
		s.provider.On("StreamChat", mock.Anything, mock.Anything).Return(nil, errors.New("refused")).Once()

		_, err := s.service.Relay(context.Background(), outbound.ChatRequest{UserMessage: "x", Model: "m"})

		assert.True(s.T(), apperrors.Is(err, apperrors.CodeGenerationFailed))
	})
}

func TestGenerationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(GenerationServiceTestSuite))
}
