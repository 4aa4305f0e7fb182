package recipe_test

import (
	"testing"
	"time"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/test/testutils"
	"github.com/stretchr/testify/assert"
)

var sampleIngredients = []string{"chicken breast", "rice", "garlic", "olive oil"}

func TestEstimateNutrition_SumsEveryGroup(t *testing.T) {
	got := recipe.EstimateNutrition(sampleIngredients, nil)

	assert.Equal(t, recipe.Nutrition{
		Calories: 500,
		Protein:  25,
		Carbs:    37,
		Fat:      22,
		Fiber:    5,
		Sugar:    0,
	}, got)
}

func TestEstimateNutrition_Restrictions(t *testing.T) {
	t.Run("Vegan_ShouldReduceProteinAndFat", func(t *testing.T) {
		got := recipe.EstimateNutrition(sampleIngredients, []string{recipe.RestrictionVegan})
		assert.Equal(t, 15, got.Protein)
		assert.Equal(t, 17, got.Fat)
		assert.Equal(t, 37, got.Carbs)
	})

	t.Run("LowCarb_ShouldReduceCarbsAndRaiseFat", func(t *testing.T) {
		got := recipe.EstimateNutrition(sampleIngredients, []string{recipe.RestrictionLowCarb})
		assert.Equal(t, 22, got.Carbs)
		assert.Equal(t, 32, got.Fat)
		assert.Equal(t, 25, got.Protein)
	})

	t.Run("VeganThenLowCarb_ShouldApplyInOrder", func(t *testing.T) {
		got := recipe.EstimateNutrition(sampleIngredients, []string{recipe.RestrictionLowCarb, recipe.RestrictionVegan})
		assert.Equal(t, 15, got.Protein)
		assert.Equal(t, 27, got.Fat)
		assert.Equal(t, 22, got.Carbs)
	})

	t.Run("EmptyList_ShouldClampAtFloors", func(t *testing.T) {
		got := recipe.EstimateNutrition(nil, []string{recipe.RestrictionVegan, recipe.RestrictionLowCarb})
		assert.Equal(t, 5, got.Protein)
		assert.Equal(t, 13, got.Fat)
		assert.Equal(t, 5, got.Carbs)
		assert.Zero(t, got.Calories)
	})

	t.Run("RestrictionMatch_ShouldBeCaseSensitive", func(t *testing.T) {
		got := recipe.EstimateNutrition(sampleIngredients, []string{"vegan"})
		assert.Equal(t, 25, got.Protein)
	})
}

func TestEstimateNutrition_GroupCountsOncePerIngredient(t *testing.T) {
	// "olive oil" hits two fat keywords but one group
	got := recipe.EstimateNutrition([]string{"olive oil"}, nil)
	assert.Equal(t, recipe.Nutrition{Calories: 120, Fat: 14}, got)

	// "pepper jack cheese" hits vegetable and dairy
	got = recipe.EstimateNutrition([]string{"Pepper Jack CHEESE"}, nil)
	assert.Equal(t, recipe.Nutrition{Calories: 130, Protein: 8, Carbs: 7, Fat: 6, Fiber: 2}, got)
}

func TestEstimateNutrition_NeverNegative(t *testing.T) {
	factory := testutils.NewRequestFactory(time.Now().UnixNano())
	assertions := testutils.NewRecipeAssertions(t)

	for i := 0; i < 200; i++ {
		req := factory.Request()
		got := recipe.EstimateNutrition(req.Ingredients, req.DietaryRestrictions)
		assertions.NutritionNonNegative(got, "ingredients %v restrictions %v", req.Ingredients, req.DietaryRestrictions)
	}
}
