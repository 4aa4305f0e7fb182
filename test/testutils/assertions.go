package testutils

import (
	"testing"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/stretchr/testify/assert"
)

// RecipeAssertions provides recipe-specific assertion methods
type RecipeAssertions struct {
	t *testing.T
}

// NewRecipeAssertions creates a new recipe assertions helper
func NewRecipeAssertions(t *testing.T) *RecipeAssertions {
	return &RecipeAssertions{t: t}
}

// TimeBudgetHolds asserts the prep/cook split respects the limit
func (ra *RecipeAssertions) TimeBudgetHolds(r recipe.Recipe, limit int, msgAndArgs ...interface{}) {
	assert.Equal(ra.t, r.PrepTime+r.CookTime, r.TotalTime, msgAndArgs...)
	assert.LessOrEqual(ra.t, int(r.TotalTime), limit, msgAndArgs...)
	if limit >= recipe.MinPrepMinutes {
		assert.GreaterOrEqual(ra.t, int(r.PrepTime), recipe.MinPrepMinutes, msgAndArgs...)
	}
}

// NutritionNonNegative asserts every nutrition field is >= 0 and sugar is unset
func (ra *RecipeAssertions) NutritionNonNegative(n recipe.Nutrition, msgAndArgs ...interface{}) {
	for _, v := range []int{n.Calories, n.Protein, n.Carbs, n.Fat, n.Fiber, n.Sugar} {
		assert.GreaterOrEqual(ra.t, v, 0, msgAndArgs...)
	}
	assert.Zero(ra.t, n.Sugar, msgAndArgs...)
}

// Complete asserts no required field is left empty or nil
func (ra *RecipeAssertions) Complete(r recipe.Recipe, msgAndArgs ...interface{}) {
	assert.NotEmpty(ra.t, r.Title, msgAndArgs...)
	assert.NotEmpty(ra.t, r.Description, msgAndArgs...)
	assert.NotEmpty(ra.t, r.Difficulty, msgAndArgs...)
	assert.NotNil(ra.t, r.Ingredients, msgAndArgs...)
	assert.NotNil(ra.t, r.Instructions, msgAndArgs...)
	assert.NotNil(ra.t, r.Tips, msgAndArgs...)
	assert.Equal(ra.t, r.Nutrition.Calories, r.Calories, msgAndArgs...)
	assert.Equal(ra.t, r.Nutrition.Fat, r.Fat, msgAndArgs...)
}
