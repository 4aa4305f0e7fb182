// Package recipe contains the domain logic for turning streamed model
// output into a structured recipe.
package recipe

// Defaults used when the model output leaves a field unrecognised.
const (
	DefaultTitle       = "Delicious Recipe"
	DefaultDescription = "A tasty dish made with your ingredients"
)

// Recipe is the structured view of one generation. It is built once and
// replaced wholesale by the next generation.
type Recipe struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Difficulty   Difficulty `json:"difficulty"`
	PrepTime     Minutes    `json:"prep_time"`
	CookTime     Minutes    `json:"cook_time"`
	TotalTime    Minutes    `json:"total_time"`
	Servings     string     `json:"servings"`
	Calories     int        `json:"calories"`
	Protein      int        `json:"protein"`
	Carbs        int        `json:"carbs"`
	Fat          int        `json:"fat"`
	Ingredients  []string   `json:"ingredients"`
	Instructions []string   `json:"instructions"`
	Tips         []string   `json:"tips"`
	Nutrition    Nutrition  `json:"nutrition"`
}

// Field names reported in Result.Defaulted
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldIngredients  = "ingredients"
	FieldInstructions = "instructions"
	FieldTips         = "tips"
)

// Result is always usable. Defaulted lists the fields the text did not
// supply; Recovered is set when extraction aborted and every field,
// derived values included, holds its default.
type Result struct {
	Recipe    Recipe   `json:"recipe"`
	Defaulted []string `json:"defaulted,omitempty"`
	Recovered bool     `json:"recovered,omitempty"`
}

// FallbackRecipe is the all-defaults recipe for req.
func FallbackRecipe(req Request) Recipe {
	nutrition := Nutrition{Calories: 350, Protein: 15, Carbs: 45, Fat: 12, Fiber: 8, Sugar: 10}
	return Recipe{
		Title:        DefaultTitle,
		Description:  DefaultDescription,
		Difficulty:   DifficultyMedium,
		PrepTime:     15,
		CookTime:     30,
		TotalTime:    45,
		Servings:     req.Servings,
		Calories:     nutrition.Calories,
		Protein:      nutrition.Protein,
		Carbs:        nutrition.Carbs,
		Fat:          nutrition.Fat,
		Ingredients:  append([]string{}, req.Ingredients...),
		Instructions: []string{},
		Tips:         []string{},
		Nutrition:    nutrition,
	}
}
