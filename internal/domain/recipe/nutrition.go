package recipe

import "strings"

// keywordGroup adds a fixed delta once for every ingredient whose
// lower-cased name contains any of the keywords.
type keywordGroup struct {
	name     string
	keywords []string
	delta    Nutrition
}

var nutritionGroups = []keywordGroup{
	{
		name:     "protein",
		keywords: []string{"chicken", "beef", "fish", "pork"},
		delta:    Nutrition{Calories: 200, Protein: 25, Fat: 8},
	},
	{
		name:     "starch",
		keywords: []string{"rice", "pasta", "bread", "potato"},
		delta:    Nutrition{Calories: 150, Carbs: 30, Fiber: 3},
	},
	{
		name:     "vegetable",
		keywords: []string{"tomato", "onion", "garlic", "pepper"},
		delta:    Nutrition{Calories: 30, Carbs: 7, Fiber: 2},
	},
	{
		name:     "dairy",
		keywords: []string{"cheese", "milk", "yogurt"},
		delta:    Nutrition{Calories: 100, Protein: 8, Fat: 6},
	},
	{
		name:     "fat",
		keywords: []string{"oil", "butter", "olive"},
		delta:    Nutrition{Calories: 120, Fat: 14},
	},
}

// EstimateNutrition is a keyword heuristic, not a food database. Each
// group counts at most once per ingredient; an ingredient may still hit
// several groups. Vegan and Low-Carb adjustments apply afterwards, in
// that order.
func EstimateNutrition(ingredients, restrictions []string) Nutrition {
	var total Nutrition
	for _, ingredient := range ingredients {
		lower := strings.ToLower(ingredient)
		for _, group := range nutritionGroups {
			if group.matches(lower) {
				total = total.add(group.delta)
			}
		}
	}

	if contains(restrictions, RestrictionVegan) {
		total.Protein = max(total.Protein-10, 5)
		total.Fat = max(total.Fat-5, 3)
	}
	if contains(restrictions, RestrictionLowCarb) {
		total.Carbs = max(total.Carbs-15, 5)
		total.Fat += 10
	}

	return total
}

func (g keywordGroup) matches(lower string) bool {
	for _, kw := range g.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
