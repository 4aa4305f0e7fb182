package recipe

import (
	"fmt"
	"strings"
)

// Section markers. The prompt asks the model for exactly these and the
// extractor matches them as line prefixes, so change both together.
const (
	MarkerTitle        = "Recipe Title:"
	MarkerShortTitle   = "Title:"
	MarkerDescription  = "Description:"
	MarkerIngredients  = "Ingredients:"
	MarkerInstructions = "Instructions:"
	MarkerTips         = "Tips:"
)

// DefaultDeveloperMessage is sent alongside every generated prompt.
const DefaultDeveloperMessage = "Generate a recipe"

// BuildPrompt renders the user message for req.
func BuildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ingredients: %s\n", strings.Join(req.Ingredients, ", "))
	fmt.Fprintf(&b, "Servings: %s\n", req.Servings)
	fmt.Fprintf(&b, "Cooking Time: %s (STRICT LIMIT - total time must not exceed this)\n", req.CookingTime)
	fmt.Fprintf(&b, "Cuisine Type: %s\n", req.Cuisine)
	fmt.Fprintf(&b, "Dietary Restrictions: %s\n\n", req.RestrictionsLabel())

	b.WriteString("Please generate a delicious recipe with the following structure:\n\n")
	fmt.Fprintf(&b, "%s [Creative recipe name]\n\n", MarkerTitle)
	fmt.Fprintf(&b, "%s [Brief description of the dish]\n\n", MarkerDescription)
	fmt.Fprintf(&b, "%s\n- [List all ingredients with quantities]\n\n", MarkerIngredients)
	fmt.Fprintf(&b, "%s\n", MarkerInstructions)
	fmt.Fprintf(&b, "1. [Step-by-step instructions with timing - TOTAL TIME MUST NOT EXCEED %s]\n", req.CookingTime)
	b.WriteString("2. [Continue with numbered steps]\n")
	b.WriteString("3. [Include cooking times for each step]\n\n")
	fmt.Fprintf(&b, "%s\n", MarkerTips)
	b.WriteString("- [Helpful cooking tips]\n")
	b.WriteString("- [Serving suggestions]\n")
	b.WriteString("- [Storage recommendations]\n\n")
	fmt.Fprintf(&b, "IMPORTANT: The total cooking time must be %s or less. "+
		"Break down the time between prep and cooking steps accordingly. "+
		"Make it easy to follow and ensure it's delicious!", req.CookingTime)

	return b.String()
}
