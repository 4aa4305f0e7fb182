package recipe

// Supported form options. Labels are sent to the model verbatim.
var (
	ServingOptions = []string{"2 people", "4 people", "6 people", "8 people"}

	CookingTimeOptions = []string{"15 minutes", "30 minutes", "45 minutes", "60 minutes", "90 minutes"}

	CuisineOptions = []string{
		"Indian", "Mediterranean", "Chinese", "American",
		"Continental", "Italian", "Mexican", "Thai",
	}

	DietaryOptions = []string{
		RestrictionVegetarian, RestrictionVegan, "Gluten-Free", "Dairy-Free",
		"Keto", "Paleo", RestrictionLowCarb, "Nut-Free",
	}
)

// Restriction tags the nutrition estimate reacts to
const (
	RestrictionVegetarian = "Vegetarian"
	RestrictionVegan      = "Vegan"
	RestrictionLowCarb    = "Low-Carb"
)

// Form defaults
const (
	DefaultServings    = "4 people"
	DefaultCookingTime = "30 minutes"
	DefaultCuisine     = "Continental"
)

// Options groups every enumeration for clients building a form.
type Options struct {
	Servings     []string `json:"servings"`
	CookingTimes []string `json:"cooking_times"`
	Cuisines     []string `json:"cuisines"`
	Dietary      []string `json:"dietary_restrictions"`
}

// AllOptions returns copies of the supported option lists.
func AllOptions() Options {
	return Options{
		Servings:     append([]string(nil), ServingOptions...),
		CookingTimes: append([]string(nil), CookingTimeOptions...),
		Cuisines:     append([]string(nil), CuisineOptions...),
		Dietary:      append([]string(nil), DietaryOptions...),
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
