package recipe

import "strings"

// Form is the editable state behind a RecipeRequest. It keeps the
// ingredient list trimmed and duplicate-free.
type Form struct {
	ingredients  []string
	servings     string
	cookingTime  string
	cuisine      string
	restrictions []string
}

// NewForm returns a form populated with the default options.
func NewForm() *Form {
	return &Form{
		servings:    DefaultServings,
		cookingTime: DefaultCookingTime,
		cuisine:     DefaultCuisine,
	}
}

// AddIngredient appends a trimmed ingredient name.
func (f *Form) AddIngredient(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyIngredient
	}
	if contains(f.ingredients, name) {
		return ErrDuplicateIngredient
	}
	f.ingredients = append(f.ingredients, name)
	return nil
}

// RemoveIngredient drops the ingredient at index.
func (f *Form) RemoveIngredient(index int) error {
	if index < 0 || index >= len(f.ingredients) {
		return ErrIngredientIndex
	}
	f.ingredients = append(f.ingredients[:index:index], f.ingredients[index+1:]...)
	return nil
}

// ToggleRestriction flips a dietary restriction and reports whether it
// is now active.
func (f *Form) ToggleRestriction(tag string) (bool, error) {
	if !contains(DietaryOptions, tag) {
		return false, ErrInvalidRestriction
	}
	for i, existing := range f.restrictions {
		if existing == tag {
			f.restrictions = append(f.restrictions[:i:i], f.restrictions[i+1:]...)
			return false, nil
		}
	}
	f.restrictions = append(f.restrictions, tag)
	return true, nil
}

func (f *Form) SetServings(v string) error {
	if !contains(ServingOptions, v) {
		return ErrInvalidServings
	}
	f.servings = v
	return nil
}

func (f *Form) SetCookingTime(v string) error {
	if !contains(CookingTimeOptions, v) {
		return ErrInvalidCookingTime
	}
	f.cookingTime = v
	return nil
}

func (f *Form) SetCuisine(v string) error {
	if !contains(CuisineOptions, v) {
		return ErrInvalidCuisine
	}
	f.cuisine = v
	return nil
}

// Ingredients returns a copy of the current ingredient list.
func (f *Form) Ingredients() []string {
	return append([]string(nil), f.ingredients...)
}

// Build snapshots the form into a validated Request.
func (f *Form) Build() (Request, error) {
	if len(f.ingredients) == 0 {
		return Request{}, ErrNoIngredients
	}
	req := Request{
		Ingredients:         append([]string(nil), f.ingredients...),
		Servings:            f.servings,
		CookingTime:         f.cookingTime,
		Cuisine:             f.cuisine,
		DietaryRestrictions: append([]string(nil), f.restrictions...),
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}
