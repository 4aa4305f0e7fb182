package recipe

import "errors"

// Domain errors for recipe requests

var (
	// Form errors
	ErrNoIngredients       = errors.New("please add at least one ingredient")
	ErrEmptyIngredient     = errors.New("ingredient name is required")
	ErrDuplicateIngredient = errors.New("ingredient already added")
	ErrIngredientIndex     = errors.New("ingredient index out of range")

	// Option errors
	ErrInvalidServings      = errors.New("servings must be one of the supported options")
	ErrInvalidCookingTime   = errors.New("cooking time must be one of the supported options")
	ErrInvalidCuisine       = errors.New("cuisine must be one of the supported options")
	ErrInvalidRestriction   = errors.New("unknown dietary restriction")
	ErrDuplicateRestriction = errors.New("dietary restriction listed twice")
)
