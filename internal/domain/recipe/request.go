package recipe

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Request captures the constraints for one generation. It is not
// modified once a generation starts.
type Request struct {
	Ingredients         []string `json:"ingredients" validate:"required,min=1,unique,dive,required,max=200"`
	Servings            string   `json:"servings" validate:"servings_option"`
	CookingTime         string   `json:"cooking_time" validate:"cooking_time_option"`
	Cuisine             string   `json:"cuisine" validate:"cuisine_option"`
	DietaryRestrictions []string `json:"dietary_restrictions" validate:"unique,dive,dietary_option"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		register := func(tag string, options []string) {
			_ = validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return contains(options, fl.Field().String())
			})
		}
		register("servings_option", ServingOptions)
		register("cooking_time_option", CookingTimeOptions)
		register("cuisine_option", CuisineOptions)
		register("dietary_option", DietaryOptions)
	})
	return validate
}

// Validate checks the request against the supported options and maps
// the first violation to a domain error.
func (r Request) Validate() error {
	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.StructField()
	switch {
	case strings.HasPrefix(field, "Ingredients["):
		return ErrEmptyIngredient
	case field == "Ingredients" && fe.Tag() == "unique":
		return ErrDuplicateIngredient
	case field == "Ingredients":
		return ErrNoIngredients
	case field == "Servings":
		return ErrInvalidServings
	case field == "CookingTime":
		return ErrInvalidCookingTime
	case field == "Cuisine":
		return ErrInvalidCuisine
	case field == "DietaryRestrictions":
		return ErrDuplicateRestriction
	case strings.HasPrefix(field, "DietaryRestrictions["):
		return ErrInvalidRestriction
	}
	return err
}

// TimeLimit returns the cooking time label as whole minutes.
func (r Request) TimeLimit() int {
	return ParseTimeLimit(r.CookingTime)
}

// HasRestriction reports whether tag is among the dietary restrictions.
func (r Request) HasRestriction(tag string) bool {
	return contains(r.DietaryRestrictions, tag)
}

// RestrictionsLabel joins the restrictions for display, or "None".
func (r Request) RestrictionsLabel() string {
	if len(r.DietaryRestrictions) == 0 {
		return "None"
	}
	return strings.Join(r.DietaryRestrictions, ", ")
}

// Normalize trims ingredient names, drops blanks and repeats, and fills
// empty option fields with the form defaults.
func (r Request) Normalize() Request {
	ingredients := make([]string, 0, len(r.Ingredients))
	for _, name := range r.Ingredients {
		name = strings.TrimSpace(name)
		if name == "" || contains(ingredients, name) {
			continue
		}
		ingredients = append(ingredients, name)
	}
	r.Ingredients = ingredients
	if r.Servings == "" {
		r.Servings = DefaultServings
	}
	if r.CookingTime == "" {
		r.CookingTime = DefaultCookingTime
	}
	if r.Cuisine == "" {
		r.Cuisine = DefaultCuisine
	}
	return r
}
