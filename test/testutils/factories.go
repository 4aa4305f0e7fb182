// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"
	"strings"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/brianvoe/gofakeit/v6"
)

// RequestFactory provides methods to create test recipe requests
type RequestFactory struct {
	faker *gofakeit.Faker
}

// NewRequestFactory creates a new request factory with seeded faker
func NewRequestFactory(seed int64) *RequestFactory {
	return &RequestFactory{
		faker: gofakeit.New(seed),
	}
}

// Ingredients returns n distinct ingredient names
func (rf *RequestFactory) Ingredients(n int) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		var name string
		switch rf.faker.IntRange(0, 2) {
		case 0:
			name = rf.faker.Vegetable()
		case 1:
			name = rf.faker.Fruit()
		default:
			name = rf.faker.Dinner()
		}
		if seen[name] {
			name = fmt.Sprintf("%s %d", name, len(out))
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Request returns a random valid request
func (rf *RequestFactory) Request() recipe.Request {
	restrictions := []string{}
	for _, tag := range recipe.DietaryOptions {
		if rf.faker.Bool() {
			restrictions = append(restrictions, tag)
		}
	}

	return recipe.Request{
		Ingredients:         rf.Ingredients(rf.faker.IntRange(1, 12)),
		Servings:            rf.faker.RandomString(recipe.ServingOptions),
		CookingTime:         rf.faker.RandomString(recipe.CookingTimeOptions),
		Cuisine:             rf.faker.RandomString(recipe.CuisineOptions),
		DietaryRestrictions: restrictions,
	}
}

// RecipeText returns a builder filled with random, well-formed content
func (rf *RequestFactory) RecipeText() *RecipeTextBuilder {
	b := NewRecipeTextBuilder().
		WithTitle(strings.TrimSuffix(rf.faker.Sentence(3), ".")).
		WithDescription(rf.faker.Sentence(10)).
		WithIngredients(rf.Ingredients(rf.faker.IntRange(1, 8))...)

	steps := make([]string, rf.faker.IntRange(1, 6))
	for i := range steps {
		steps[i] = rf.faker.Sentence(6)
	}
	tips := make([]string, rf.faker.IntRange(1, 3))
	for i := range tips {
		tips[i] = rf.faker.Sentence(5)
	}
	return b.WithInstructions(steps...).WithTips(tips...)
}

// RecipeTextBuilder renders model output in the layout the prompt asks for
type RecipeTextBuilder struct {
	title        string
	description  string
	ingredients  []string
	instructions []string
	tips         []string
}

// NewRecipeTextBuilder creates an empty builder
func NewRecipeTextBuilder() *RecipeTextBuilder {
	return &RecipeTextBuilder{}
}

func (b *RecipeTextBuilder) WithTitle(title string) *RecipeTextBuilder {
	b.title = title
	return b
}

func (b *RecipeTextBuilder) WithDescription(description string) *RecipeTextBuilder {
	b.description = description
	return b
}

func (b *RecipeTextBuilder) WithIngredients(items ...string) *RecipeTextBuilder {
	b.ingredients = items
	return b
}

func (b *RecipeTextBuilder) WithInstructions(steps ...string) *RecipeTextBuilder {
	b.instructions = steps
	return b
}

func (b *RecipeTextBuilder) WithTips(tips ...string) *RecipeTextBuilder {
	b.tips = tips
	return b
}

// Title returns the configured title
func (b *RecipeTextBuilder) Title() string { return b.title }

// Ingredients returns the configured ingredient lines
func (b *RecipeTextBuilder) Ingredients() []string { return b.ingredients }

// Instructions returns the configured steps
func (b *RecipeTextBuilder) Instructions() []string { return b.instructions }

// Tips returns the configured tips
func (b *RecipeTextBuilder) Tips() []string { return b.tips }

// String renders the recipe text
func (b *RecipeTextBuilder) String() string {
	var sb strings.Builder
	if b.title != "" {
		fmt.Fprintf(&sb, "%s %s\n\n", recipe.MarkerTitle, b.title)
	}
	if b.description != "" {
		fmt.Fprintf(&sb, "%s %s\n\n", recipe.MarkerDescription, b.description)
	}
	if len(b.ingredients) > 0 {
		sb.WriteString(recipe.MarkerIngredients + "\n")
		for _, item := range b.ingredients {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
		sb.WriteString("\n")
	}
	if len(b.instructions) > 0 {
		sb.WriteString(recipe.MarkerInstructions + "\n")
		for i, step := range b.instructions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
		}
		sb.WriteString("\n")
	}
	if len(b.tips) > 0 {
		sb.WriteString(recipe.MarkerTips + "\n")
		for _, tip := range b.tips {
			fmt.Fprintf(&sb, "- %s\n", tip)
		}
	}
	return sb.String()
}

// Chunks splits text into fragments of at most size bytes
func Chunks(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
