// Package render turns generated text and recipes into display formats
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTML renders model output as HTML. Raw HTML in the text is dropped.
func HTML(raw string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(raw), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// Text writes a recipe as plain text for terminals
func Text(w io.Writer, r recipe.Recipe) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n%s\n\n", r.Title, strings.Repeat("=", len([]rune(r.Title))))
	fmt.Fprintf(&b, "%s\n\n", r.Description)
	fmt.Fprintf(&b, "Difficulty: %s | Prep: %s | Cook: %s | Total: %s | Serves: %s\n",
		r.Difficulty, r.PrepTime, r.CookTime, r.TotalTime, r.Servings)
	fmt.Fprintf(&b, "Nutrition (est.): %d kcal, %dg protein, %dg carbs, %dg fat\n\n",
		r.Calories, r.Protein, r.Carbs, r.Fat)

	b.WriteString("Ingredients\n")
	for _, item := range r.Ingredients {
		fmt.Fprintf(&b, "  - %s\n", item)
	}

	if len(r.Instructions) > 0 {
		b.WriteString("\nInstructions\n")
		for i, step := range r.Instructions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}

	if len(r.Tips) > 0 {
		b.WriteString("\nTips\n")
		for _, tip := range r.Tips {
			fmt.Fprintf(&b, "  - %s\n", tip)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
