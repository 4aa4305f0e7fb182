// Package mock provides an offline chat provider that streams a canned
// recipe. It backs the mock provider setting and local demos.
package mock

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
)

// Name identifies this provider in logs and metrics
const Name = "mock"

// Provider streams a recipe assembled from the prompt's ingredient line
type Provider struct {
	chunkSize int
	delay     time.Duration
}

var _ outbound.ChatProvider = (*Provider)(nil)

// NewProvider returns a provider emitting chunkSize-byte fragments with
// delay between them
func NewProvider(chunkSize int, delay time.Duration) *Provider {
	if chunkSize <= 0 {
		chunkSize = 16
	}
	return &Provider{chunkSize: chunkSize, delay: delay}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return Name
}

// StreamChat streams the canned recipe
func (p *Provider) StreamChat(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &stream{
		ctx:       ctx,
		text:      Recipe(promptIngredients(req.UserMessage)),
		chunkSize: p.chunkSize,
		delay:     p.delay,
	}, nil
}

// Recipe renders the canned recipe text for ingredients
func Recipe(ingredients []string) string {
	if len(ingredients) == 0 {
		ingredients = []string{"seasonal vegetables", "olive oil", "salt"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s Skillet\n\n", recipe.MarkerTitle, titleCase(ingredients[0]))
	fmt.Fprintf(&b, "%s A quick one-pan dish built around %s.\n\n", recipe.MarkerDescription, strings.Join(ingredients, ", "))
	b.WriteString(recipe.MarkerIngredients + "\n")
	for _, item := range ingredients {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	b.WriteString("\n" + recipe.MarkerInstructions + "\n")
	b.WriteString("1. Prepare and chop all ingredients.\n")
	b.WriteString("2. Heat a large skillet over medium-high heat.\n")
	fmt.Fprintf(&b, "3. Cook the %s until done, stirring often.\n", ingredients[0])
	b.WriteString("4. Season to taste and serve hot.\n")
	b.WriteString("\n" + recipe.MarkerTips + "\n")
	b.WriteString("- Let the pan get hot before adding anything.\n")
	b.WriteString("- Leftovers keep for three days in the fridge.\n")
	return b.String()
}

// promptIngredients reads the ingredient list from a generated prompt
func promptIngredients(prompt string) []string {
	for _, line := range strings.Split(prompt, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), recipe.MarkerIngredients)
		if !ok {
			continue
		}
		var out []string
		for _, item := range strings.Split(rest, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

type stream struct {
	ctx       context.Context
	text      string
	chunkSize int
	delay     time.Duration
	pos       int
	current   string
	err       error
}

func (s *stream) Next() bool {
	if s.pos >= len(s.text) || s.err != nil {
		return false
	}
	if s.delay > 0 && s.pos > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			s.err = s.ctx.Err()
			return false
		}
	} else if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}

	end := min(s.pos+s.chunkSize, len(s.text))
	for end < len(s.text) && end > s.pos+1 && !utf8.RuneStart(s.text[end]) {
		end--
	}
	s.current = s.text[s.pos:end]
	s.pos = end
	return true
}

func (s *stream) Fragment() string { return s.current }

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error { return nil }
