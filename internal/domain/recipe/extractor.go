package recipe

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// parseState is the section the extractor is currently reading.
type parseState int

const (
	statePreamble parseState = iota
	stateInTitle
	stateInDescription
	stateInIngredients
	stateInInstructions
	stateInTips
)

type sectionMarker struct {
	prefix string
	state  parseState
}

// "Recipe Title:" must be tried before "Title:".
var sectionMarkers = []sectionMarker{
	{MarkerTitle, stateInTitle},
	{MarkerShortTitle, stateInTitle},
	{MarkerDescription, stateInDescription},
	{MarkerIngredients, stateInIngredients},
	{MarkerInstructions, stateInInstructions},
	{MarkerTips, stateInTips},
}

const maxFallbackTitleLen = 100

var numberedStep = regexp.MustCompile(`^\d+\.\s*`)

// extraction accumulates what the line scan finds.
type extraction struct {
	state parseState
	seen  map[parseState]bool

	title         string
	fallbackTitle string
	description   string

	ingredients  []string
	instructions []string
	tips         []string
}

// Extract turns raw model output into a Recipe. It never fails: missing
// sections fall back to defaults and a panic while parsing yields the
// all-defaults recipe.
func Extract(raw string, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Recipe:    FallbackRecipe(req),
				Defaulted: []string{FieldTitle, FieldDescription, FieldIngredients, FieldInstructions, FieldTips},
				Recovered: true,
			}
		}
	}()

	ex := &extraction{seen: make(map[parseState]bool)}
	for _, line := range splitLines(raw) {
		consumeLine(ex, line)
	}
	return ex.build(req)
}

// consumeLine feeds one line to the scan. Tests wrap it.
var consumeLine = (*extraction).consume

func splitLines(raw string) []string {
	parts := strings.Split(raw, "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// matchMarker reports whether line opens a section. Markdown emphasis
// and heading characters around the marker are ignored.
func matchMarker(line string) (parseState, string, bool) {
	bare := strings.TrimLeft(line, "#*_ \t")
	for _, m := range sectionMarkers {
		if strings.HasPrefix(bare, m.prefix) {
			rest := strings.TrimPrefix(bare, m.prefix)
			return m.state, strings.TrimSpace(strings.Trim(rest, "*_ \t")), true
		}
	}
	return statePreamble, "", false
}

func (ex *extraction) consume(line string) {
	if state, rest, ok := matchMarker(line); ok {
		ex.enter(state, rest)
		return
	}

	if ex.fallbackTitle == "" && isTitleCandidate(line) {
		ex.fallbackTitle = line
	}

	switch ex.state {
	case stateInTitle:
		ex.title = line
		ex.state = statePreamble
	case stateInDescription:
		ex.description = line
		ex.state = statePreamble
	case stateInIngredients:
		if item, ok := listItem(line); ok {
			ex.ingredients = append(ex.ingredients, item)
		}
	case stateInInstructions:
		if numberedStep.MatchString(line) {
			if step := strings.TrimSpace(numberedStep.ReplaceAllString(line, "")); step != "" {
				ex.instructions = append(ex.instructions, step)
			}
		}
	case stateInTips:
		if item, ok := listItem(line); ok {
			ex.tips = append(ex.tips, item)
		}
	}
}

// enter switches to the section opened by a marker line. Only the first
// occurrence of a section is read; a repeat is skipped like preamble.
func (ex *extraction) enter(state parseState, rest string) {
	if ex.seen[state] {
		ex.state = statePreamble
		return
	}
	ex.seen[state] = true
	ex.state = state

	switch state {
	case stateInTitle:
		if rest != "" {
			ex.title = rest
			ex.state = statePreamble
		}
	case stateInDescription:
		if rest != "" {
			ex.description = rest
			ex.state = statePreamble
		}
	}
}

// listItem accepts "-" or "•" bullets (prefix stripped) and bare lines
// without a colon.
func listItem(line string) (string, bool) {
	for _, bullet := range []string{"-", "•"} {
		if strings.HasPrefix(line, bullet) {
			item := strings.TrimSpace(strings.TrimPrefix(line, bullet))
			return item, item != ""
		}
	}
	if strings.Contains(line, ":") {
		return "", false
	}
	return line, true
}

func isTitleCandidate(line string) bool {
	return utf8.RuneCountInString(line) < maxFallbackTitleLen &&
		!strings.ContainsAny(line, ":-")
}

func (ex *extraction) build(req Request) Result {
	var defaulted []string

	title := ex.title
	if title == "" {
		title = ex.fallbackTitle
	}
	if title == "" {
		title = DefaultTitle
		defaulted = append(defaulted, FieldTitle)
	}

	description := ex.description
	if description == "" {
		description = DefaultDescription
		defaulted = append(defaulted, FieldDescription)
	}

	ingredients := ex.ingredients
	if len(ingredients) == 0 {
		ingredients = append([]string{}, req.Ingredients...)
		defaulted = append(defaulted, FieldIngredients)
	}

	instructions := ex.instructions
	if len(instructions) == 0 {
		instructions = []string{}
		defaulted = append(defaulted, FieldInstructions)
	}

	tips := ex.tips
	if len(tips) == 0 {
		tips = []string{}
		defaulted = append(defaulted, FieldTips)
	}

	limit := req.TimeLimit()
	budget := ComputeTimeBudget(limit)
	nutrition := EstimateNutrition(ingredients, req.DietaryRestrictions)

	return Result{
		Recipe: Recipe{
			Title:        title,
			Description:  description,
			Difficulty:   ClassifyDifficulty(limit, len(ingredients)),
			PrepTime:     budget.Prep,
			CookTime:     budget.Cook,
			TotalTime:    budget.Total,
			Servings:     req.Servings,
			Calories:     nutrition.Calories,
			Protein:      nutrition.Protein,
			Carbs:        nutrition.Carbs,
			Fat:          nutrition.Fat,
			Ingredients:  ingredients,
			Instructions: instructions,
			Tips:         tips,
			Nutrition:    nutrition,
		},
		Defaulted: defaulted,
	}
}
