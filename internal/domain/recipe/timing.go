package recipe

// Time budget constants
const (
	DefaultTimeLimit = 30
	MinPrepMinutes   = 5
)

// TimeBudget splits the requested limit into prep and cook time.
type TimeBudget struct {
	Prep  Minutes
	Cook  Minutes
	Total Minutes
}

// ParseTimeLimit reads the leading integer of a label such as
// "45 minutes". Unparseable or non-positive labels yield DefaultTimeLimit.
func ParseTimeLimit(label string) int {
	n, ok := leadingInt(label)
	if !ok || n <= 0 {
		return DefaultTimeLimit
	}
	return n
}

// ComputeTimeBudget gives prep roughly 30% of the limit, never less than
// MinPrepMinutes, and cook the remainder. The total never exceeds limit.
func ComputeTimeBudget(limit int) TimeBudget {
	if limit <= 0 {
		limit = DefaultTimeLimit
	}

	prep := max(MinPrepMinutes, limit*3/10)
	// limits under MinPrepMinutes cannot fit the prep floor
	if prep > limit {
		prep = limit
	}
	cook := limit - prep
	total := min(limit, prep+cook)

	return TimeBudget{
		Prep:  Minutes(prep),
		Cook:  Minutes(cook),
		Total: Minutes(total),
	}
}

// ClassifyDifficulty rates a recipe. The Easy rule is checked first.
func ClassifyDifficulty(limit, ingredientCount int) Difficulty {
	switch {
	case limit <= 20 && ingredientCount <= 5:
		return DifficultyEasy
	case limit >= 60 || ingredientCount >= 10:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}
