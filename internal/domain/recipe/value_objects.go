package recipe

import (
	"fmt"
	"strconv"
	"strings"
)

// Value Objects - Immutable values derived for a generated recipe

// Difficulty is the coarse effort rating shown with a recipe
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Minutes is a whole-minute duration rendered as "<n> minutes".
type Minutes int

// String formats the duration the way it is displayed.
func (m Minutes) String() string {
	return fmt.Sprintf("%d minutes", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Minutes) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts "<n> minutes" or a bare number.
func (m *Minutes) UnmarshalText(text []byte) error {
	n, ok := leadingInt(string(text))
	if !ok {
		return fmt.Errorf("invalid minutes value %q", string(text))
	}
	*m = Minutes(n)
	return nil
}

// Nutrition is a per-recipe estimate. Weights are in grams.
type Nutrition struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
	Fiber    int `json:"fiber"`
	Sugar    int `json:"sugar"`
}

func (n Nutrition) add(delta Nutrition) Nutrition {
	return Nutrition{
		Calories: n.Calories + delta.Calories,
		Protein:  n.Protein + delta.Protein,
		Carbs:    n.Carbs + delta.Carbs,
		Fat:      n.Fat + delta.Fat,
		Fiber:    n.Fiber + delta.Fiber,
		Sugar:    n.Sugar + delta.Sugar,
	}
}

// leadingInt parses the integer prefix of s after leading whitespace,
// the way a form label such as "45 minutes" is read.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
