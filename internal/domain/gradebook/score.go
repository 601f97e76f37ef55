package gradebook

import "fmt"

// Score is a fraction of full credit that may be undefined. Undefined means
// no denominator exists (missing or dropped work), which is distinct from
// a score of zero.
type Score struct {
	Value   float64
	Defined bool
}

// ScoreOf returns a defined score.
func ScoreOf(v float64) Score { return Score{Value: v, Defined: true} }

// Undefined returns the undefined score.
func Undefined() Score { return Score{} }

// Get returns the value and whether it is defined.
func (s Score) Get() (float64, bool) { return s.Value, s.Defined }

// Percent formats the score as a percentage, or "n/a".
func (s Score) Percent() string {
	if !s.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%0.2f%%", s.Value*100)
}

func (s Score) String() string { return s.Percent() }
