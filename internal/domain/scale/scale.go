// Package scale maps numeric overall scores to letter grades.
package scale

import (
	"fmt"
	"math"
	"strings"
)

// roundingOffset is how far RoundedDefault lowers each cutoff (half a point).
const roundingOffset = 0.005

// Threshold pairs a letter with the minimum score needed to earn it.
type Threshold struct {
	Letter string  `json:"letter" koanf:"letter"`
	Cutoff float64 `json:"cutoff" koanf:"cutoff"`
}

// Scale is an ordered list of thresholds with strictly decreasing cutoffs.
// The last letter also catches every score below its own cutoff.
type Scale []Threshold

// Default returns the standard scale used when a course configures none.
func Default() Scale {
	return Scale{
		{Letter: "A+", Cutoff: 0.97},
		{Letter: "A", Cutoff: 0.93},
		{Letter: "A-", Cutoff: 0.90},
		{Letter: "B+", Cutoff: 0.87},
		{Letter: "B", Cutoff: 0.83},
		{Letter: "B-", Cutoff: 0.80},
		{Letter: "C+", Cutoff: 0.77},
		{Letter: "C", Cutoff: 0.73},
		{Letter: "C-", Cutoff: 0.70},
		{Letter: "D", Cutoff: 0.60},
		{Letter: "F", Cutoff: 0},
	}
}

// RoundedDefault returns Default with every cutoff half a point lower, so
// that 92.5% earns an A. The floor letter keeps its cutoff.
func RoundedDefault() Scale {
	s := Default()
	for i := 0; i < len(s)-1; i++ {
		s[i].Cutoff -= roundingOffset
	}
	return s
}

// Validate reports whether the scale is non-empty, uses unique non-empty
// letters and has strictly decreasing finite cutoffs.
func (s Scale) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: scale is empty", ErrInvalidScale)
	}
	seen := make(map[string]struct{}, len(s))
	prev := math.Inf(1)
	for _, t := range s {
		letter := strings.TrimSpace(t.Letter)
		if letter == "" {
			return fmt.Errorf("%w: empty letter", ErrInvalidScale)
		}
		if _, dup := seen[letter]; dup {
			return fmt.Errorf("%w: duplicate letter %q", ErrInvalidScale, letter)
		}
		seen[letter] = struct{}{}
		if math.IsNaN(t.Cutoff) || math.IsInf(t.Cutoff, 0) {
			return fmt.Errorf("%w: cutoff for %q is not finite", ErrInvalidScale, letter)
		}
		if t.Cutoff >= prev {
			return fmt.Errorf("%w: scale is not monotonically decreasing at %q", ErrInvalidScale, letter)
		}
		prev = t.Cutoff
	}
	return nil
}

// Clone returns an independent copy.
func (s Scale) Clone() Scale {
	if s == nil {
		return nil
	}
	out := make(Scale, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both scales hold the same letters and cutoffs.
func (s Scale) Equal(other Scale) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Letters returns the letters in scale order.
func (s Scale) Letters() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.Letter
	}
	return out
}

// Letter returns the first letter whose cutoff the score meets or exceeds.
// Scores below every cutoff map to the lowest letter.
func (s Scale) Letter(score float64) string {
	if len(s) == 0 {
		return ""
	}
	for _, t := range s {
		if score >= t.Cutoff {
			return t.Letter
		}
	}
	return s[len(s)-1].Letter
}

// Resolver maps student scores to letters, letting manual overrides win.
type Resolver struct {
	scale     Scale
	overrides map[string]string
}

// NewResolver validates the scale and indexes the overrides by
// case-insensitive student id.
func NewResolver(s Scale, overrides map[string]string) (*Resolver, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	r := &Resolver{scale: s.Clone(), overrides: make(map[string]string, len(overrides))}
	for id, letter := range overrides {
		letter = strings.TrimSpace(letter)
		if letter == "" {
			return nil, fmt.Errorf("%w: empty override letter for %q", ErrInvalidScale, id)
		}
		r.overrides[strings.ToLower(id)] = letter
	}
	return r, nil
}

// Scale returns a copy of the resolver's scale.
func (r *Resolver) Scale() Scale { return r.scale.Clone() }

// Resolve returns the letter for one student. An override takes precedence
// over the scale entirely, even when the score is undefined.
func (r *Resolver) Resolve(studentID string, score float64, defined bool) (string, error) {
	if letter, ok := r.overrides[strings.ToLower(studentID)]; ok {
		return letter, nil
	}
	if !defined || math.IsNaN(score) {
		return "", fmt.Errorf("%w: student %s", ErrUndefinedScore, studentID)
	}
	return r.scale.Letter(score), nil
}

// Count is the number of students holding a letter.
type Count struct {
	Letter string `json:"letter"`
	N      int    `json:"n"`
}

// Distribution counts letters in scale order. Letters outside the scale
// (manual overrides such as "I") follow in first-seen order; empty letters
// are skipped.
func Distribution(letters []string, s Scale) []Count {
	out := make([]Count, 0, len(s))
	pos := make(map[string]int, len(s))
	for _, t := range s {
		pos[t.Letter] = len(out)
		out = append(out, Count{Letter: t.Letter})
	}
	for _, l := range letters {
		if l == "" {
			continue
		}
		i, ok := pos[l]
		if !ok {
			i = len(out)
			pos[l] = i
			out = append(out, Count{Letter: l})
		}
		out[i].N++
	}
	return out
}
