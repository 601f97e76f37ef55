package policy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// AttemptPenalty adjusts a student's attempt scores, in attempt order,
// before the best one is taken. Undefined entries are missing attempts and
// must stay undefined.
type AttemptPenalty interface {
	Adjust(scores []gradebook.Score) []gradebook.Score
}

// NoPenalty leaves attempt scores unchanged.
type NoPenalty struct{}

// Adjust implements AttemptPenalty.
func (NoPenalty) Adjust(scores []gradebook.Score) []gradebook.Score { return scores }

// PenalizeSubsequent scales attempt i (from 0) by 1 - i*Percent/100, never
// below zero.
type PenalizeSubsequent struct {
	Percent float64
}

// Adjust implements AttemptPenalty.
func (p PenalizeSubsequent) Adjust(scores []gradebook.Score) []gradebook.Score {
	out := make([]gradebook.Score, len(scores))
	for i, s := range scores {
		if !s.Defined {
			continue
		}
		factor := math.Max(0, 1-float64(i)*p.Percent/100)
		out[i] = gradebook.ScoreOf(s.Value * factor)
	}
	return out
}

// Validate rejects negative or non-finite percentages.
func (p PenalizeSubsequent) Validate() error {
	if math.IsNaN(p.Percent) || math.IsInf(p.Percent, 0) || p.Percent < 0 {
		return fmt.Errorf("%w: attempt penalty %v%%", gradebook.ErrConfiguration, p.Percent)
	}
	return nil
}

// AttemptPenaltyFunc adapts a function into an AttemptPenalty.
type AttemptPenaltyFunc func(scores []gradebook.Score) []gradebook.Score

// Adjust implements AttemptPenalty.
func (f AttemptPenaltyFunc) Adjust(scores []gradebook.Score) []gradebook.Score { return f(scores) }

// LatenessStrategy picks the lateness of a combined attempt.
type LatenessStrategy int

const (
	// MaxLateness is late when any graded attempt is late.
	MaxLateness LatenessStrategy = iota
	// MinLateness is on time when any graded attempt is on time.
	MinLateness
	// LatenessOfBest takes the lateness of the attempt that scored best.
	LatenessOfBest
)

// ParseLatenessStrategy maps "max", "min" and "best" to a strategy.
func ParseLatenessStrategy(s string) (LatenessStrategy, bool) {
	switch s {
	case "", "max", "max_lateness":
		return MaxLateness, true
	case "min", "min_lateness":
		return MinLateness, true
	case "best", "lateness_of_best":
		return LatenessOfBest, true
	default:
		return 0, false
	}
}

// AttemptSet names repeated attempts at one logical assignment.
type AttemptSet struct {
	Name     string
	Attempts []string
}

// TakeBest collapses each attempt set into one assignment holding the best
// adjusted attempt. Attempts in a set must share points possible. A student
// with no graded attempt gets a missing entry. Ties go to the earliest
// attempt. The attempt columns are removed unless KeepAttempts is set, and
// grading groups are reset.
type TakeBest struct {
	Sets         []AttemptSet
	Penalty      AttemptPenalty
	Lateness     LatenessStrategy
	KeepAttempts bool
}

// Name implements Policy.
func (TakeBest) Name() string { return "take_best" }

// Apply implements Policy.
func (p TakeBest) Apply(ctx context.Context, t *gradebook.Table) error {
	penalty := p.Penalty
	if penalty == nil {
		penalty = NoPenalty{}
	}
	if v, ok := penalty.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if p.Lateness < MaxLateness || p.Lateness > LatenessOfBest {
		return fmt.Errorf("%w: unknown lateness strategy %d", gradebook.ErrConfiguration, p.Lateness)
	}

	ms := make([]merge, len(p.Sets))
	for k, set := range p.Sets {
		ms[k] = merge{name: set.Name, sources: set.Attempts}
	}
	if err := validateMerges(t, ms, p.KeepAttempts); err != nil {
		return err
	}

	for k, set := range p.Sets {
		cols, _ := t.Resolve(set.Attempts...)
		possible, err := samePossible(t, set.Name, cols)
		if err != nil {
			return err
		}
		ms[k].possible = possible
		ms[k].cells = make([]gradebook.Cell, t.NumStudents())
		for i := 0; i < t.NumStudents(); i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			cell, best, graded, err := p.combine(t, i, cols, possible, penalty)
			if err != nil {
				return fmt.Errorf("%s for %s: %w", set.Name, t.Student(i).ID, err)
			}
			ms[k].cells[i] = cell
			if graded > 1 {
				t.AddNote(i, gradebook.ChannelAttempts, "%s: kept attempt %d (%s) of %d graded attempts",
					set.Name, best+1, t.Assignment(cols[best]).Name, graded)
			}
		}
	}
	return applyMerges(t, ms, p.KeepAttempts)
}

// combine returns the synthetic cell for one student, the position of the
// best attempt and how many attempts were graded.
func (p TakeBest) combine(t *gradebook.Table, i int, cols []int, possible float64, penalty AttemptPenalty) (gradebook.Cell, int, int, error) {
	raw := make([]gradebook.Score, len(cols))
	graded := 0
	for k, j := range cols {
		c := t.Cell(i, j)
		if c.Graded && !c.Dropped {
			raw[k] = gradebook.ScoreOf(c.Earned / possible)
			graded++
		}
	}
	if graded == 0 {
		return gradebook.Cell{}, -1, 0, nil
	}

	adjusted := penalty.Adjust(append([]gradebook.Score(nil), raw...))
	if len(adjusted) != len(raw) {
		return gradebook.Cell{}, -1, 0, fmt.Errorf("%w: attempt penalty returned %d scores for %d attempts",
			gradebook.ErrConfiguration, len(adjusted), len(raw))
	}
	best := -1
	for k, s := range adjusted {
		if !raw[k].Defined || !s.Defined {
			continue
		}
		if best < 0 || s.Value > adjusted[best].Value {
			best = k
		}
	}
	if best < 0 {
		return gradebook.Cell{}, -1, 0, nil
	}

	cell := gradebook.Cell{Earned: adjusted[best].Value * possible, Graded: true}
	switch p.Lateness {
	case LatenessOfBest:
		cell.Lateness = t.Cell(i, cols[best]).Lateness
	case MinLateness:
		cell.Lateness = time.Duration(math.MaxInt64)
		for k, j := range cols {
			if raw[k].Defined {
				cell.Lateness = min(cell.Lateness, t.Cell(i, j).Lateness)
			}
		}
	default:
		for k, j := range cols {
			if raw[k].Defined {
				cell.Lateness = max(cell.Lateness, t.Cell(i, j).Lateness)
			}
		}
	}
	return cell, best, graded, nil
}
