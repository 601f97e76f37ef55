package policy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// LateInfo describes one late submission to a LatePenaltyStrategy.
type LateInfo struct {
	Student    gradebook.Student
	Assignment gradebook.Assignment
	Lateness   time.Duration
	// Earned is the points earned before any deduction.
	Earned float64
	// Number counts this student's late submissions in scope, from 1, in
	// column order.
	Number int
	Table  gradebook.View
}

// Penalty is the outcome of a strategy for one late submission.
type Penalty struct {
	Amount gradebook.Amount
	// Forgiven marks a late that was excused; Amount is ignored.
	Forgiven bool
	Reason   string
}

// LatePenaltyStrategy decides the deduction for one late submission.
// Percentages are of the points earned.
type LatePenaltyStrategy interface {
	DeductionFor(info LateInfo) (Penalty, error)
}

type validator interface {
	Validate() error
}

func validateAmount(a gradebook.Amount) error {
	if math.IsNaN(a.Value) || math.IsInf(a.Value, 0) || a.Value < 0 {
		return fmt.Errorf("%w: deduction %v must be a non-negative number", gradebook.ErrConfiguration, a.Value)
	}
	if a.Kind == gradebook.PercentageKind && a.Value > 100 {
		return fmt.Errorf("%w: deduction %s exceeds 100%%", gradebook.ErrConfiguration, a)
	}
	return nil
}

// Deduct takes the same amount off every late submission, however late.
type Deduct struct {
	Amount gradebook.Amount
}

// DeductionFor implements LatePenaltyStrategy.
func (d Deduct) DeductionFor(LateInfo) (Penalty, error) {
	return Penalty{Amount: d.Amount}, nil
}

// Validate rejects negative amounts and percentages above 100.
func (d Deduct) Validate() error { return validateAmount(d.Amount) }

// Forgive excuses each student's first N late submissions and hands the
// rest to Then, which defaults to taking away all credit.
type Forgive struct {
	N    int
	Then LatePenaltyStrategy
}

// DeductionFor implements LatePenaltyStrategy.
func (f Forgive) DeductionFor(info LateInfo) (Penalty, error) {
	if info.Number <= f.N {
		return Penalty{Forgiven: true, Reason: fmt.Sprintf("late %d of %d forgiven", info.Number, f.N)}, nil
	}
	return f.then().DeductionFor(info)
}

func (f Forgive) then() LatePenaltyStrategy {
	if f.Then == nil {
		return Deduct{Amount: gradebook.Percentage(100)}
	}
	return f.Then
}

// Validate rejects a negative N and an invalid fallback.
func (f Forgive) Validate() error {
	if f.N < 0 {
		return fmt.Errorf("%w: cannot forgive %d lates", gradebook.ErrConfiguration, f.N)
	}
	if v, ok := f.then().(validator); ok {
		return v.Validate()
	}
	return nil
}

// LatePenaltyFunc adapts a function into a LatePenaltyStrategy.
type LatePenaltyFunc func(info LateInfo) (Penalty, error)

// DeductionFor implements LatePenaltyStrategy.
func (f LatePenaltyFunc) DeductionFor(info LateInfo) (Penalty, error) { return f(info) }

// PenalizeLates applies a strategy to every late, graded, non-dropped
// submission within scope. Lateness itself is never cleared, so applying
// the policy twice deducts twice.
type PenalizeLates struct {
	Within   []string
	Strategy LatePenaltyStrategy
}

// Name implements Policy.
func (PenalizeLates) Name() string { return "penalize_lates" }

func (p PenalizeLates) strategy() LatePenaltyStrategy {
	if p.Strategy == nil {
		return Deduct{Amount: gradebook.Percentage(100)}
	}
	return p.Strategy
}

// Apply implements Policy.
func (p PenalizeLates) Apply(ctx context.Context, t *gradebook.Table) error {
	cols, err := scope(t, p.Within)
	if err != nil {
		return err
	}
	strategy := p.strategy()
	if v, ok := strategy.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	for i := 0; i < t.NumStudents(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		number := 0
		for _, j := range cols {
			c := t.Cell(i, j)
			if !t.Late(i, j) || c.Dropped || !c.Graded {
				continue
			}
			number++
			a := t.Assignment(j)
			pen, err := strategy.DeductionFor(LateInfo{
				Student:    t.Student(i),
				Assignment: a,
				Lateness:   c.Lateness,
				Earned:     c.Earned,
				Number:     number,
				Table:      t,
			})
			if err != nil {
				return fmt.Errorf("late penalty for %s on %s: %w", t.Student(i).ID, a.Name, err)
			}
			if pen.Forgiven {
				t.AddNote(i, gradebook.ChannelLates, "%s was %s late; forgiven%s", a.Name, c.Lateness.Round(time.Minute), reason(pen.Reason))
				continue
			}
			if err := validateAmount(pen.Amount); err != nil {
				return fmt.Errorf("late penalty for %s on %s: %w", t.Student(i).ID, a.Name, err)
			}
			if pen.Amount.IsZero() {
				continue
			}
			deducted := pen.Amount.Of(c.Earned)
			c.Earned -= deducted
			t.SetCell(i, j, c)
			t.AddNote(i, gradebook.ChannelLates, "%s was %s late; deducted %s (%g points)%s",
				a.Name, c.Lateness.Round(time.Minute), pen.Amount, deducted, reason(pen.Reason))
		}
	}
	return nil
}

func reason(r string) string {
	if r == "" {
		return ""
	}
	return ": " + r
}
