package policy

import (
	"context"
	"fmt"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// Redemption pairs an assignment with its retake.
type Redemption struct {
	// Name of the combined assignment; defaults to Original.
	Name     string
	Original string
	Retake   string
}

func (r Redemption) name() string {
	if r.Name == "" {
		return r.Original
	}
	return r.Name
}

// Redeem replaces each original with the better of the original and its
// retake. Deduction is taken off the retake first; percentages are of the
// points earned on the retake. Scores are compared as fractions, so the two
// may differ in points possible; the result keeps the original's.
type Redeem struct {
	Pairs     []Redemption
	Deduction gradebook.Amount
	KeepParts bool
}

// Name implements Policy.
func (Redeem) Name() string { return "redeem" }

// Apply implements Policy.
func (p Redeem) Apply(ctx context.Context, t *gradebook.Table) error {
	if err := validateAmount(p.Deduction); err != nil {
		return err
	}
	ms := make([]merge, len(p.Pairs))
	for k, pair := range p.Pairs {
		ms[k] = merge{name: pair.name(), sources: []string{pair.Original, pair.Retake}}
	}
	if err := validateMerges(t, ms, p.KeepParts); err != nil {
		return err
	}

	for k, pair := range p.Pairs {
		oj, _ := t.AssignmentIndex(pair.Original)
		rj, _ := t.AssignmentIndex(pair.Retake)
		possible := t.Assignment(oj).PointsPossible
		ms[k].possible = possible
		ms[k].cells = make([]gradebook.Cell, t.NumStudents())
		for i := 0; i < t.NumStudents(); i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			orig, retake := t.Cell(i, oj), t.Cell(i, rj)
			origOK := orig.Graded && !orig.Dropped
			retakeOK := retake.Graded && !retake.Dropped

			var origScore, retakeScore float64
			if origOK {
				origScore = orig.Earned / possible
			}
			if retakeOK {
				earned := retake.Earned - p.Deduction.Of(retake.Earned)
				retakeScore = earned / t.Assignment(rj).PointsPossible
			}

			switch {
			case retakeOK && (!origOK || retakeScore > origScore):
				ms[k].cells[i] = gradebook.Cell{Earned: retakeScore * possible, Graded: true, Lateness: retake.Lateness}
				t.AddNote(i, gradebook.ChannelRedemption, "%s: retake %s (%s) replaces %s (%s)",
					pair.name(), pair.Retake, gradebook.ScoreOf(retakeScore), pair.Original, t.Score(i, oj))
			case origOK:
				ms[k].cells[i] = gradebook.Cell{Earned: orig.Earned, Graded: true, Lateness: orig.Lateness}
			}
		}
	}
	return applyMerges(t, ms, p.KeepParts)
}

// Composite sums several parts into one assignment.
type Composite struct {
	Name  string
	Parts []string
}

// CombineParts merges each composite's parts by summing points earned and
// points possible. Missing or dropped parts earn nothing; a student with no
// graded part gets a missing entry. Lateness is the latest part's.
type CombineParts struct {
	Composites []Composite
	KeepParts  bool
}

// Name implements Policy.
func (CombineParts) Name() string { return "combine_parts" }

// Apply implements Policy.
func (p CombineParts) Apply(ctx context.Context, t *gradebook.Table) error {
	ms := make([]merge, len(p.Composites))
	for k, c := range p.Composites {
		ms[k] = merge{name: c.Name, sources: c.Parts}
	}
	if err := validateMerges(t, ms, p.KeepParts); err != nil {
		return err
	}

	for k, c := range p.Composites {
		cols, _ := t.Resolve(c.Parts...)
		for _, j := range cols {
			ms[k].possible += t.Assignment(j).PointsPossible
		}
		ms[k].cells = make([]gradebook.Cell, t.NumStudents())
		for i := 0; i < t.NumStudents(); i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var out gradebook.Cell
			for _, j := range cols {
				part := t.Cell(i, j)
				if !part.Graded || part.Dropped {
					continue
				}
				out.Graded = true
				out.Earned += part.Earned
				out.Lateness = max(out.Lateness, part.Lateness)
			}
			ms[k].cells[i] = out
		}
	}
	return applyMerges(t, ms, p.KeepParts)
}

// VersionSet names alternative versions of one assignment; each student
// takes at most one.
type VersionSet struct {
	Name     string
	Versions []string
}

// CombineVersions merges each version set into one assignment holding the
// version the student took. Versions must share points possible, and a
// student graded on two versions of a set is an error.
type CombineVersions struct {
	Sets []VersionSet
}

// Name implements Policy.
func (CombineVersions) Name() string { return "combine_versions" }

// Apply implements Policy.
func (p CombineVersions) Apply(ctx context.Context, t *gradebook.Table) error {
	ms := make([]merge, len(p.Sets))
	for k, set := range p.Sets {
		ms[k] = merge{name: set.Name, sources: set.Versions}
	}
	if err := validateMerges(t, ms, false); err != nil {
		return err
	}

	for k, set := range p.Sets {
		cols, _ := t.Resolve(set.Versions...)
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
			taken := -1
			for _, j := range cols {
				if !t.Cell(i, j).Graded {
					continue
				}
				if taken >= 0 {
					return fmt.Errorf("%w: %s has grades for both %s and %s",
						gradebook.ErrInvalidData, t.Student(i).ID, t.Assignment(taken).Name, t.Assignment(j).Name)
				}
				taken = j
			}
			if taken >= 0 {
				ms[k].cells[i] = t.Cell(i, taken)
			}
		}
	}
	return applyMerges(t, ms, false)
}
