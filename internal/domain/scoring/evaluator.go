// Package scoring computes per-assignment, per-group and overall scores from
// a score table and its grading groups.
package scoring

import (
	"github.com/okian/gradebook/internal/domain/gradebook"
)

// StudentScores holds one student's group scores, in group order, and the
// overall score.
type StudentScores struct {
	Groups  []gradebook.Score
	Overall gradebook.Score
}

// Evaluator scores single rows against a fixed grading configuration. It is
// the hot path of the drop optimizer, which re-scores a row per candidate.
type Evaluator struct {
	groups        []gradebook.Group
	possible      []float64
	missingAsZero bool
}

// NewEvaluator snapshots the table's grading configuration.
func NewEvaluator(t *gradebook.Table) (*Evaluator, error) {
	if !t.HasGroups() {
		return nil, ErrNoGroups
	}
	return &Evaluator{
		groups:        t.Groups(),
		possible:      t.PointsPossible(),
		missingAsZero: t.MissingAsZero(),
	}, nil
}

// Groups returns the grading groups the evaluator scores against.
func (e *Evaluator) Groups() []gradebook.Group { return e.groups }

// GroupIndex returns the position of the named group.
func (e *Evaluator) GroupIndex(name string) (int, bool) {
	for i, g := range e.groups {
		if g.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Group scores group g for one row. Dropped cells are skipped; missing cells
// are skipped unless the table scores them as zero. Extra-credit members add
// to the numerator only. The cap applies after extra credit.
func (e *Evaluator) Group(row []gradebook.Cell, g int) gradebook.Score {
	group := &e.groups[g]
	var num, den float64
	for _, m := range group.Members {
		c := row[m.Index]
		if c.Dropped {
			continue
		}
		var s float64
		switch {
		case c.Graded:
			s = c.Earned / e.possible[m.Index]
		case e.missingAsZero:
			s = 0
		default:
			continue
		}
		num += m.Weight * s
		if !m.ExtraCredit {
			den += m.Weight
		}
	}
	if den <= 0 {
		return gradebook.Undefined()
	}
	v := num / den
	if group.Cap && v > 1 {
		v = 1
	}
	return gradebook.ScoreOf(v)
}

// Overall combines group scores. An undefined regular group makes the
// overall score undefined; an undefined extra-credit group adds nothing.
func (e *Evaluator) Overall(groups []gradebook.Score) gradebook.Score {
	total := 0.0
	for k, s := range groups {
		g := &e.groups[k]
		if !s.Defined {
			if g.ExtraCredit {
				continue
			}
			return gradebook.Undefined()
		}
		total += s.Value * g.Weight
	}
	return gradebook.ScoreOf(total)
}

// Evaluate scores every group and the overall score for one row.
func (e *Evaluator) Evaluate(row []gradebook.Cell) StudentScores {
	groups := make([]gradebook.Score, len(e.groups))
	for g := range e.groups {
		groups[g] = e.Group(row, g)
	}
	return StudentScores{Groups: groups, Overall: e.Overall(groups)}
}
