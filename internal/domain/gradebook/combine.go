package gradebook

import (
	"errors"
	"fmt"
)

// Combine merges tables holding the same students into one table with the
// columns of every input, in argument order. Rows follow the first table.
// Options and the scale come from the first table; grading groups are not
// carried over.
func Combine(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.New("combine: no tables")
	}
	base := tables[0]
	out := base.Clone()
	out.groups = nil

	for k, other := range tables[1:] {
		if err := sameStudents(base, other); err != nil {
			return nil, fmt.Errorf("combine table %d: %w", k+1, err)
		}
		if len(other.scale) > 0 && len(base.scale) > 0 && !other.scale.Equal(base.scale) {
			return nil, fmt.Errorf("%w: combine table %d carries a different scale", ErrConfiguration, k+1)
		}
		for j, a := range other.assignments {
			cells := make([]Cell, len(base.students))
			for i, s := range base.students {
				oi := other.studentIdx[s.Key()]
				cells[i] = other.cells[oi][j]
			}
			if err := out.AddAssignment(a, cells); err != nil {
				return nil, fmt.Errorf("combine table %d: %w", k+1, err)
			}
		}
		for i, s := range base.students {
			oi := other.studentIdx[s.Key()]
			out.notes[i] = append(out.notes[i], other.notes[oi]...)
		}
		for key, letter := range other.overrides {
			if out.overrides == nil {
				out.overrides = make(map[string]string)
			}
			if _, ok := out.overrides[key]; !ok {
				out.overrides[key] = letter
			}
		}
	}
	return out, nil
}

func sameStudents(a, b *Table) error {
	if len(a.students) != len(b.students) {
		return fmt.Errorf("%w: %d students versus %d", ErrStudentMismatch, len(a.students), len(b.students))
	}
	for _, s := range a.students {
		if _, ok := b.studentIdx[s.Key()]; !ok {
			return fmt.Errorf("%w: %q missing", ErrStudentMismatch, s.ID)
		}
	}
	return nil
}
