package gradebook

import (
	"fmt"

	"github.com/okian/gradebook/internal/domain/dedupe"
)

// AddAssignment appends a column. cells holds one entry per student in row
// order; nil adds the column with every cell missing.
func (t *Table) AddAssignment(a Assignment, cells []Cell) error {
	if err := validateAssignment(a); err != nil {
		return err
	}
	if t.HasAssignment(a.Name) {
		return fmt.Errorf("%w: %q", ErrDuplicateAssignment, a.Name)
	}
	if cells != nil && len(cells) != len(t.students) {
		return fmt.Errorf("%w: %d cells for %d students", ErrInvalidData, len(cells), len(t.students))
	}
	t.assignments = append(t.assignments, a)
	for i := range t.cells {
		var c Cell
		if cells != nil {
			c = cells[i]
		}
		t.cells[i] = append(t.cells[i], c)
	}
	t.assignIdx[a.Name] = len(t.assignments) - 1
	return nil
}

// RemoveAssignments deletes the named columns. The grading groups are reset
// because they may reference removed columns.
func (t *Table) RemoveAssignments(names ...string) error {
	cols, err := t.Resolve(names...)
	if err != nil {
		return err
	}
	drop := make(map[int]struct{}, len(cols))
	for _, j := range cols {
		drop[j] = struct{}{}
	}
	keep := make([]int, 0, len(t.assignments))
	for j := range t.assignments {
		if _, ok := drop[j]; !ok {
			keep = append(keep, j)
		}
	}
	t.project(keep)
	return nil
}

// RestrictToAssignments keeps only the named columns, in the given order.
// The grading groups are reset.
func (t *Table) RestrictToAssignments(names ...string) error {
	if dups := dedupe.Duplicates(names); len(dups) > 0 {
		return fmt.Errorf("%w: %q listed twice", ErrConfiguration, dups[0])
	}
	cols, err := t.Resolve(names...)
	if err != nil {
		return err
	}
	t.project(cols)
	return nil
}

func (t *Table) project(cols []int) {
	assignments := make([]Assignment, len(cols))
	for k, j := range cols {
		assignments[k] = t.assignments[j]
	}
	for i, row := range t.cells {
		next := make([]Cell, len(cols))
		for k, j := range cols {
			next[k] = row[j]
		}
		t.cells[i] = next
	}
	t.assignments = assignments
	t.groups = nil
	t.reindex()
}

// RestrictToStudents keeps only the listed students, in the given order.
func (t *Table) RestrictToStudents(ids ...string) error {
	if dups := dedupe.Duplicates(ids, dedupe.WithCaseFolding(true)); len(dups) > 0 {
		return fmt.Errorf("%w: student %q listed twice", ErrInvalidData, dups[0])
	}
	rows := make([]int, len(ids))
	for k, id := range ids {
		i, ok := t.StudentIndex(id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStudent, id)
		}
		rows[k] = i
	}
	students := make(Students, len(rows))
	cells := make([][]Cell, len(rows))
	notes := make([][]Note, len(rows))
	for k, i := range rows {
		students[k] = t.students[i]
		cells[k] = t.cells[i]
		notes[k] = t.notes[i]
	}
	t.students, t.cells, t.notes = students, cells, notes
	t.reindex()
	return nil
}

// RenameAssignments renames columns. Renamed columns keep their position and
// the grading groups follow the new names.
func (t *Table) RenameAssignments(mapping map[string]string) error {
	names := t.AssignmentNames()
	for from, to := range mapping {
		j, ok := t.assignIdx[from]
		if !ok {
			return fmt.Errorf("%w: unknown assignment %q", ErrScope, from)
		}
		names[j] = to
	}
	for _, n := range names {
		if err := validateAssignment(Assignment{Name: n, PointsPossible: 1}); err != nil {
			return err
		}
	}
	if dups := dedupe.Duplicates(names); len(dups) > 0 {
		return fmt.Errorf("%w: rename produces %q twice", ErrDuplicateAssignment, dups[0])
	}
	for j, n := range names {
		t.assignments[j].Name = n
	}
	for gi := range t.groups {
		for mi := range t.groups[gi].Members {
			m := &t.groups[gi].Members[mi]
			m.Assignment = names[m.Index]
		}
	}
	t.reindex()
	return nil
}
