package policy

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// Exception is a one-off adjustment for a single student.
type Exception interface {
	// Check validates the exception against the table without writing.
	Check(t *gradebook.Table) error
	// ApplyTo writes the exception to row i.
	ApplyTo(t *gradebook.Table, i int)
}

// ForgiveLate clears the lateness of one assignment.
type ForgiveLate struct {
	Assignment string
	Reason     string
}

// Check implements Exception.
func (e ForgiveLate) Check(t *gradebook.Table) error {
	_, err := t.Resolve(e.Assignment)
	return err
}

// ApplyTo implements Exception.
func (e ForgiveLate) ApplyTo(t *gradebook.Table, i int) {
	j, _ := t.AssignmentIndex(e.Assignment)
	c := t.Cell(i, j)
	c.Lateness = 0
	t.SetCell(i, j, c)
	t.AddNote(i, gradebook.ChannelLates, "lateness on %s forgiven%s", e.Assignment, reason(e.Reason))
}

// Drop drops one assignment.
type Drop struct {
	Assignment string
	Reason     string
}

// Check implements Exception.
func (e Drop) Check(t *gradebook.Table) error {
	_, err := t.Resolve(e.Assignment)
	return err
}

// ApplyTo implements Exception.
func (e Drop) ApplyTo(t *gradebook.Table, i int) {
	j, _ := t.AssignmentIndex(e.Assignment)
	c := t.Cell(i, j)
	c.Dropped = true
	t.SetCell(i, j, c)
	t.AddNote(i, gradebook.ChannelDrops, "dropped %s by exception%s", e.Assignment, reason(e.Reason))
}

// Replace overwrites the points earned on one assignment, either with an
// amount (percentages are of points possible) or with the score the student
// earned on another assignment.
type Replace struct {
	Assignment string
	With       gradebook.Amount
	// From, when set, takes the score of that assignment instead of With.
	From   string
	Reason string
}

// Check implements Exception.
func (e Replace) Check(t *gradebook.Table) error {
	if _, err := t.Resolve(e.Assignment); err != nil {
		return err
	}
	if e.From != "" {
		_, err := t.Resolve(e.From)
		return err
	}
	if math.IsNaN(e.With.Value) || math.IsInf(e.With.Value, 0) {
		return fmt.Errorf("%w: replacement for %q is not finite", gradebook.ErrConfiguration, e.Assignment)
	}
	return nil
}

// ApplyTo implements Exception.
func (e Replace) ApplyTo(t *gradebook.Table, i int) {
	j, _ := t.AssignmentIndex(e.Assignment)
	c := t.Cell(i, j)
	possible := t.Assignment(j).PointsPossible
	if e.From != "" {
		src, _ := t.AssignmentIndex(e.From)
		s := t.Score(i, src)
		if !s.Defined {
			c.Earned, c.Graded = 0, false
		} else {
			c.Earned, c.Graded = s.Value*possible, true
		}
		t.SetCell(i, j, c)
		t.AddNote(i, gradebook.ChannelMisc, "%s replaced with score on %s (%s)%s", e.Assignment, e.From, s, reason(e.Reason))
		return
	}
	c.Earned, c.Graded = e.With.Of(possible), true
	t.SetCell(i, j, c)
	t.AddNote(i, gradebook.ChannelMisc, "%s replaced with %s%s", e.Assignment, e.With, reason(e.Reason))
}

// Exceptions applies one student's exceptions in order.
type Exceptions struct {
	Student string
	List    []Exception
}

// Name implements Policy.
func (Exceptions) Name() string { return "exceptions" }

// Apply implements Policy.
func (p Exceptions) Apply(_ context.Context, t *gradebook.Table) error {
	if p.Student == "" {
		return fmt.Errorf("%w: exceptions need a student", gradebook.ErrConfiguration)
	}
	row, err := studentRow(t, p.Student)
	if err != nil {
		return err
	}
	for _, e := range p.List {
		if err := e.Check(t); err != nil {
			return err
		}
	}
	for _, e := range p.List {
		e.ApplyTo(t, row)
	}
	return nil
}
