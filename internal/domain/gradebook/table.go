// Package gradebook holds the score table: earned points, lateness and drop
// flags per student and assignment, plus the grading configuration attached
// to a table revision.
package gradebook

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/gradebook/internal/domain/dedupe"
	"github.com/okian/gradebook/internal/domain/scale"
)

// Assignment is a gradable item. Names are unique within a table.
type Assignment struct {
	Name           string  `json:"name"`
	PointsPossible float64 `json:"points_possible"`
}

// Cell is the state of one (student, assignment) entry. Missing, dropped
// and zero are distinct: a missing cell has Graded false, a zero has Graded
// true and Earned 0, and Dropped may be set on either.
type Cell struct {
	Earned   float64
	Graded   bool
	Lateness time.Duration
	Dropped  bool
}

// Missing reports whether no points were recorded.
func (c Cell) Missing() bool { return !c.Graded }

// View is read-only access to a table revision.
type View interface {
	Students() Students
	Assignments() []Assignment
	StudentIndex(id string) (int, bool)
	AssignmentIndex(name string) (int, bool)
	Cell(student, assignment int) Cell
	Score(student, assignment int) Score
	Late(student, assignment int) bool
	Notes(student int) []Note
}

// Table is the score table. A Table is not safe for concurrent mutation;
// policies work on a Clone and swap it in once they succeed.
type Table struct {
	students    Students
	studentIdx  map[string]int
	assignments []Assignment
	assignIdx   map[string]int
	cells       [][]Cell
	notes       [][]Note

	groups    []Group
	scale     scale.Scale
	overrides map[string]string

	opts options
}

var _ View = (*Table)(nil)

// NewTable creates a table with every cell missing. Student ids must be
// non-empty and unique ignoring case; assignment names must be unique and
// carry positive points possible.
func NewTable(students []Student, assignments []Assignment, opts ...Option) (*Table, error) {
	t := &Table{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&t.opts)
	}

	ids := dedupe.NewRegistry(dedupe.WithCaseFolding(true), dedupe.WithCapacity(len(students)))
	for _, s := range students {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("%w: empty student id", ErrInvalidData)
		}
		if ids.SeenAndRecord(s.ID) {
			return nil, fmt.Errorf("%w: duplicate student id %q", ErrInvalidData, s.ID)
		}
	}
	names := dedupe.NewRegistry(dedupe.WithCapacity(len(assignments)))
	for _, a := range assignments {
		if err := validateAssignment(a); err != nil {
			return nil, err
		}
		if names.SeenAndRecord(a.Name) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAssignment, a.Name)
		}
	}

	t.students = append(Students(nil), students...)
	t.assignments = append([]Assignment(nil), assignments...)
	t.cells = make([][]Cell, len(students))
	t.notes = make([][]Note, len(students))
	for i := range t.cells {
		t.cells[i] = make([]Cell, len(assignments))
	}
	t.reindex()
	return t, nil
}

func validateAssignment(a Assignment) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: empty assignment name", ErrInvalidData)
	}
	if !(a.PointsPossible > 0) || math.IsInf(a.PointsPossible, 0) {
		return fmt.Errorf("%w: assignment %q has non-positive points possible", ErrInvalidData, a.Name)
	}
	return nil
}

func (t *Table) reindex() {
	t.studentIdx = make(map[string]int, len(t.students))
	for i, s := range t.students {
		t.studentIdx[s.Key()] = i
	}
	t.assignIdx = make(map[string]int, len(t.assignments))
	for j, a := range t.assignments {
		t.assignIdx[a.Name] = j
	}
}

// Clone returns a deep copy sharing no mutable state with t.
func (t *Table) Clone() *Table {
	c := &Table{
		students:    append(Students(nil), t.students...),
		assignments: append([]Assignment(nil), t.assignments...),
		cells:       make([][]Cell, len(t.cells)),
		notes:       make([][]Note, len(t.notes)),
		groups:      cloneGroups(t.groups),
		scale:       t.scale.Clone(),
		opts:        t.opts,
	}
	for i := range t.cells {
		c.cells[i] = append([]Cell(nil), t.cells[i]...)
	}
	for i := range t.notes {
		c.notes[i] = append([]Note(nil), t.notes[i]...)
	}
	if t.overrides != nil {
		c.overrides = make(map[string]string, len(t.overrides))
		for k, v := range t.overrides {
			c.overrides[k] = v
		}
	}
	c.reindex()
	return c
}

// LatenessFudge is the grace period under which lateness counts as on time.
func (t *Table) LatenessFudge() time.Duration { return t.opts.latenessFudge }

// WeightTolerance is the allowed deviation of regular group weights from one.
func (t *Table) WeightTolerance() float64 { return t.opts.weightTolerance }

// MissingAsZero reports whether missing entries are scored as zero.
func (t *Table) MissingAsZero() bool { return t.opts.missingAsZero }

// NumStudents returns the number of rows.
func (t *Table) NumStudents() int { return len(t.students) }

// NumAssignments returns the number of columns.
func (t *Table) NumAssignments() int { return len(t.assignments) }

// Students returns a copy of the roster in row order.
func (t *Table) Students() Students { return append(Students(nil), t.students...) }

// Student returns the student at row i.
func (t *Table) Student(i int) Student { return t.students[i] }

// Assignments returns a copy of the columns in declared order.
func (t *Table) Assignments() []Assignment { return append([]Assignment(nil), t.assignments...) }

// Assignment returns the assignment at column j.
func (t *Table) Assignment(j int) Assignment { return t.assignments[j] }

// AssignmentNames returns the column names in declared order.
func (t *Table) AssignmentNames() []string {
	out := make([]string, len(t.assignments))
	for j, a := range t.assignments {
		out[j] = a.Name
	}
	return out
}

// PointsPossible returns the points possible per column.
func (t *Table) PointsPossible() []float64 {
	out := make([]float64, len(t.assignments))
	for j, a := range t.assignments {
		out[j] = a.PointsPossible
	}
	return out
}

// StudentIndex returns the row of the student with the given id.
func (t *Table) StudentIndex(id string) (int, bool) {
	i, ok := t.studentIdx[strings.ToLower(id)]
	return i, ok
}

// AssignmentIndex returns the column of the named assignment.
func (t *Table) AssignmentIndex(name string) (int, bool) {
	j, ok := t.assignIdx[name]
	return j, ok
}

// HasAssignment reports whether the table holds the named assignment.
func (t *Table) HasAssignment(name string) bool {
	_, ok := t.assignIdx[name]
	return ok
}

// Resolve maps assignment names to column indexes, failing with ErrScope on
// the first unknown name.
func (t *Table) Resolve(names ...string) ([]int, error) {
	out := make([]int, len(names))
	for k, name := range names {
		j, ok := t.assignIdx[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown assignment %q", ErrScope, name)
		}
		out[k] = j
	}
	return out, nil
}

// Cell returns the entry at (student, assignment).
func (t *Table) Cell(student, assignment int) Cell { return t.cells[student][assignment] }

// SetCell replaces the entry at (student, assignment).
func (t *Table) SetCell(student, assignment int, c Cell) { t.cells[student][assignment] = c }

// Row returns a copy of one student's cells in column order.
func (t *Table) Row(student int) []Cell { return append([]Cell(nil), t.cells[student]...) }

// Score returns earned over possible, or undefined when the cell is missing.
// Drop flags are ignored here; aggregation excludes dropped cells.
func (t *Table) Score(student, assignment int) Score {
	c := t.cells[student][assignment]
	if !c.Graded {
		if t.opts.missingAsZero {
			return ScoreOf(0)
		}
		return Undefined()
	}
	return ScoreOf(c.Earned / t.assignments[assignment].PointsPossible)
}

// Late reports whether the entry is later than the lateness fudge.
func (t *Table) Late(student, assignment int) bool {
	return t.cells[student][assignment].Lateness > t.opts.latenessFudge
}

func (t *Table) locate(studentID, assignment string) (int, int, error) {
	i, ok := t.StudentIndex(studentID)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownStudent, studentID)
	}
	j, ok := t.assignIdx[assignment]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown assignment %q", ErrScope, assignment)
	}
	return i, j, nil
}

// Get returns the entry for a student id and assignment name.
func (t *Table) Get(studentID, assignment string) (Cell, error) {
	i, j, err := t.locate(studentID, assignment)
	if err != nil {
		return Cell{}, err
	}
	return t.cells[i][j], nil
}

// SetEarned records points earned.
func (t *Table) SetEarned(studentID, assignment string, points float64) error {
	if math.IsNaN(points) || math.IsInf(points, 0) {
		return fmt.Errorf("%w: points earned must be finite", ErrInvalidData)
	}
	i, j, err := t.locate(studentID, assignment)
	if err != nil {
		return err
	}
	t.cells[i][j].Earned = points
	t.cells[i][j].Graded = true
	return nil
}

// ClearEarned marks the entry missing. Lateness and drop flags are kept.
func (t *Table) ClearEarned(studentID, assignment string) error {
	i, j, err := t.locate(studentID, assignment)
	if err != nil {
		return err
	}
	t.cells[i][j].Earned = 0
	t.cells[i][j].Graded = false
	return nil
}

// SetLateness records how late the submission was.
func (t *Table) SetLateness(studentID, assignment string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative lateness", ErrInvalidData)
	}
	i, j, err := t.locate(studentID, assignment)
	if err != nil {
		return err
	}
	t.cells[i][j].Lateness = d
	return nil
}

// SetDropped sets or clears the drop flag.
func (t *Table) SetDropped(studentID, assignment string, dropped bool) error {
	i, j, err := t.locate(studentID, assignment)
	if err != nil {
		return err
	}
	t.cells[i][j].Dropped = dropped
	return nil
}

// AddNote appends a note to the student at row i.
func (t *Table) AddNote(student int, ch Channel, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	t.notes[student] = append(t.notes[student], Note{Channel: ch, Message: msg})
}

// AddNoteFor appends a note to the student with the given id.
func (t *Table) AddNoteFor(studentID string, ch Channel, message string) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: unknown note channel %q", ErrConfiguration, ch)
	}
	i, ok := t.StudentIndex(studentID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStudent, studentID)
	}
	t.AddNote(i, ch, "%s", message)
	return nil
}

// Notes returns a copy of the notes for the student at row i.
func (t *Table) Notes(student int) []Note { return append([]Note(nil), t.notes[student]...) }

// NotesFor returns the notes for a student id.
func (t *Table) NotesFor(studentID string) ([]Note, error) {
	i, ok := t.StudentIndex(studentID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStudent, studentID)
	}
	return t.Notes(i), nil
}

// Scale returns the scale attached to this revision, or the default scale.
func (t *Table) Scale() scale.Scale {
	if len(t.scale) == 0 {
		return scale.Default()
	}
	return t.scale.Clone()
}

// SetScale validates and attaches a scale.
func (t *Table) SetScale(s scale.Scale) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	t.scale = s.Clone()
	return nil
}

// SetLetterOverride pins a letter for one student, bypassing the scale. An
// empty letter removes the override.
func (t *Table) SetLetterOverride(studentID, letter string) error {
	i, ok := t.StudentIndex(studentID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStudent, studentID)
	}
	key := t.students[i].Key()
	letter = strings.TrimSpace(letter)
	if letter == "" {
		delete(t.overrides, key)
		return nil
	}
	if t.overrides == nil {
		t.overrides = make(map[string]string)
	}
	t.overrides[key] = letter
	return nil
}

// LetterOverrides returns the overrides keyed by student id.
func (t *Table) LetterOverrides() map[string]string {
	out := make(map[string]string, len(t.overrides))
	for _, s := range t.students {
		if l, ok := t.overrides[s.Key()]; ok {
			out[s.ID] = l
		}
	}
	return out
}
