package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// Long format column names.
const (
	colStudentID      = "student_id"
	colStudentName    = "student_name"
	colAssignment     = "assignment"
	colPointsPossible = "points_possible"
	colPointsEarned   = "points_earned"
	colLateness       = "lateness"
	colDropped        = "dropped"
)

var longHeader = []string{colStudentID, colStudentName, colAssignment, colPointsPossible, colPointsEarned, colLateness, colDropped}

type longRow struct {
	student    int
	assignment int
	cell       gradebook.Cell
}

// ReadLong reads a long-format table. Students and assignments keep the
// order of their first appearance. Every assignment must carry the same
// points possible on each row, and a (student, assignment) pair may appear
// only once. Pairs without a row are missing.
func ReadLong(ctx context.Context, r io.Reader, opts ...Option) (*gradebook.Table, error) {
	o := newOptions(FormatLong, opts)
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	cols := make(map[string]int, len(header))
	for k, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = k
	}
	for _, required := range []string{colStudentID, colAssignment, colPointsPossible} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, required)
		}
	}
	field := func(rec []string, name string) string {
		k, ok := cols[name]
		if !ok || k >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[k])
	}

	var (
		students    gradebook.Students
		studentIdx  = map[string]int{}
		assignments []gradebook.Assignment
		assignIdx   = map[string]int{}
		rows        []longRow
		seen        = map[[2]int]bool{}
	)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		id := field(rec, colStudentID)
		if o.standardizeIDs {
			id = strings.ToUpper(id)
		}
		if id == "" {
			return nil, fmt.Errorf("%w: line %d: empty student id", ErrMalformed, line)
		}
		name := cleanName(field(rec, colStudentName))
		i, ok := studentIdx[strings.ToLower(id)]
		switch {
		case !ok:
			i = len(students)
			studentIdx[strings.ToLower(id)] = i
			students = append(students, gradebook.Student{ID: id, Name: name})
		case students[i].Name == "":
			students[i].Name = name
		case name != "" && name != students[i].Name:
			return nil, fmt.Errorf("%w: line %d: student %s is named both %q and %q", ErrMalformed, line, id, students[i].Name, name)
		}

		aname := field(rec, colAssignment)
		if o.standardizeAssignments {
			aname = strings.ToLower(aname)
		}
		possible, err := parseNumber(colPointsPossible, field(rec, colPointsPossible))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		j, ok := assignIdx[aname]
		if !ok {
			j = len(assignments)
			assignIdx[aname] = j
			assignments = append(assignments, gradebook.Assignment{Name: aname, PointsPossible: possible})
		} else if assignments[j].PointsPossible != possible {
			return nil, fmt.Errorf("%w: line %d: %s has points possible %g and %g", ErrMalformed, line, aname, assignments[j].PointsPossible, possible)
		}

		key := [2]int{i, j}
		if seen[key] {
			return nil, fmt.Errorf("%w: line %d: second row for %s on %s", ErrMalformed, line, id, aname)
		}
		seen[key] = true

		row := longRow{student: i, assignment: j}
		if s := field(rec, colPointsEarned); s != "" {
			earned, err := parseNumber(colPointsEarned, s)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			row.cell.Earned, row.cell.Graded = earned, true
		}
		if row.cell.Lateness, err = ParseLateness(field(rec, colLateness)); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if s := field(rec, colDropped); s != "" {
			if row.cell.Dropped, err = strconv.ParseBool(s); err != nil {
				return nil, fmt.Errorf("%w: line %d: dropped %q", ErrMalformed, line, s)
			}
		}
		rows = append(rows, row)
	}

	t, err := gradebook.NewTable(students, assignments, o.tableOpts...)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		t.SetCell(row.student, row.assignment, row.cell)
	}

	metrics.RecordRowsRead(string(FormatLong), len(rows))
	metrics.UpdateTableSize(t.NumStudents(), t.NumAssignments())
	o.logger.Debug(ctx, "read table",
		logger.String("format", string(FormatLong)),
		logger.Int("rows", len(rows)),
		logger.Int("students", t.NumStudents()),
		logger.Int("assignments", t.NumAssignments()),
	)
	return t, nil
}

// WriteLong writes every cell of t, one row per student and assignment, in
// table order. Missing entries have an empty points_earned.
func WriteLong(ctx context.Context, w io.Writer, t *gradebook.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(longHeader); err != nil {
		return err
	}
	rows := 0
	for i := 0; i < t.NumStudents(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := t.Student(i)
		for j := 0; j < t.NumAssignments(); j++ {
			a, c := t.Assignment(j), t.Cell(i, j)
			earned, late, dropped := "", "", ""
			if c.Graded {
				earned = formatNumber(c.Earned)
			}
			if c.Lateness > 0 {
				late = FormatLateness(c.Lateness)
			}
			if c.Dropped {
				dropped = "true"
			}
			if err := cw.Write([]string{s.ID, s.Name, a.Name, formatNumber(a.PointsPossible), earned, late, dropped}); err != nil {
				return err
			}
			rows++
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	metrics.RecordRowsWritten(string(FormatLong), rows)
	return nil
}
