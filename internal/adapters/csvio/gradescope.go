package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// gradescopeStride is the number of columns per assignment: score, max
// points, submission time and lateness.
const gradescopeStride = 4

const gradescopeTotalLateness = "total lateness (h:m:s)"

// gradescopeHeaders are the roster columns that may precede the assignments.
var gradescopeHeaders = map[string]bool{
	"first name":   true,
	"last name":    true,
	"name":         true,
	"email":        true,
	"sid":          true,
	"section_name": true,
}

// ReadGradescope reads a Gradescope grade export. Student ids are upper-cased
// and assignment names lower-cased unless disabled with WithStandardizedIDs
// and WithStandardizedAssignments. Max points are taken from the first row.
func ReadGradescope(ctx context.Context, r io.Reader, opts ...Option) (*gradebook.Table, error) {
	o := newOptions(FormatGradescope, opts)
	records, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: no students", ErrMalformed)
	}

	header := records[0]
	keep := make([]int, 0, len(header))
	for k, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) != gradescopeTotalLateness {
			keep = append(keep, k)
		}
	}
	project := func(rec []string) []string {
		out := make([]string, len(keep))
		for n, k := range keep {
			if k < len(rec) {
				out[n] = strings.TrimSpace(rec[k])
			}
		}
		return out
	}
	header = project(header)

	col := func(name string) int {
		for k, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return k
			}
		}
		return -1
	}
	sid, name, first, last := col("sid"), col("name"), col("first name"), col("last name")
	if sid < 0 {
		return nil, fmt.Errorf("%w: missing SID column", ErrMalformed)
	}
	start := -1
	for k, h := range header {
		if !gradescopeHeaders[strings.ToLower(strings.TrimSpace(h))] {
			start = k
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: no assignment columns", ErrMalformed)
	}
	if (len(header)-start)%gradescopeStride != 0 {
		return nil, fmt.Errorf("%w: assignment columns do not come in groups of %d", ErrMalformed, gradescopeStride)
	}

	body := make([][]string, len(records)-1)
	for n, rec := range records[1:] {
		body[n] = project(rec)
	}

	var assignments []gradebook.Assignment
	for k := start; k < len(header); k += gradescopeStride {
		aname := header[k]
		if o.standardizeAssignments {
			aname = strings.ToLower(aname)
		}
		possible, err := parseNumber("max points", body[0][k+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", aname, err)
		}
		assignments = append(assignments, gradebook.Assignment{Name: aname, PointsPossible: possible})
	}

	students := make([]gradebook.Student, len(body))
	for n, rec := range body {
		id := rec[sid]
		if o.standardizeIDs {
			id = strings.ToUpper(id)
		}
		s := gradebook.Student{ID: id}
		switch {
		case name >= 0:
			s.Name = cleanName(rec[name])
		case first >= 0 && last >= 0:
			s.Name = cleanName(rec[first] + " " + rec[last])
		}
		students[n] = s
	}

	t, err := gradebook.NewTable(students, assignments, o.tableOpts...)
	if err != nil {
		return nil, err
	}
	for i, rec := range body {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := range assignments {
			k := start + j*gradescopeStride
			var c gradebook.Cell
			if s := rec[k]; s != "" {
				if c.Earned, err = parseNumber("score", s); err != nil {
					return nil, fmt.Errorf("line %d: %w", i+2, err)
				}
				c.Graded = true
			}
			if c.Lateness, err = ParseLateness(rec[k+3]); err != nil {
				return nil, fmt.Errorf("line %d: %w", i+2, err)
			}
			t.SetCell(i, j, c)
		}
	}

	metrics.RecordRowsRead(string(FormatGradescope), len(body))
	metrics.UpdateTableSize(t.NumStudents(), t.NumAssignments())
	o.logger.Debug(ctx, "read table",
		logger.String("format", string(FormatGradescope)),
		logger.Int("students", t.NumStudents()),
		logger.Int("assignments", t.NumAssignments()),
	)
	return t, nil
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	return records, nil
}
