// Package report derives read-only summaries from scored tables and renders
// them as text or JSON.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/scale"
	"github.com/okian/gradebook/internal/domain/scoring"
)

// gpaPoints maps the standard letters to grade points. Letters outside this
// table, such as an "I" override, do not count towards the average.
var gpaPoints = map[string]float64{
	"A+": 4.0, "A": 4.0, "A-": 3.7,
	"B+": 3.3, "B": 3.0, "B-": 2.7,
	"C+": 2.3, "C": 2.0, "C-": 1.7,
	"D": 1.0, "F": 0,
}

// AssignmentLine is one assignment in a student summary.
type AssignmentLine struct {
	Name    string          `json:"name"`
	Score   gradebook.Score `json:"-"`
	Percent string          `json:"score"`
	Dropped bool            `json:"dropped,omitempty"`
	Late    bool            `json:"late,omitempty"`
}

// GroupLine is one grading group in a student summary.
type GroupLine struct {
	Name    string          `json:"name"`
	Score   gradebook.Score `json:"-"`
	Percent string          `json:"score"`
}

// StudentSummary is everything reported about one student.
type StudentSummary struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Overall gradebook.Score `json:"-"`
	Percent string          `json:"overall"`
	Letter  string          `json:"letter,omitempty"`
	// Rank is 1 for the best overall score; students without a score rank last.
	Rank       int                            `json:"rank"`
	Percentile float64                        `json:"percentile"`
	Groups     []GroupLine                    `json:"groups"`
	Scores     []AssignmentLine               `json:"assignments"`
	Notes      map[gradebook.Channel][]string `json:"notes,omitempty"`
}

// Stats describes the defined overall scores of a class.
type Stats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ClassSummary describes the whole class.
type ClassSummary struct {
	Students int `json:"students"`
	// Incomplete counts students with an undefined group or overall score.
	Incomplete   int           `json:"incomplete"`
	Overall      Stats         `json:"overall"`
	Distribution []scale.Count `json:"distribution"`
	// AverageGPA is nil when no student holds a standard letter.
	AverageGPA *float64    `json:"average_gpa,omitempty"`
	Scale      scale.Scale `json:"scale"`
}

// Report is the class summary plus one summary per student in table order.
type Report struct {
	Class    ClassSummary     `json:"class"`
	Students []StudentSummary `json:"students"`
}

// Build assembles a report. letters holds one letter per student row, empty
// where none could be resolved; nil skips letters entirely.
func Build(t *gradebook.Table, res *scoring.Result, letters []string) (*Report, error) {
	if len(res.Students) != t.NumStudents() || len(res.Assignments) != t.NumAssignments() {
		return nil, fmt.Errorf("%w: %d students and %d assignments scored, table has %d and %d",
			ErrMismatch, len(res.Students), len(res.Assignments), t.NumStudents(), t.NumAssignments())
	}
	if letters != nil && len(letters) != t.NumStudents() {
		return nil, fmt.Errorf("%w: %d letters for %d students", ErrMismatch, len(letters), t.NumStudents())
	}

	ranks := Ranks(res.Overall)
	n := len(ranks)
	rep := &Report{Students: make([]StudentSummary, n)}
	for i := range rep.Students {
		st := t.Student(i)
		s := StudentSummary{
			ID:         st.ID,
			Name:       st.Name,
			Overall:    res.Overall[i],
			Percent:    res.Overall[i].Percent(),
			Rank:       ranks[i],
			Percentile: 1 - float64(ranks[i]-1)/float64(n),
		}
		if letters != nil {
			s.Letter = letters[i]
		}
		for g, name := range res.Groups {
			sc := res.GroupScores[i][g]
			s.Groups = append(s.Groups, GroupLine{Name: name, Score: sc, Percent: sc.Percent()})
		}
		for j, name := range res.Assignments {
			sc := res.AssignmentScores[i][j]
			s.Scores = append(s.Scores, AssignmentLine{
				Name:    name,
				Score:   sc,
				Percent: sc.Percent(),
				Dropped: t.Cell(i, j).Dropped,
				Late:    t.Late(i, j),
			})
		}
		for _, note := range t.Notes(i) {
			if s.Notes == nil {
				s.Notes = make(map[gradebook.Channel][]string)
			}
			s.Notes[note.Channel] = append(s.Notes[note.Channel], note.Message)
		}
		rep.Students[i] = s
	}

	rep.Class = ClassSummary{
		Students:   n,
		Incomplete: incompleteStudents(res.Err()),
		Overall:    Summarize(res.Overall),
		Scale:      t.Scale(),
	}
	if gpa, ok := AverageGPA(letters); ok {
		rep.Class.AverageGPA = &gpa
	}
	if letters != nil {
		rep.Class.Distribution = scale.Distribution(letters, rep.Class.Scale)
	}
	return rep, nil
}

// Student finds one student's summary by id or name fragment.
func (r *Report) Student(query string) (StudentSummary, error) {
	ss := make(gradebook.Students, len(r.Students))
	for i, s := range r.Students {
		ss[i] = gradebook.Student{ID: s.ID, Name: s.Name}
	}
	st, err := ss.Find(query)
	if err != nil {
		return StudentSummary{}, err
	}
	for _, s := range r.Students {
		if strings.EqualFold(s.ID, st.ID) {
			return s, nil
		}
	}
	return StudentSummary{}, fmt.Errorf("%w: %q", gradebook.ErrUnknownStudent, query)
}

// Ranks orders students by overall score, best first. Ties keep table order
// and students without a score rank after everyone else.
func Ranks(overall []gradebook.Score) []int {
	order := make([]int, len(overall))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := overall[order[a]], overall[order[b]]
		if x.Defined != y.Defined {
			return x.Defined
		}
		return x.Defined && x.Value > y.Value
	})
	ranks := make([]int, len(overall))
	for pos, i := range order {
		ranks[i] = pos + 1
	}
	return ranks
}

// Summarize computes statistics over the defined scores.
func Summarize(scores []gradebook.Score) Stats {
	var vals []float64
	for _, s := range scores {
		if s.Defined {
			vals = append(vals, s.Value)
		}
	}
	if len(vals) == 0 {
		return Stats{}
	}
	sort.Float64s(vals)
	st := Stats{N: len(vals), Min: vals[0], Max: vals[len(vals)-1]}
	for _, v := range vals {
		st.Mean += v
	}
	st.Mean /= float64(len(vals))
	if mid := len(vals) / 2; len(vals)%2 == 1 {
		st.Median = vals[mid]
	} else {
		st.Median = (vals[mid-1] + vals[mid]) / 2
	}
	return st
}

// AverageGPA averages the grade points of the standard letters. It reports
// false when none of the letters carries grade points.
func AverageGPA(letters []string) (float64, bool) {
	total, n := 0.0, 0
	for _, l := range letters {
		if p, ok := gpaPoints[l]; ok {
			total += p
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

// incompleteStudents counts the students with at least one undefined score.
func incompleteStudents(err error) int {
	seen := make(map[string]bool)
	for _, ie := range scoring.Incomplete(err) {
		seen[strings.ToLower(ie.StudentID)] = true
	}
	return len(seen)
}
