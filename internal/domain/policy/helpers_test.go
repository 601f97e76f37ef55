package policy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

type cell struct {
	student, assignment string
	earned              float64
	late                time.Duration
}

func build(t *testing.T, students []string, assignments []gradebook.Assignment, cells []cell) *gradebook.Table {
	t.Helper()
	ss := make([]gradebook.Student, len(students))
	for i, id := range students {
		ss[i] = gradebook.Student{ID: id}
	}
	tbl, err := gradebook.NewTable(ss, assignments)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	for _, c := range cells {
		if err := tbl.SetEarned(c.student, c.assignment, c.earned); err != nil {
			t.Fatalf("set earned: %v", err)
		}
		if c.late > 0 {
			if err := tbl.SetLateness(c.student, c.assignment, c.late); err != nil {
				t.Fatalf("set lateness: %v", err)
			}
		}
	}
	return tbl
}

func earned(t *gradebook.Table, student, assignment string) float64 {
	c, err := t.Get(student, assignment)
	if err != nil {
		panic(err)
	}
	return c.Earned
}

func dropped(t *gradebook.Table, student string) []string {
	i, _ := t.StudentIndex(student)
	var out []string
	for j := 0; j < t.NumAssignments(); j++ {
		if t.Cell(i, j).Dropped {
			out = append(out, t.Assignment(j).Name)
		}
	}
	return out
}

// parallel runs every index on its own goroutine.
type parallel struct{}

func (parallel) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(ctx, i)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
