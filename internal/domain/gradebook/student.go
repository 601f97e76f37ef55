package gradebook

import (
	"fmt"
	"strings"
)

// Student identifies a student by an opaque id. Equality uses the id only,
// compared case-insensitively; the name is for display.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Key returns the normalized id used for lookups.
func (s Student) Key() string { return strings.ToLower(s.ID) }

// Is reports whether both values denote the same student.
func (s Student) Is(other Student) bool { return strings.EqualFold(s.ID, other.ID) }

// String prefers the display name and falls back to the id.
func (s Student) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Students is an ordered list of students.
type Students []Student

// Find returns the single student whose id equals query or whose name
// contains it, ignoring case.
func (ss Students) Find(query string) (Student, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Student{}, fmt.Errorf("%w: empty query", ErrUnknownStudent)
	}
	for _, s := range ss {
		if s.Key() == q {
			return s, nil
		}
	}
	var matches []Student
	for _, s := range ss {
		if strings.Contains(strings.ToLower(s.Name), q) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return Student{}, fmt.Errorf("%w: no student matches %q", ErrUnknownStudent, query)
	case 1:
		return matches[0], nil
	default:
		return Student{}, fmt.Errorf("%w: %d students match %q", ErrUnknownStudent, len(matches), query)
	}
}
