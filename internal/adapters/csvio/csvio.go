// Package csvio reads and writes score tables and grading scales as CSV.
//
// The long format has one row per student and assignment:
//
//	student_id,student_name,assignment,points_possible,points_earned,lateness,dropped
//
// An empty points_earned is a missing entry. Lateness is H:MM:SS or a Go
// duration; empty means on time. Column order is free and only
// student_id, assignment and points_possible are required.
package csvio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// Format names a supported table layout.
type Format string

const (
	// FormatLong is one row per (student, assignment).
	FormatLong Format = "long"
	// FormatGradescope is a Gradescope "Download Grades" export.
	FormatGradescope Format = "gradescope"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatLong:
		return FormatLong, nil
	case FormatGradescope:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Read reads a table in the given format.
func Read(ctx context.Context, f Format, r io.Reader, opts ...Option) (*gradebook.Table, error) {
	switch f {
	case FormatLong, "":
		return ReadLong(ctx, r, opts...)
	case FormatGradescope:
		return ReadGradescope(ctx, r, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// ReadFile reads a table from path.
func ReadFile(ctx context.Context, f Format, path string, opts ...Option) (*gradebook.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	if err := checkText(file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t, err := Read(ctx, f, file, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteFile writes t to path in the long format.
func WriteFile(ctx context.Context, path string, t *gradebook.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteLong(ctx, file, t); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ParseLateness accepts H:MM:SS, a Go duration or an empty string.
func ParseLateness(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.Contains(s, ":") {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("%w: lateness %q", ErrMalformed, s)
		}
		return d, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: lateness %q is not H:MM:SS", ErrMalformed, s)
	}
	const maxSeconds = int64(math.MaxInt64 / int64(time.Second))
	var total int64
	for k, unit := range []int64{3600, 60, 1} {
		n, err := strconv.ParseInt(parts[k], 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: lateness %q is not H:MM:SS", ErrMalformed, s)
		}
		if n > (maxSeconds-total)/unit {
			return 0, fmt.Errorf("%w: lateness %q is out of range", ErrMalformed, s)
		}
		total += n * unit
	}
	return time.Duration(total) * time.Second, nil
}

// FormatLateness renders d as H:MM:SS, truncated to the second.
func FormatLateness(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

func parseNumber(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrMalformed, field, s)
	}
	return v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
