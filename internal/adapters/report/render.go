package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// Format names an output layout.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Write renders the report in the given format.
func Write(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatText, "":
		return WriteText(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes the class summary followed by one line per student.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	c := r.Class

	fmt.Fprintf(tw, "Students:\t%d (%d incomplete)\n", c.Students, c.Incomplete)
	if c.Overall.N > 0 {
		fmt.Fprintf(tw, "Overall:\tmean %s\tmedian %s\tmin %s\tmax %s\n",
			pct(c.Overall.Mean), pct(c.Overall.Median), pct(c.Overall.Min), pct(c.Overall.Max))
	}
	if c.AverageGPA != nil {
		fmt.Fprintf(tw, "Average GPA:\t%0.2f\n", *c.AverageGPA)
	}
	if len(c.Distribution) > 0 {
		fmt.Fprintln(tw, "Distribution:")
		for _, d := range c.Distribution {
			fmt.Fprintf(tw, "  %s\t%d\n", d.Letter, d.N)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOVERALL\tLETTER\tRANK\tPERCENTILE")
	for _, s := range r.Students {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%0.2f\n", s.ID, s.Name, s.Percent, dash(s.Letter), s.Rank, s.Percentile)
	}
	return tw.Flush()
}

// WriteStudent writes one student's summary with scores and notes.
func WriteStudent(w io.Writer, s StudentSummary, of int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if s.Name != "" {
		fmt.Fprintf(tw, "Student:\t%s (%s)\n", s.Name, s.ID)
	} else {
		fmt.Fprintf(tw, "Student:\t%s\n", s.ID)
	}
	fmt.Fprintf(tw, "Overall:\t%s\n", s.Percent)
	fmt.Fprintf(tw, "Letter:\t%s\n", dash(s.Letter))
	fmt.Fprintf(tw, "Rank:\t%d of %d\n", s.Rank, of)
	fmt.Fprintf(tw, "Percentile:\t%0.2f\n", s.Percentile)

	if len(s.Groups) > 0 {
		fmt.Fprintln(tw, "Groups:")
		for _, g := range s.Groups {
			fmt.Fprintf(tw, "  %s\t%s\n", g.Name, g.Percent)
		}
	}
	fmt.Fprintln(tw, "Assignments:")
	for _, a := range s.Scores {
		var flags []string
		if a.Dropped {
			flags = append(flags, "dropped")
		}
		if a.Late {
			flags = append(flags, "late")
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", a.Name, a.Percent, strings.Join(flags, " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Notes) == 0 {
		return nil
	}
	fmt.Fprintln(w, "Notes:")
	for _, ch := range gradebook.Channels() {
		msgs := s.Notes[ch]
		if len(msgs) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:\n", ch)
		for _, m := range msgs {
			fmt.Fprintf(w, "    - %s\n", m)
		}
	}
	return nil
}

func pct(v float64) string { return gradebook.ScoreOf(v).Percent() }

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
