package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/okian/gradebook/internal/domain/scale"
)

// ReadScale reads a headerless letter,cutoff CSV. Row order is the scale's
// order and the result is validated.
func ReadScale(r io.Reader) (scale.Scale, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	s := make(scale.Scale, 0, len(records))
	for _, rec := range records {
		cutoff, err := parseNumber("cutoff", rec[1])
		if err != nil {
			return nil, err
		}
		s = append(s, scale.Threshold{Letter: strings.TrimSpace(rec[0]), Cutoff: cutoff})
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteScale writes s as headerless letter,cutoff rows.
func WriteScale(w io.Writer, s scale.Scale) error {
	cw := csv.NewWriter(w)
	for _, t := range s {
		if err := cw.Write([]string{t.Letter, formatNumber(t.Cutoff)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
