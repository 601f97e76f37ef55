package gradebook

import (
	"math"
	"time"
)

// Default table configuration constants.
const (
	defaultLatenessFudge   = 5 * time.Minute
	defaultWeightTolerance = 1e-6
)

type options struct {
	latenessFudge   time.Duration
	weightTolerance float64
	missingAsZero   bool
}

func defaultOptions() options {
	return options{
		latenessFudge:   defaultLatenessFudge,
		weightTolerance: defaultWeightTolerance,
	}
}

// Option applies a configuration option to a Table.
type Option func(*options)

// WithLatenessFudge sets how late a submission may be and still count as on
// time. Negative values are ignored.
func WithLatenessFudge(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.latenessFudge = d
		}
	}
}

// WithWeightTolerance sets how far the regular group weights may sum away
// from one.
func WithWeightTolerance(eps float64) Option {
	return func(o *options) {
		if eps > 0 && !math.IsInf(eps, 0) {
			o.weightTolerance = eps
		}
	}
}

// WithMissingAsZero scores missing entries as zero instead of leaving them
// out of both numerator and denominator.
func WithMissingAsZero(on bool) Option {
	return func(o *options) {
		o.missingAsZero = on
	}
}
