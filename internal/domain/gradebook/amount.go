package gradebook

import "strconv"

// AmountKind tags how an Amount is measured.
type AmountKind int

const (
	// PointsKind is an absolute number of points.
	PointsKind AmountKind = iota
	// PercentageKind is a percentage between 0 and 100 of some base.
	PercentageKind
)

// Amount is a point adjustment expressed either in points or as a percentage.
type Amount struct {
	Kind  AmountKind
	Value float64
}

// Points returns an absolute amount.
func Points(v float64) Amount { return Amount{Kind: PointsKind, Value: v} }

// Percentage returns a relative amount; 100 means the whole base.
func Percentage(v float64) Amount { return Amount{Kind: PercentageKind, Value: v} }

// Of converts the amount into points against base.
func (a Amount) Of(base float64) float64 {
	if a.Kind == PercentageKind {
		return a.Value / 100 * base
	}
	return a.Value
}

// IsZero reports whether applying the amount changes nothing.
func (a Amount) IsZero() bool { return a.Value == 0 }

func (a Amount) String() string {
	v := strconv.FormatFloat(a.Value, 'f', -1, 64)
	if a.Kind == PercentageKind {
		return v + "%"
	}
	return v + " points"
}
