package scale

// Default robust search configuration constants.
const (
	defaultTolerance = 0.02
	defaultMinGap    = 0.01
)

// Placement decides where inside the chosen gap a threshold lands.
type Placement int

const (
	// Midpoint puts the threshold halfway across the gap.
	Midpoint Placement = iota
	// UpperEdge puts the threshold on the gap's upper edge, so the student
	// just above the gap keeps the higher letter.
	UpperEdge
)

// ParsePlacement maps a config string to a Placement. Unknown values fall
// back to Midpoint and report ok=false.
func ParsePlacement(s string) (Placement, bool) {
	switch s {
	case "", "midpoint":
		return Midpoint, true
	case "upper_edge", "round_up":
		return UpperEdge, true
	default:
		return Midpoint, false
	}
}

// RobustOption applies a configuration option to FindRobust.
type RobustOption func(*robustConfig)

type robustConfig struct {
	tolerance float64
	minGap    float64
	placement Placement
}

// WithTolerance sets how far a threshold may move in either direction.
func WithTolerance(t float64) RobustOption {
	return func(c *robustConfig) {
		if t > 0 {
			c.tolerance = t
		}
	}
}

// WithMinGap sets the minimum distance kept between neighbouring thresholds.
func WithMinGap(g float64) RobustOption {
	return func(c *robustConfig) {
		if g > 0 {
			c.minGap = g
		}
	}
}

// WithPlacement sets where in the chosen gap the threshold lands.
func WithPlacement(p Placement) RobustOption {
	return func(c *robustConfig) {
		c.placement = p
	}
}
