package scale

import (
	"math"
	"sort"
)

// gap is an empty stretch of the score line, already clipped to a window.
type gap struct {
	lo, hi float64
}

func (g gap) width() float64 { return g.hi - g.lo }

func (g gap) mid() float64 { return (g.lo + g.hi) / 2 }

// FindRobust moves each threshold of base into the widest empty interval of
// the score distribution found within ±tolerance of it, so that as few
// students as possible sit just under a cutoff.
//
// Thresholds are processed from the highest down. Each search window is
// truncated so it stays at least minGap below the already adjusted
// threshold above and minGap above the original threshold below; the
// result is therefore still strictly decreasing. A threshold whose window
// holds no score is left unchanged, and the floor letter is never moved.
// The function is pure: equal inputs always give equal outputs.
func FindRobust(scores []float64, base Scale, opts ...RobustOption) (Scale, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	cfg := &robustConfig{
		tolerance: defaultTolerance,
		minGap:    defaultMinGap,
		placement: Midpoint,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sorted := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			sorted = append(sorted, s)
		}
	}
	sort.Float64s(sorted)

	out := base.Clone()
	upper := math.Inf(1)
	for i := 0; i < len(base)-1; i++ {
		th := base[i].Cutoff
		lo := th - cfg.tolerance
		hi := math.Min(th+cfg.tolerance, upper-cfg.minGap)
		lo = math.Max(lo, base[i+1].Cutoff+cfg.minGap)

		if lo <= hi {
			if g, ok := widestGap(sorted, lo, hi, th); ok {
				switch cfg.placement {
				case UpperEdge:
					out[i].Cutoff = g.hi
				default:
					out[i].Cutoff = g.mid()
				}
			}
		}
		upper = out[i].Cutoff
	}
	return out, nil
}

// widestGap returns the widest empty interval between consecutive scores,
// clipped to [lo, hi]. Ties go to the gap whose midpoint is nearest to
// target, then to the higher gap. ok is false when no score lies in the
// window.
func widestGap(sorted []float64, lo, hi, target float64) (gap, bool) {
	first := sort.SearchFloat64s(sorted, lo)
	last := first
	for last < len(sorted) && sorted[last] <= hi {
		last++
	}
	if first == last {
		return gap{}, false
	}

	// boundaries: nearest score below the window, scores inside, nearest above
	bounds := make([]float64, 0, last-first+2)
	if first > 0 {
		bounds = append(bounds, sorted[first-1])
	} else {
		bounds = append(bounds, math.Inf(-1))
	}
	bounds = append(bounds, sorted[first:last]...)
	if last < len(sorted) {
		bounds = append(bounds, sorted[last])
	} else {
		bounds = append(bounds, math.Inf(1))
	}

	var best gap
	found := false
	for k := 0; k+1 < len(bounds); k++ {
		a, b := bounds[k], bounds[k+1]
		if b <= a {
			continue
		}
		g := gap{lo: math.Max(a, lo), hi: math.Min(b, hi)}
		if g.width() <= 0 {
			continue
		}
		if !found || better(g, best, target) {
			best = g
			found = true
		}
	}
	return best, found
}

func better(candidate, incumbent gap, target float64) bool {
	cw, iw := candidate.width(), incumbent.width()
	if cw != iw {
		return cw > iw
	}
	cd := math.Abs(candidate.mid() - target)
	id := math.Abs(incumbent.mid() - target)
	if cd != id {
		return cd < id
	}
	return candidate.lo > incumbent.lo
}
