// Package convergence measures agreement between calculated and
// experimental profiles and decides when a reconstruction stops.
package convergence

import (
	"math"

	"saxsdensity/pkg/constraint"
	"saxsdensity/pkg/fourier3d"
)

// Reason explains why a run terminated.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonMaxIterations Reason = "max_iterations"
	ReasonPlateau       Reason = "plateau"
	ReasonThreshold     Reason = "threshold"
	ReasonCancelled     Reason = "cancelled"
	ReasonDiverged      Reason = "diverged"
)

// Residual returns the discrepancy between the scaled calculated profile and
// the target over usable shells.
//
// With chiWeighted set it is the reduced χ², the mean of ((s·Icalc − Iexp)/σ)².
// Shells with σ = 0 fall back to σ = max|Iexp| so they still contribute.
// Without weighting it is Σ(s·Icalc − Iexp)² / Σ Iexp².
// A target with no usable shells yields +Inf.
func Residual(calc fourier3d.Shells, target *constraint.Target, scale float64, chiWeighted bool) float64 {
	var fallback float64
	if chiWeighted {
		for b := range target.Covered {
			if target.Usable(b, calc) {
				fallback = math.Max(fallback, math.Abs(target.I[b]))
			}
		}
		if fallback == 0 {
			fallback = 1
		}
	}

	var sum, norm float64
	n := 0
	for b := range target.Covered {
		if !target.Usable(b, calc) {
			continue
		}
		d := scale*calc.I[b] - target.I[b]
		if chiWeighted {
			sigma := target.Sigma[b]
			if sigma <= 0 {
				sigma = fallback
			}
			sum += (d / sigma) * (d / sigma)
		} else {
			sum += d * d
			norm += target.I[b] * target.I[b]
		}
		n++
	}
	if n == 0 {
		return math.Inf(1)
	}
	if chiWeighted {
		return sum / float64(n)
	}
	if norm == 0 {
		return math.Inf(1)
	}
	return sum / norm
}

// Criteria configures the stopping rule. Zero values disable the
// corresponding test, except MaxIterations which must be positive.
type Criteria struct {
	// MaxIterations is the hard iteration cap
	MaxIterations int
	// Threshold stops the run once a residual falls below it
	Threshold float64
	// PlateauWindow is the number of trailing iterations inspected
	PlateauWindow int
	// PlateauTolerance is the minimum relative improvement of the best
	// residual across the window
	PlateauTolerance float64
	// MinIterations suppresses plateau and threshold stops before this many iterations
	MinIterations int
}

// Tracker keeps the residual history of one run and applies the stopping rule.
type Tracker struct {
	criteria Criteria
	history  []float64
	// bestAt[i] is the minimum of history[:i+1]
	bestAt []float64
}

// NewTracker creates an empty tracker
func NewTracker(criteria Criteria) *Tracker {
	return &Tracker{criteria: criteria}
}

// History returns a copy of the recorded residuals
func (t *Tracker) History() []float64 {
	out := make([]float64, len(t.history))
	copy(out, t.history)
	return out
}

// Len returns the number of recorded residuals
func (t *Tracker) Len() int { return len(t.history) }

// Best returns the smallest residual recorded so far, or +Inf
func (t *Tracker) Best() float64 {
	if len(t.bestAt) == 0 {
		return math.Inf(1)
	}
	return t.bestAt[len(t.bestAt)-1]
}

// Last returns the most recent residual, or +Inf
func (t *Tracker) Last() float64 {
	if len(t.history) == 0 {
		return math.Inf(1)
	}
	return t.history[len(t.history)-1]
}

// Record appends a residual and reports whether the run should stop.
// Conditions are checked in order: iteration cap, absolute threshold, plateau.
func (t *Tracker) Record(r float64) (bool, Reason) {
	t.history = append(t.history, r)
	best := r
	if len(t.bestAt) > 0 && t.bestAt[len(t.bestAt)-1] < best {
		best = t.bestAt[len(t.bestAt)-1]
	}
	t.bestAt = append(t.bestAt, best)

	n := len(t.history)
	if t.criteria.MaxIterations > 0 && n >= t.criteria.MaxIterations {
		return true, ReasonMaxIterations
	}
	if n < t.criteria.MinIterations {
		return false, ReasonNone
	}
	if t.criteria.Threshold > 0 && r < t.criteria.Threshold {
		return true, ReasonThreshold
	}
	if t.Plateaued() {
		return true, ReasonPlateau
	}
	return false, ReasonNone
}

// Plateaued reports whether the best residual has improved by less than the
// plateau tolerance, relative to its value at the start of the trailing
// window. It is false while fewer than PlateauWindow+1 residuals exist.
func (t *Tracker) Plateaued() bool {
	w := t.criteria.PlateauWindow
	n := len(t.bestAt)
	if w <= 0 || n <= w {
		return false
	}
	before := t.bestAt[n-1-w]
	now := t.bestAt[n-1]
	if math.IsInf(before, 1) {
		return false
	}
	if before == 0 {
		return true
	}
	return (before-now)/math.Abs(before) < t.criteria.PlateauTolerance
}
