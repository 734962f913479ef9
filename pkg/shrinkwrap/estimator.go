// Package shrinkwrap re-estimates the support of a reconstruction from a
// smoothed copy of its density.
package shrinkwrap

import (
	"gonum.org/v1/gonum/floats"

	"saxsdensity/internal/models"
	"saxsdensity/pkg/grid"
)

// Outcome classifies a support update
type Outcome int

const (
	// OK means the new mask is usable
	OK Outcome = iota
	// Empty means no voxel survived the threshold
	Empty
	// Full means every voxel of the grid is inside the mask
	Full
)

func (o Outcome) String() string {
	switch o {
	case Empty:
		return "empty"
	case Full:
		return "full"
	default:
		return "ok"
	}
}

// Bad reports whether the outcome signals divergence
func (o Outcome) Bad() bool { return o != OK }

// ThresholdSchedule selects how the threshold fraction evolves.
type ThresholdSchedule string

const (
	// ThresholdFixed keeps the threshold fraction constant
	ThresholdFixed ThresholdSchedule = "fixed"
	// ThresholdAnnealed raises the fraction linearly from start to end
	ThresholdAnnealed ThresholdSchedule = "annealed"
)

// Params configures the estimator.
type Params struct {
	// SigmaStart is the initial smoothing width in voxels
	SigmaStart float64
	// SigmaEnd is the smallest smoothing width in voxels
	SigmaEnd float64
	// SigmaDecay multiplies sigma after every update
	SigmaDecay float64
	// ThresholdFraction is the fraction of the smoothed maximum a voxel must reach
	ThresholdFraction float64
	// ThresholdFractionEnd is the final fraction for the annealed schedule
	ThresholdFractionEnd float64
	// Schedule selects fixed or annealed thresholds
	Schedule ThresholdSchedule
	// AnnealUpdates is the number of updates over which the fraction is annealed
	AnnealUpdates int
}

// DefaultParams returns the default shrink-wrap schedule: sigma from 3 to
// 1.5 voxels decaying by 1% per update, fixed 20% threshold.
func DefaultParams() Params {
	return Params{
		SigmaStart:           3.0,
		SigmaEnd:             1.5,
		SigmaDecay:           0.99,
		ThresholdFraction:    0.2,
		ThresholdFractionEnd: 0.2,
		Schedule:             ThresholdFixed,
		AnnealUpdates:        50,
	}
}

// Estimator recomputes support masks. It tracks the smoothing width and
// threshold schedule across updates and so belongs to a single run.
type Estimator struct {
	params  Params
	n       int
	sigma   float64
	updates int
}

// NewEstimator creates an estimator for a grid of the given space
func NewEstimator(space *grid.Space, params Params) *Estimator {
	return &Estimator{params: params, n: space.N, sigma: params.SigmaStart}
}

// Sigma returns the smoothing width that the next update will use
func (e *Estimator) Sigma() float64 { return e.sigma }

// Updates returns the number of updates performed so far
func (e *Estimator) Updates() int { return e.updates }

// Fraction returns the threshold fraction that the next update will use
func (e *Estimator) Fraction() float64 {
	p := e.params
	if p.Schedule != ThresholdAnnealed || p.AnnealUpdates <= 0 {
		return p.ThresholdFraction
	}
	t := float64(e.updates) / float64(p.AnnealUpdates)
	if t > 1 {
		t = 1
	}
	f := p.ThresholdFraction + t*(p.ThresholdFractionEnd-p.ThresholdFraction)
	if f < p.ThresholdFraction {
		return p.ThresholdFraction
	}
	return f
}

// Update smooths density, thresholds it at the scheduled fraction of the
// smoothed maximum and intersects the result with bound and previous.
// Either of bound and previous may be nil. The schedule advances even when
// the outcome is bad.
func (e *Estimator) Update(density *models.DensityGrid, previous, bound *models.SupportMask) (*models.SupportMask, Outcome) {
	smoothed := Blur(density.Data, e.n, e.sigma)
	mask := Threshold(smoothed, e.n, e.Fraction())
	if bound != nil {
		mask.And(bound)
	}
	if previous != nil {
		mask.And(previous)
	}

	e.updates++
	e.sigma *= e.params.SigmaDecay
	if e.sigma < e.params.SigmaEnd {
		e.sigma = e.params.SigmaEnd
	}
	return mask, Classify(mask)
}

// Threshold marks every voxel whose value is at least fraction times the
// maximum of smoothed. Ties are included. A non-positive maximum yields an
// empty mask.
func Threshold(smoothed []float64, n int, fraction float64) *models.SupportMask {
	mask := models.NewSupportMask(n, false)
	peak := floats.Max(smoothed)
	if !(peak > 0) {
		return mask
	}
	cut := fraction * peak
	for i, v := range smoothed {
		mask.Data[i] = v >= cut
	}
	return mask
}

// Classify reports whether mask is empty, spans the whole grid, or neither
func Classify(mask *models.SupportMask) Outcome {
	c := mask.Count()
	switch {
	case c == 0:
		return Empty
	case c == len(mask.Data):
		return Full
	default:
		return OK
	}
}

// Bound returns the spherical region of radius radiusFactor*dmax around the
// grid centre. Supports are never allowed to grow beyond it.
func Bound(space *grid.Space, dmax, radiusFactor float64) *models.SupportMask {
	n := space.N
	r := radiusFactor * dmax
	mask := models.NewSupportMask(n, false)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				mask.Data[space.Index(i, j, k)] = space.Radius(i, j, k) <= r
			}
		}
	}
	return mask
}
