// Package constraint implements the two projections of the reconstruction:
// the reciprocal-space amplitude constraint and the real-space
// support/positivity constraint.
package constraint

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"saxsdensity/internal/models"
	"saxsdensity/pkg/fourier3d"
)

// Target is the experimental profile resampled onto the shells of a grid.
// Shells outside the measured q-range are uncovered: they are excluded from
// scaling and residuals, and the amplitude projection passes them through.
type Target struct {
	// Covered marks shells that lie inside the measured q-range
	Covered []bool

	// I is the interpolated experimental intensity per shell
	I []float64

	// Sigma is the interpolated uncertainty per shell
	Sigma []float64

	// NumCovered is the number of covered shells
	NumCovered int
}

// NewTarget interpolates profile linearly onto the shell centres of shells.
// It fails with a ConfigurationError if no shell falls inside the profile's q-range.
func NewTarget(shells *fourier3d.ShellMap, profile *models.ScatteringProfile) (*Target, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	q, intensity, sigma := profile.Columns()

	var iFit, sFit interp.PiecewiseLinear
	if err := iFit.Fit(q, intensity); err != nil {
		return nil, fmt.Errorf("fitting intensity interpolant: %w", err)
	}
	if err := sFit.Fit(q, sigma); err != nil {
		return nil, fmt.Errorf("fitting sigma interpolant: %w", err)
	}

	nb := shells.Len()
	t := &Target{
		Covered: make([]bool, nb),
		I:       make([]float64, nb),
		Sigma:   make([]float64, nb),
	}
	qmin, qmax := profile.QMin(), profile.QMax()
	for b := 0; b < nb; b++ {
		c := shells.Centers[b]
		if shells.Counts[b] == 0 || c < qmin || c > qmax {
			continue
		}
		t.Covered[b] = true
		t.I[b] = iFit.Predict(c)
		t.Sigma[b] = sFit.Predict(c)
		t.NumCovered++
	}
	if t.NumCovered == 0 {
		return nil, &models.ConfigurationError{
			Code:    models.ErrCodeNoCoverage,
			Field:   "profile",
			Message: fmt.Sprintf("profile q-range [%.4g, %.4g] covers no shell of the grid (shell width %.4g)", qmin, qmax, shells.Step),
		}
	}
	return t, nil
}

// Usable reports whether shell b takes part in scaling and residuals
func (t *Target) Usable(b int, calc fourier3d.Shells) bool {
	return t.Covered[b] && calc.Valid[b]
}
