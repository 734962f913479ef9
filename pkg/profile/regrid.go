// Package profile provides operations on scattering profiles and on the
// low-resolution descriptors derived from density maps.
package profile

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"saxsdensity/internal/models"
)

// Method selects the interpolant used by Regrid
type Method string

const (
	// Linear uses piecewise linear interpolation
	Linear Method = "linear"
	// Cubic uses a natural cubic spline
	Cubic Method = "cubic"
)

type predictor interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

func newPredictor(method Method, n int) predictor {
	if method == Cubic && n >= 3 {
		return &interp.NaturalCubic{}
	}
	return &interp.PiecewiseLinear{}
}

// Regrid interpolates intensities and uncertainties of p onto the q values
// in qs. Values of qs outside the measured range of p are dropped, so the
// result never extrapolates.
func Regrid(p *models.ScatteringProfile, qs []float64, method Method) (*models.ScatteringProfile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	q, intensity, sigma := p.Columns()

	iFit := newPredictor(method, len(q))
	if err := iFit.Fit(q, intensity); err != nil {
		return nil, fmt.Errorf("fitting intensity: %w", err)
	}
	sFit := newPredictor(method, len(q))
	if err := sFit.Fit(q, sigma); err != nil {
		return nil, fmt.Errorf("fitting sigma: %w", err)
	}

	qmin, qmax := p.QMin(), p.QMax()
	out := &models.ScatteringProfile{}
	for _, x := range qs {
		if x < qmin || x > qmax {
			continue
		}
		s := sFit.Predict(x)
		if s < 0 {
			s = 0
		}
		out.Points = append(out.Points, models.Point{Q: x, I: iFit.Predict(x), Sigma: s})
	}
	if len(out.Points) == 0 {
		return nil, &models.ConfigurationError{
			Code:    models.ErrCodeNoCoverage,
			Field:   "q",
			Message: fmt.Sprintf("no requested q lies inside [%.4g, %.4g]", qmin, qmax),
		}
	}
	return out, nil
}

// UniformQ returns n evenly spaced q values from 0 to qmax inclusive
func UniformQ(qmax float64, n int) []float64 {
	if n < 2 {
		return []float64{qmax}
	}
	qs := make([]float64, n)
	floats.Span(qs, 0, qmax)
	return qs
}

// Units names the angular unit of a profile's q values
type Units string

const (
	// PerAngstrom is q in Å⁻¹, the unit used everywhere inside the engine
	PerAngstrom Units = "a"
	// PerNanometer is q in nm⁻¹
	PerNanometer Units = "nm"
)

// ToAngstrom returns p with q expressed in Å⁻¹. A profile already in Å⁻¹ is
// returned unchanged.
func ToAngstrom(p *models.ScatteringProfile, units Units) (*models.ScatteringProfile, error) {
	switch units {
	case PerAngstrom, "":
		return p, nil
	case PerNanometer:
		out := &models.ScatteringProfile{Points: make([]models.Point, len(p.Points))}
		for i, pt := range p.Points {
			pt.Q /= 10
			out.Points[i] = pt
		}
		return out, nil
	default:
		return nil, &models.ConfigurationError{
			Code:    models.ErrCodeInvalidValue,
			Field:   "units",
			Message: fmt.Sprintf("unknown units %q; use %q or %q", units, PerAngstrom, PerNanometer),
		}
	}
}
