package models

import (
	"fmt"
	"math"
)

// Point is a single sample of a scattering curve
type Point struct {
	// Q is the momentum transfer magnitude in 1/Å
	Q float64 `csv:"q" yaml:"q"`

	// I is the measured intensity at Q
	I float64 `csv:"i" yaml:"i"`

	// Sigma is the uncertainty of I
	Sigma float64 `csv:"sigma" yaml:"sigma"`
}

// ScatteringProfile is an ordered 1D intensity curve I(q) with uncertainties.
// A profile is treated as immutable once it has been validated.
type ScatteringProfile struct {
	Points []Point
}

// NewProfile builds a profile from parallel q, I and sigma columns.
func NewProfile(q, intensity, sigma []float64) (*ScatteringProfile, error) {
	if len(q) != len(intensity) || len(q) != len(sigma) {
		return nil, &ConfigurationError{
			Code:    ErrCodeInvalidProfile,
			Field:   "profile",
			Message: fmt.Sprintf("column lengths differ (q=%d, i=%d, sigma=%d)", len(q), len(intensity), len(sigma)),
		}
	}
	points := make([]Point, len(q))
	for n := range q {
		points[n] = Point{Q: q[n], I: intensity[n], Sigma: sigma[n]}
	}
	return &ScatteringProfile{Points: points}, nil
}

// Len returns the number of samples in the profile
func (p *ScatteringProfile) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Points)
}

// QMin returns the smallest q in the profile
func (p *ScatteringProfile) QMin() float64 { return p.Points[0].Q }

// QMax returns the largest q in the profile
func (p *ScatteringProfile) QMax() float64 { return p.Points[len(p.Points)-1].Q }

// Columns splits the profile into q, I and sigma slices.
func (p *ScatteringProfile) Columns() (q, intensity, sigma []float64) {
	q = make([]float64, len(p.Points))
	intensity = make([]float64, len(p.Points))
	sigma = make([]float64, len(p.Points))
	for n, pt := range p.Points {
		q[n] = pt.Q
		intensity[n] = pt.I
		sigma[n] = pt.Sigma
	}
	return q, intensity, sigma
}

// Validate checks the invariants a reconstruction depends on: q strictly
// increasing and finite, sigma non-negative, and at least one non-zero intensity.
func (p *ScatteringProfile) Validate() error {
	if p.Len() == 0 {
		return &ConfigurationError{Code: ErrCodeEmptyProfile, Field: "profile", Message: "scattering profile is empty"}
	}
	if p.Len() < 2 {
		return &ConfigurationError{Code: ErrCodeInvalidProfile, Field: "profile", Message: "scattering profile needs at least two points"}
	}

	nonZero := false
	for n, pt := range p.Points {
		if math.IsNaN(pt.Q) || math.IsInf(pt.Q, 0) {
			return &ConfigurationError{Code: ErrCodeInvalidProfile, Field: "q", Message: fmt.Sprintf("q[%d] is not finite", n)}
		}
		if n > 0 && pt.Q <= p.Points[n-1].Q {
			return &ConfigurationError{Code: ErrCodeInvalidProfile, Field: "q", Message: fmt.Sprintf("q[%d]=%g is not greater than q[%d]=%g", n, pt.Q, n-1, p.Points[n-1].Q)}
		}
		if math.IsNaN(pt.I) || math.IsInf(pt.I, 0) {
			return &ConfigurationError{Code: ErrCodeInvalidProfile, Field: "i", Message: fmt.Sprintf("I[%d] is not finite", n)}
		}
		if math.IsNaN(pt.Sigma) || math.IsInf(pt.Sigma, 0) || pt.Sigma < 0 {
			return &ConfigurationError{Code: ErrCodeInvalidProfile, Field: "sigma", Message: fmt.Sprintf("sigma[%d]=%g must be finite and non-negative", n, pt.Sigma)}
		}
		if pt.I != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return &ConfigurationError{Code: ErrCodeEmptyProfile, Field: "i", Message: "scattering profile has no non-zero intensities"}
	}
	return nil
}

// Clean returns a copy without rows that contain NaN values or a zero
// intensity or uncertainty. Such rows are routinely present in raw
// beamline output and carry no usable information.
func (p *ScatteringProfile) Clean() *ScatteringProfile {
	out := &ScatteringProfile{Points: make([]Point, 0, p.Len())}
	if p == nil {
		return out
	}
	for _, pt := range p.Points {
		if math.IsNaN(pt.Q) || math.IsNaN(pt.I) || math.IsNaN(pt.Sigma) {
			continue
		}
		if pt.I == 0 || pt.Sigma == 0 {
			continue
		}
		out.Points = append(out.Points, pt)
	}
	return out
}
