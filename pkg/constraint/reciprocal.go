package constraint

import (
	"math"
	"math/cmplx"

	"saxsdensity/pkg/fourier3d"
)

// ScaleMethod selects how the calculated profile is scaled onto the
// experimental one before amplitudes are corrected.
type ScaleMethod string

const (
	// ScaleLeastSquares minimises Σ(s·Icalc − Iexp)² over usable shells
	ScaleLeastSquares ScaleMethod = "least_squares"

	// ScaleWeightedLeastSquares minimises Σ((s·Icalc − Iexp)/σ)²
	ScaleWeightedLeastSquares ScaleMethod = "weighted_least_squares"

	// ScaleFixed trusts the absolute normalisation of the data (s = 1)
	ScaleFixed ScaleMethod = "fixed"
)

// AmplitudeMode selects how shell amplitudes are imposed.
type AmplitudeMode string

const (
	// AmplitudeScale multiplies every voxel of a shell by sqrt(Iexp/(s·Icalc)),
	// keeping the anisotropy of |F| inside the shell
	AmplitudeScale AmplitudeMode = "scale"

	// AmplitudeReplace sets every voxel of a shell to |F| = sqrt(Iexp/s)
	AmplitudeReplace AmplitudeMode = "replace"
)

// Scale returns the factor s that maps the calculated profile onto the
// experimental one. A degenerate fit (no usable shells, zero or negative
// result) yields 1.
func (t *Target) Scale(calc fourier3d.Shells, method ScaleMethod) float64 {
	if method == ScaleFixed {
		return 1
	}
	var num, den float64
	weighted := method == ScaleWeightedLeastSquares
	for b := range t.Covered {
		if !t.Usable(b, calc) {
			continue
		}
		w := 1.0
		if weighted {
			if t.Sigma[b] <= 0 {
				continue
			}
			w = 1 / (t.Sigma[b] * t.Sigma[b])
		}
		num += w * calc.I[b] * t.I[b]
		den += w * calc.I[b] * calc.I[b]
	}
	if den == 0 {
		if weighted {
			return t.Scale(calc, ScaleLeastSquares)
		}
		return 1
	}
	s := num / den
	if !(s > 0) || math.IsInf(s, 0) {
		return 1
	}
	return s
}

// Apply projects reciprocal onto the set of grids whose shell intensities
// match the target, in place. The phase of every voxel is preserved.
// Shells that are uncovered, empty, or have zero calculated intensity are
// left unmodified.
//
// Parameters:
//   - reciprocal: structure factors, modified in place
//   - shells: the shell map the target was built against
//   - calc: radial profile of reciprocal before correction
//   - scale: factor returned by Scale
//   - mode: amplitude policy
//
// Returns:
//   - The number of voxels modified
func (t *Target) Apply(reciprocal []complex128, shells *fourier3d.ShellMap, calc fourier3d.Shells, scale float64, mode AmplitudeMode) int {
	nb := len(t.Covered)
	factor := make([]float64, nb)
	active := make([]bool, nb)
	for b := 0; b < nb; b++ {
		if !t.Usable(b, calc) {
			continue
		}
		iexp := math.Max(t.I[b], 0)
		switch mode {
		case AmplitudeReplace:
			factor[b] = math.Sqrt(iexp / scale)
			active[b] = true
		default:
			if calc.I[b] <= 0 {
				continue
			}
			factor[b] = math.Sqrt(iexp / (scale * calc.I[b]))
			active[b] = true
		}
	}

	modified := 0
	for idx, f := range reciprocal {
		b := shells.Labels[idx]
		if !active[b] {
			continue
		}
		if mode == AmplitudeReplace {
			reciprocal[idx] = cmplx.Rect(factor[b], cmplx.Phase(f))
		} else {
			reciprocal[idx] = f * complex(factor[b], 0)
		}
		modified++
	}
	return modified
}
