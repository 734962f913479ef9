// Package fourier3d moves density between real space and reciprocal space
// and reduces structure factors to a radially averaged profile.
package fourier3d

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"saxsdensity/pkg/grid"
)

// Bridge performs 3D discrete Fourier transforms on a fixed grid.
// The 3D transform is computed as three passes of 1D transforms, one per
// axis, over the flattened row-major volume.
//
// A Bridge holds scratch buffers and must not be shared between goroutines.
type Bridge struct {
	space   *grid.Space
	fft     *fourier.CmplxFFT
	lineIn  []complex128
	lineOut []complex128
	shells  *ShellMap
}

// NewBridge plans the transforms for the given space and computes its shell map.
func NewBridge(space *grid.Space) *Bridge {
	n := space.N
	return &Bridge{
		space:   space,
		fft:     fourier.NewCmplxFFT(n),
		lineIn:  make([]complex128, n),
		lineOut: make([]complex128, n),
		shells:  NewShellMap(space),
	}
}

// Shells returns the cached shell map of the bridge's grid
func (b *Bridge) Shells() *ShellMap { return b.shells }

// Forward computes the unnormalised 3D DFT of a real density.
//
// Parameters:
//   - density: N*N*N real voxels in row-major order
//
// Returns:
//   - A freshly allocated complex grid of identical shape
func (b *Bridge) Forward(density []float64) []complex128 {
	out := make([]complex128, len(density))
	for i, v := range density {
		out[i] = complex(v, 0)
	}
	b.transform(out, true)
	return out
}

// Inverse computes the normalised inverse 3D DFT and keeps the real part.
// The second return value is max|imag| / max|real| of the intermediate
// result; for Hermitian input it is at rounding level, and callers decide
// whether a larger value warrants a warning.
func (b *Bridge) Inverse(reciprocal []complex128) ([]float64, float64) {
	work := make([]complex128, len(reciprocal))
	copy(work, reciprocal)
	b.transform(work, false)

	norm := 1.0 / float64(len(work))
	out := make([]float64, len(work))
	var maxRe, maxIm float64
	for i, c := range work {
		re := real(c) * norm
		im := math.Abs(imag(c) * norm)
		out[i] = re
		if a := math.Abs(re); a > maxRe {
			maxRe = a
		}
		if im > maxIm {
			maxIm = im
		}
	}
	if maxRe == 0 {
		if maxIm == 0 {
			return out, 0
		}
		return out, math.Inf(1)
	}
	return out, maxIm / maxRe
}

// transform applies the 1D transform along k, then j, then i, in place.
func (b *Bridge) transform(data []complex128, forward bool) {
	n := b.space.N
	strides := [3]int{1, n, n * n}
	for _, stride := range strides {
		for base := 0; base < len(data); base++ {
			// base must be the first element of a line along this axis
			if (base/stride)%n != 0 {
				continue
			}
			for t := 0; t < n; t++ {
				b.lineIn[t] = data[base+t*stride]
			}
			if forward {
				b.fft.Coefficients(b.lineOut, b.lineIn)
			} else {
				b.fft.Sequence(b.lineOut, b.lineIn)
			}
			for t := 0; t < n; t++ {
				data[base+t*stride] = b.lineOut[t]
			}
		}
	}
}
