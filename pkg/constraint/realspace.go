package constraint

import (
	"math"

	"saxsdensity/internal/models"
)

// RealSpaceOptions configures the real-space projection.
type RealSpaceOptions struct {
	// FlatSolvent additionally constrains density outside the looser bound
	FlatSolvent bool

	// FlatSolventCap caps density outside the bound at this multiple of the
	// mean density inside it. Zero means such density is removed entirely.
	FlatSolventCap float64
}

// Project applies the real-space constraint to density in place: voxels
// outside support are zeroed and the remaining values are clamped to be
// non-negative. When FlatSolvent is set, voxels outside bound are also
// zeroed, or capped if FlatSolventCap is positive. bound may be nil.
//
// Returns:
//   - The number of voxels that were altered
func Project(density []float64, support, bound *models.SupportMask, opts RealSpaceOptions) int {
	altered := 0

	if opts.FlatSolvent && bound != nil {
		ceiling := 0.0
		if opts.FlatSolventCap > 0 {
			var sum float64
			var count int
			for i, in := range bound.Data {
				if in {
					sum += math.Max(density[i], 0)
					count++
				}
			}
			if count > 0 {
				ceiling = opts.FlatSolventCap * sum / float64(count)
			}
		}
		for i, in := range bound.Data {
			if !in && density[i] > ceiling {
				density[i] = ceiling
				altered++
			}
		}
	}

	for i, v := range density {
		switch {
		case !support.Data[i]:
			if v != 0 {
				density[i] = 0
				altered++
			}
		case v < 0 || math.IsNaN(v):
			density[i] = 0
			altered++
		}
	}
	return altered
}

// Recenter rolls density and support by whole voxels so that the centre of
// mass of density lands on the grid centre (n/2, n/2, n/2). The grid is
// treated as periodic. It returns the applied shift.
func Recenter(density []float64, support *models.SupportMask, n int) [3]int {
	var total float64
	var com [3]float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				v := density[(i*n+j)*n+k]
				if v <= 0 {
					continue
				}
				total += v
				com[0] += v * float64(i)
				com[1] += v * float64(j)
				com[2] += v * float64(k)
			}
		}
	}
	var shift [3]int
	if total == 0 {
		return shift
	}
	for a := range com {
		shift[a] = int(math.Round(float64(n/2) - com[a]/total))
	}
	if shift == [3]int{} {
		return shift
	}

	rolledDensity := make([]float64, len(density))
	rolledSupport := make([]bool, len(support.Data))
	for i := 0; i < n; i++ {
		ti := wrap(i+shift[0], n)
		for j := 0; j < n; j++ {
			tj := wrap(j+shift[1], n)
			for k := 0; k < n; k++ {
				tk := wrap(k+shift[2], n)
				src := (i*n+j)*n + k
				dst := (ti*n+tj)*n + tk
				rolledDensity[dst] = density[src]
				rolledSupport[dst] = support.Data[src]
			}
		}
	}
	copy(density, rolledDensity)
	copy(support.Data, rolledSupport)
	return shift
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
