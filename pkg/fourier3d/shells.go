package fourier3d

import (
	"math"

	"saxsdensity/pkg/grid"
)

// ShellMap assigns every reciprocal-space voxel to a spherical shell of
// constant |q|. Membership depends only on the grid geometry.
type ShellMap struct {
	// Labels holds the shell index of every voxel
	Labels []int

	// Counts holds the number of voxels in each shell
	Counts []int

	// Centers holds the mean |q| of the voxels in each shell
	Centers []float64

	// Step is the shell width in 1/Å
	Step float64
}

// NewShellMap bins the reciprocal grid of space into shells of width just
// under DQ, so that the first non-zero axis frequency opens shell 1.
func NewShellMap(space *grid.Space) *ShellMap {
	n := space.N
	step := space.DQ - 1e-8

	var qmax float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				if q := space.QRadius(i, j, k); q > qmax {
					qmax = q
				}
			}
		}
	}
	nbins := int(qmax / step)

	m := &ShellMap{
		Labels:  make([]int, space.Size()),
		Counts:  make([]int, nbins+1),
		Centers: make([]float64, nbins+1),
		Step:    step,
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				q := space.QRadius(i, j, k)
				label := int(math.Floor(q / step))
				if label > nbins {
					label = nbins
				}
				idx := space.Index(i, j, k)
				m.Labels[idx] = label
				m.Counts[label]++
				m.Centers[label] += q
			}
		}
	}
	for b, c := range m.Counts {
		if c > 0 {
			m.Centers[b] /= float64(c)
		} else {
			m.Centers[b] = (float64(b) + 0.5) * step
		}
	}
	return m
}

// Len returns the number of shells
func (m *ShellMap) Len() int { return len(m.Counts) }

// Shells is a calculated radial profile: the mean |F|² of each shell.
type Shells struct {
	Q     []float64
	I     []float64
	Valid []bool
}

// RadialProfile averages |F|² over each shell of the map. Shells without
// member voxels are marked invalid and hold zero.
func (m *ShellMap) RadialProfile(reciprocal []complex128) Shells {
	s := Shells{
		Q:     make([]float64, len(m.Counts)),
		I:     make([]float64, len(m.Counts)),
		Valid: make([]bool, len(m.Counts)),
	}
	copy(s.Q, m.Centers)
	for idx, c := range reciprocal {
		re, im := real(c), imag(c)
		s.I[m.Labels[idx]] += re*re + im*im
	}
	for b, count := range m.Counts {
		if count > 0 {
			s.I[b] /= float64(count)
			s.Valid[b] = true
		}
	}
	return s
}

// RadialProfile is a convenience for b.Shells().RadialProfile
func (b *Bridge) RadialProfile(reciprocal []complex128) Shells {
	return b.shells.RadialProfile(reciprocal)
}
