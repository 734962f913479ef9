// Package grid defines the real-space sampling cube and its paired
// reciprocal-space sampling.
package grid

import (
	"fmt"
	"math"

	"saxsdensity/internal/models"
)

// MinSamples is the smallest grid side accepted.
const MinSamples = 8

// MaxSamples is the largest grid side accepted. A 512³ complex grid already
// takes 2 GiB.
const MaxSamples = 512

// Space is the discretised cubic real-space grid together with its
// reciprocal-space sampling. It carries no mutable state.
type Space struct {
	// N is the number of samples along each axis
	N int

	// Side is the physical edge length of the cube in Å
	Side float64

	// Voxel is the real-space sampling in Å
	Voxel float64

	// Oversampling is Side / Dmax
	Oversampling float64

	// DQ is the reciprocal-space sampling, 2π/Side
	DQ float64

	qAxis []float64
	xAxis []float64
}

// New builds a Space from the particle maximum dimension, the desired voxel
// size and the oversampling ratio. A positive nsamples overrides the side
// length derived from the voxel size; the voxel size is then recomputed so
// that N*Voxel equals the box side.
func New(dmax, voxel, oversampling float64, nsamples int) (*Space, error) {
	if !(dmax > 0) || math.IsInf(dmax, 0) {
		return nil, &models.ConfigurationError{Code: models.ErrCodeInvalidGrid, Field: "dmax", Message: fmt.Sprintf("must be positive, got %g", dmax)}
	}
	if !(voxel > 0) || math.IsInf(voxel, 0) {
		return nil, &models.ConfigurationError{Code: models.ErrCodeInvalidGrid, Field: "voxelSize", Message: fmt.Sprintf("must be positive, got %g", voxel)}
	}
	if !(oversampling >= 1) || math.IsInf(oversampling, 0) {
		return nil, &models.ConfigurationError{Code: models.ErrCodeInvalidGrid, Field: "oversampling", Message: fmt.Sprintf("must be at least 1, got %g", oversampling)}
	}

	side := oversampling * dmax
	n := nsamples
	if n <= 0 {
		if side/voxel > MaxSamples+1 {
			return nil, tooLarge("voxelSize", math.Ceil(side/voxel))
		}
		n = int(side / voxel)
		if n%2 == 1 {
			n++
		}
	} else if n%2 == 1 {
		return nil, &models.ConfigurationError{Code: models.ErrCodeInvalidGrid, Field: "nSamples", Message: fmt.Sprintf("must be even, got %d", n)}
	}
	if n < MinSamples {
		return nil, &models.ConfigurationError{
			Code:    models.ErrCodeInvalidGrid,
			Field:   "voxelSize",
			Message: fmt.Sprintf("grid of %d samples is smaller than the minimum of %d; decrease voxel size or increase oversampling", n, MinSamples),
		}
	}

	if n > MaxSamples {
		return nil, tooLarge("nSamples", float64(n))
	}

	s := &Space{
		N:            n,
		Side:         side,
		Voxel:        side / float64(n),
		Oversampling: oversampling,
		DQ:           2 * math.Pi / side,
	}
	s.qAxis = frequencies(n, s.Voxel)
	s.xAxis = make([]float64, n)
	for i := range s.xAxis {
		s.xAxis[i] = (float64(i) - float64(n)/2) * s.Voxel
	}
	return s, nil
}

func tooLarge(field string, n float64) error {
	return &models.ConfigurationError{
		Code:    models.ErrCodeInvalidGrid,
		Field:   field,
		Message: fmt.Sprintf("grid of %.0f samples exceeds the maximum of %d; increase voxel size or decrease oversampling", n, MaxSamples),
	}
}

// frequencies returns the DFT sample frequencies for n points spaced d
// apart, scaled by 2π: [0, 1, ..., n/2-1, -n/2, ..., -1] * 2π/(n*d).
func frequencies(n int, d float64) []float64 {
	k := make([]float64, n)
	scale := 2.0 * math.Pi / (float64(n) * d)
	for i := 0; i < n; i++ {
		freq := float64(i)
		if i >= (n+1)/2 {
			freq = float64(i - n)
		}
		k[i] = freq * scale
	}
	return k
}

// VoxelVolume returns the volume of a single voxel in Å³
func (s *Space) VoxelVolume() float64 { return s.Voxel * s.Voxel * s.Voxel }

// Size returns the total number of voxels
func (s *Space) Size() int { return s.N * s.N * s.N }

// Index converts grid coordinates to the flat row-major index
func (s *Space) Index(i, j, k int) int { return (i*s.N+j)*s.N + k }

// QAxis returns a copy of the reciprocal-space axis in 1/Å
func (s *Space) QAxis() []float64 {
	out := make([]float64, len(s.qAxis))
	copy(out, s.qAxis)
	return out
}

// XAxis returns a copy of the real-space axis in Å, with the grid centre at 0
func (s *Space) XAxis() []float64 {
	out := make([]float64, len(s.xAxis))
	copy(out, s.xAxis)
	return out
}

// Origin returns the physical coordinate of voxel (0,0,0)
func (s *Space) Origin() [3]float64 {
	return [3]float64{s.xAxis[0], s.xAxis[0], s.xAxis[0]}
}

// QMaxAxis is the largest positive frequency along a single axis
func (s *Space) QMaxAxis() float64 {
	return s.qAxis[s.N/2-1]
}

// QRadius returns |q| at the voxel (i, j, k) of the reciprocal grid
func (s *Space) QRadius(i, j, k int) float64 {
	qx, qy, qz := s.qAxis[i], s.qAxis[j], s.qAxis[k]
	return math.Sqrt(qx*qx + qy*qy + qz*qz)
}

// Radius returns the distance in Å between voxel (i, j, k) and the grid centre
func (s *Space) Radius(i, j, k int) float64 {
	x, y, z := s.xAxis[i], s.xAxis[j], s.xAxis[k]
	return math.Sqrt(x*x + y*y + z*z)
}

// NewDensity allocates an empty density grid on this space
func (s *Space) NewDensity() *models.DensityGrid {
	return models.NewDensityGrid(s.N, s.Voxel, s.Origin())
}

// SolidSphere returns a density of uniform value 1 inside a sphere of the
// given radius (Å) around the grid centre and 0 elsewhere.
func (s *Space) SolidSphere(radius float64) *models.DensityGrid {
	g := s.NewDensity()
	for i := 0; i < s.N; i++ {
		for j := 0; j < s.N; j++ {
			for k := 0; k < s.N; k++ {
				if s.Radius(i, j, k) <= radius {
					g.Data[s.Index(i, j, k)] = 1
				}
			}
		}
	}
	return g
}
