package models

import "gonum.org/v1/gonum/floats"

// DensityGrid represents a cubic electron density map.
// Voxels are stored in a flat slice in row-major order, idx = (i*N + j)*N + k.
type DensityGrid struct {
	// Data holds the N*N*N voxel values
	Data []float64

	// N is the side length of the grid in voxels
	N int

	// VoxelSize is the physical edge length of a voxel in Å
	VoxelSize float64

	// Origin is the physical coordinate of voxel (0,0,0) in Å
	Origin [3]float64
}

// NewDensityGrid allocates a zero-filled grid of side n
func NewDensityGrid(n int, voxelSize float64, origin [3]float64) *DensityGrid {
	return &DensityGrid{
		Data:      make([]float64, n*n*n),
		N:         n,
		VoxelSize: voxelSize,
		Origin:    origin,
	}
}

// Index converts grid coordinates to the flat index
func (g *DensityGrid) Index(i, j, k int) int {
	return (i*g.N+j)*g.N + k
}

// At returns the value at grid coordinates (i, j, k)
func (g *DensityGrid) At(i, j, k int) float64 {
	return g.Data[g.Index(i, j, k)]
}

// Set stores v at grid coordinates (i, j, k)
func (g *DensityGrid) Set(i, j, k int, v float64) {
	g.Data[g.Index(i, j, k)] = v
}

// Clone returns a deep copy of the grid
func (g *DensityGrid) Clone() *DensityGrid {
	c := *g
	c.Data = make([]float64, len(g.Data))
	copy(c.Data, g.Data)
	return &c
}

// Sum returns the total density
func (g *DensityGrid) Sum() float64 {
	var s float64
	for _, v := range g.Data {
		s += v
	}
	return s
}

// Max returns the largest voxel value, or 0 for an empty grid
func (g *DensityGrid) Max() float64 {
	if len(g.Data) == 0 {
		return 0
	}
	return floats.Max(g.Data)
}

// IsNonNegative reports whether every voxel is >= 0
func (g *DensityGrid) IsNonNegative() bool {
	for _, v := range g.Data {
		if v < 0 {
			return false
		}
	}
	return true
}

// SupportMask marks the voxels in which non-zero density is permitted.
// It always shares the shape of the DensityGrid it constrains.
type SupportMask struct {
	Data []bool
	N    int
}

// NewSupportMask allocates a mask of side n with every voxel set to fill
func NewSupportMask(n int, fill bool) *SupportMask {
	m := &SupportMask{Data: make([]bool, n*n*n), N: n}
	if fill {
		for i := range m.Data {
			m.Data[i] = true
		}
	}
	return m
}

// Count returns the number of voxels inside the support
func (m *SupportMask) Count() int {
	c := 0
	for _, v := range m.Data {
		if v {
			c++
		}
	}
	return c
}

// Volume returns the enclosed volume for a given voxel volume
func (m *SupportMask) Volume(voxelVolume float64) float64 {
	return float64(m.Count()) * voxelVolume
}

// Clone returns a deep copy of the mask
func (m *SupportMask) Clone() *SupportMask {
	c := &SupportMask{Data: make([]bool, len(m.Data)), N: m.N}
	copy(c.Data, m.Data)
	return c
}

// And intersects m with other in place. Both masks must share the same shape.
func (m *SupportMask) And(other *SupportMask) {
	for i := range m.Data {
		m.Data[i] = m.Data[i] && other.Data[i]
	}
}
