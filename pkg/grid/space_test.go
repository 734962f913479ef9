package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saxsdensity/internal/models"
)

func TestNewDerivesEvenGrid(t *testing.T) {
	s, err := New(50, 5, 3, 0)
	require.NoError(t, err)

	assert.Equal(t, 30, s.N)
	assert.InDelta(t, 150.0, s.Side, 1e-12)
	assert.InDelta(t, 5.0, s.Voxel, 1e-12)
	assert.InDelta(t, 2*math.Pi/150, s.DQ, 1e-15)
	assert.Equal(t, 27000, s.Size())
	assert.InDelta(t, 125.0, s.VoxelVolume(), 1e-9)

	// An odd sample count is bumped to the next even one
	s, err = New(50, 5.1, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, s.N%2)
	assert.InDelta(t, s.Side, float64(s.N)*s.Voxel, 1e-9)
}

func TestNewSampleOverride(t *testing.T) {
	s, err := New(50, 5, 3, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, s.N)
	assert.InDelta(t, 150.0/64, s.Voxel, 1e-12)
}

func TestNewRejectsInvalidGrids(t *testing.T) {
	tests := []struct {
		name              string
		dmax, voxel, over float64
		nsamples          int
	}{
		{"zero dmax", 0, 5, 3, 0},
		{"negative voxel", 50, -1, 3, 0},
		{"oversampling below one", 50, 5, 0.5, 0},
		{"odd override", 50, 5, 3, 33},
		{"too coarse", 50, 40, 3, 0},
		{"nan dmax", math.NaN(), 5, 3, 0},
		{"too fine", 50, 0.001, 3, 0},
		{"override too large", 50, 5, 3, MaxSamples + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.dmax, tt.voxel, tt.over, tt.nsamples)
			var cfgErr *models.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, models.ErrCodeInvalidGrid, cfgErr.Code)
		})
	}
}

func TestAxes(t *testing.T) {
	s, err := New(16, 2, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 16, s.N)

	q := s.QAxis()
	assert.Zero(t, q[0])
	assert.InDelta(t, s.DQ, q[1], 1e-15)
	assert.InDelta(t, -s.DQ, q[s.N-1], 1e-15)
	assert.InDelta(t, -float64(s.N/2)*s.DQ, q[s.N/2], 1e-12)
	assert.InDelta(t, float64(s.N/2-1)*s.DQ, s.QMaxAxis(), 1e-12)

	x := s.XAxis()
	assert.Zero(t, x[s.N/2])
	assert.Equal(t, [3]float64{x[0], x[0], x[0]}, s.Origin())

	// Returned axes are copies
	q[1] = 42
	assert.NotEqual(t, 42.0, s.QAxis()[1])
}

func TestRadiusAndSphere(t *testing.T) {
	s, err := New(16, 2, 2, 0)
	require.NoError(t, err)
	c := s.N / 2
	assert.Zero(t, s.Radius(c, c, c))
	assert.InDelta(t, s.Voxel, s.Radius(c+1, c, c), 1e-12)
	assert.InDelta(t, s.DQ*math.Sqrt(3), s.QRadius(1, 1, 1), 1e-12)

	g := s.SolidSphere(4)
	assert.Equal(t, 1.0, g.At(c, c, c))
	assert.Zero(t, g.At(0, 0, 0))
	assert.True(t, g.IsNonNegative())
	// A sphere of radius 2 voxels holds the 33 lattice points within that distance
	assert.InDelta(t, 33.0, g.Sum(), 1e-12)
}
