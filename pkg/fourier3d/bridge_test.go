package fourier3d

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saxsdensity/pkg/grid"
)

func newSpace(t *testing.T) *grid.Space {
	t.Helper()
	s, err := grid.New(16, 2, 2, 0)
	require.NoError(t, err)
	return s
}

func TestForwardInverseRoundTrip(t *testing.T) {
	space := newSpace(t)
	b := NewBridge(space)

	rng := rand.New(rand.NewPCG(1, 2))
	density := make([]float64, space.Size())
	for i := range density {
		density[i] = rng.Float64()
	}

	back, ratio := b.Inverse(b.Forward(density))
	assert.InDeltaSlice(t, density, back, 1e-6)
	assert.Less(t, ratio, 1e-10)
}

func TestForwardDCTermIsSum(t *testing.T) {
	space := newSpace(t)
	b := NewBridge(space)
	g := space.SolidSphere(5)

	f := b.Forward(g.Data)
	assert.InDelta(t, g.Sum(), real(f[0]), 1e-9)
	assert.InDelta(t, 0, imag(f[0]), 1e-9)

	// The transform of a real density is Hermitian: F(-q) = conj(F(q))
	n := space.N
	for _, ijk := range [][3]int{{1, 0, 0}, {2, 3, 1}, {5, 7, 2}} {
		i, j, k := ijk[0], ijk[1], ijk[2]
		p := f[space.Index(i, j, k)]
		m := f[space.Index((n-i)%n, (n-j)%n, (n-k)%n)]
		assert.InDelta(t, 0, cmplx.Abs(p-cmplx.Conj(m)), 1e-9)
	}
}

func TestInverseReportsImaginaryResidue(t *testing.T) {
	space := newSpace(t)
	b := NewBridge(space)

	rec := make([]complex128, space.Size())
	rec[space.Index(1, 0, 0)] = 1i
	_, ratio := b.Inverse(rec)
	assert.Greater(t, ratio, 1e-3)

	zero := make([]complex128, space.Size())
	_, ratio = b.Inverse(zero)
	assert.Zero(t, ratio)
}

func TestShellMapPurity(t *testing.T) {
	space := newSpace(t)
	m := NewShellMap(space)

	require.Len(t, m.Labels, space.Size())
	total := 0
	for _, c := range m.Counts {
		total += c
	}
	assert.Equal(t, space.Size(), total)

	// Shell 0 holds only the origin; the first axis frequency opens shell 1
	assert.Equal(t, 1, m.Counts[0])
	assert.Equal(t, 1, m.Labels[space.Index(1, 0, 0)])

	// Every voxel lies within one shell width of its shell's centre
	n := space.N
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				b := m.Labels[space.Index(i, j, k)]
				assert.Less(t, math.Abs(space.QRadius(i, j, k)-m.Centers[b]), m.Step)
			}
		}
	}

	// Centres of populated shells increase
	prev := -1.0
	for b, c := range m.Counts {
		if c == 0 {
			continue
		}
		assert.Greater(t, m.Centers[b], prev)
		prev = m.Centers[b]
	}
}

func TestRadialProfile(t *testing.T) {
	space := newSpace(t)
	b := NewBridge(space)
	g := space.SolidSphere(5)

	shells := b.RadialProfile(b.Forward(g.Data))
	require.Len(t, shells.I, b.Shells().Len())
	assert.True(t, shells.Valid[0])
	assert.InDelta(t, g.Sum()*g.Sum(), shells.I[0], 1e-6)
	for i, v := range shells.I {
		assert.GreaterOrEqual(t, v, 0.0, "shell %d", i)
	}
}

func TestSimulateProfile(t *testing.T) {
	space := newSpace(t)
	b := NewBridge(space)
	g := space.SolidSphere(5)

	p, err := SimulateProfile(b, g, 0)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Less(t, p.QMax(), space.QMaxAxis())
	assert.Zero(t, p.QMin())
	i0 := p.Points[0].I
	for _, pt := range p.Points {
		assert.InDelta(t, DefaultSigmaFraction*i0, pt.Sigma, 1e-9)
		assert.LessOrEqual(t, pt.I, i0*(1+1e-9))
	}

	other, err := grid.New(16, 2, 3, 0)
	require.NoError(t, err)
	_, err = SimulateProfile(b, other.NewDensity(), 0)
	assert.Error(t, err)
}
