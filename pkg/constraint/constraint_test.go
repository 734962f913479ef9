package constraint

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saxsdensity/internal/models"
	"saxsdensity/pkg/fourier3d"
	"saxsdensity/pkg/grid"
)

type fixture struct {
	space  *grid.Space
	bridge *fourier3d.Bridge
	sphere *models.DensityGrid
	data   *models.ScatteringProfile
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	space, err := grid.New(16, 2, 2, 0)
	require.NoError(t, err)
	b := fourier3d.NewBridge(space)
	sphere := space.SolidSphere(5)
	p, err := fourier3d.SimulateProfile(b, sphere, 0)
	require.NoError(t, err)
	return fixture{space: space, bridge: b, sphere: sphere, data: p}
}

func TestNewTargetCoverage(t *testing.T) {
	f := newFixture(t)
	target, err := NewTarget(f.bridge.Shells(), f.data)
	require.NoError(t, err)

	assert.Positive(t, target.NumCovered)
	assert.Less(t, target.NumCovered, f.bridge.Shells().Len())
	for b, c := range f.bridge.Shells().Centers {
		if target.Covered[b] {
			assert.GreaterOrEqual(t, c, f.data.QMin())
			assert.LessOrEqual(t, c, f.data.QMax())
		}
	}
}

func TestNewTargetNoCoverage(t *testing.T) {
	f := newFixture(t)
	p, err := models.NewProfile([]float64{100, 200}, []float64{1, 2}, []float64{1, 1})
	require.NoError(t, err)

	_, err = NewTarget(f.bridge.Shells(), p)
	var cfgErr *models.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, models.ErrCodeNoCoverage, cfgErr.Code)
}

func TestScaleRecoversFactor(t *testing.T) {
	f := newFixture(t)
	target, err := NewTarget(f.bridge.Shells(), f.data)
	require.NoError(t, err)

	// Halving the density quarters the intensity, so the scale is 4
	half := f.sphere.Clone()
	for i := range half.Data {
		half.Data[i] /= 2
	}
	calc := f.bridge.RadialProfile(f.bridge.Forward(half.Data))

	assert.InDelta(t, 4.0, target.Scale(calc, ScaleLeastSquares), 1e-6)
	assert.InDelta(t, 4.0, target.Scale(calc, ScaleWeightedLeastSquares), 1e-6)
	assert.Equal(t, 1.0, target.Scale(calc, ScaleFixed))
}

func TestScaleDegenerate(t *testing.T) {
	f := newFixture(t)
	target, err := NewTarget(f.bridge.Shells(), f.data)
	require.NoError(t, err)

	calc := f.bridge.RadialProfile(f.bridge.Forward(f.space.NewDensity().Data))
	assert.Equal(t, 1.0, target.Scale(calc, ScaleLeastSquares))
}

func TestApplyMatchesTargetAndKeepsPhase(t *testing.T) {
	f := newFixture(t)
	target, err := NewTarget(f.bridge.Shells(), f.data)
	require.NoError(t, err)
	shells := f.bridge.Shells()

	// Start from a different shape so every covered shell must change
	start := f.space.SolidSphere(3)
	rec := f.bridge.Forward(start.Data)
	before := make([]complex128, len(rec))
	copy(before, rec)
	calc := f.bridge.RadialProfile(rec)
	scale := target.Scale(calc, ScaleLeastSquares)

	for _, mode := range []AmplitudeMode{AmplitudeScale, AmplitudeReplace} {
		t.Run(string(mode), func(t *testing.T) {
			work := make([]complex128, len(before))
			copy(work, before)

			modified := target.Apply(work, shells, calc, scale, mode)
			assert.Positive(t, modified)

			after := f.bridge.RadialProfile(work)
			for b := range target.Covered {
				if !target.Usable(b, calc) || calc.I[b] < 1e-12 {
					continue
				}
				assert.InDelta(t, target.I[b], scale*after.I[b], 1e-6*target.I[0], "shell %d", b)
			}

			for idx, f0 := range before {
				b := shells.Labels[idx]
				if !target.Covered[b] {
					assert.Equal(t, f0, work[idx], "uncovered voxel %d changed", idx)
					continue
				}
				if cmplx.Abs(f0) < 1e-9 || cmplx.Abs(work[idx]) < 1e-9 {
					continue
				}
				d := math.Remainder(cmplx.Phase(work[idx])-cmplx.Phase(f0), 2*math.Pi)
				assert.InDelta(t, 0, d, 1e-9, "voxel %d phase", idx)
			}
		})
	}
}

func TestApplyClampsNegativeIntensity(t *testing.T) {
	f := newFixture(t)
	target, err := NewTarget(f.bridge.Shells(), f.data)
	require.NoError(t, err)
	for b := range target.I {
		target.I[b] = -1
	}

	rec := f.bridge.Forward(f.sphere.Data)
	calc := f.bridge.RadialProfile(rec)
	target.Apply(rec, f.bridge.Shells(), calc, 1, AmplitudeScale)
	for idx, v := range rec {
		if target.Covered[f.bridge.Shells().Labels[idx]] {
			assert.Zero(t, cmplx.Abs(v))
		}
	}
}

func TestProject(t *testing.T) {
	support := models.NewSupportMask(2, true)
	support.Data[0] = false
	density := []float64{5, -1, math.NaN(), 2, 0, 3, -0.5, 1}

	altered := Project(density, support, nil, RealSpaceOptions{})
	assert.Equal(t, 4, altered)
	assert.Equal(t, []float64{0, 0, 0, 2, 0, 3, 0, 1}, density)
}

func TestProjectFlatSolvent(t *testing.T) {
	support := models.NewSupportMask(2, true)
	bound := models.NewSupportMask(2, false)
	bound.Data[0], bound.Data[1] = true, true

	density := []float64{4, 2, 1, 5, 0, 0, 0, 0}
	Project(density, support, bound, RealSpaceOptions{FlatSolvent: true})
	assert.Equal(t, []float64{4, 2, 0, 0, 0, 0, 0, 0}, density)

	// With a cap of 0.5 × mean inside the bound (3), outside values cap at 1.5
	density = []float64{4, 2, 1, 5, 0, 0, 0, 0}
	Project(density, support, bound, RealSpaceOptions{FlatSolvent: true, FlatSolventCap: 0.5})
	assert.Equal(t, []float64{4, 2, 1, 1.5, 0, 0, 0, 0}, density)
}

func TestRecenter(t *testing.T) {
	space, err := grid.New(16, 2, 2, 0)
	require.NoError(t, err)
	n := space.N
	density := make([]float64, space.Size())
	support := models.NewSupportMask(n, false)
	density[space.Index(2, 3, 4)] = 1
	support.Data[space.Index(2, 3, 4)] = true

	shift := Recenter(density, support, n)
	assert.Equal(t, [3]int{6, 5, 4}, shift)
	assert.Equal(t, 1.0, density[space.Index(8, 8, 8)])
	assert.True(t, support.Data[space.Index(8, 8, 8)])
	assert.Equal(t, 1, support.Count())

	// Already centred
	assert.Equal(t, [3]int{}, Recenter(density, support, n))
}
