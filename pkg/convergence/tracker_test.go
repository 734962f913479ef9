package convergence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saxsdensity/pkg/constraint"
	"saxsdensity/pkg/fourier3d"
)

func shells(i ...float64) fourier3d.Shells {
	s := fourier3d.Shells{I: i, Q: make([]float64, len(i)), Valid: make([]bool, len(i))}
	for b := range s.Valid {
		s.Valid[b] = true
	}
	return s
}

func TestResidual(t *testing.T) {
	target := &constraint.Target{
		Covered:    []bool{true, true, false},
		I:          []float64{10, 4, 0},
		Sigma:      []float64{1, 2, 0},
		NumCovered: 2,
	}
	calc := shells(5, 1, 100)

	// ((2*5-10)/1)² + ((2*1-4)/2)² averaged over two shells
	assert.InDelta(t, 0.5, Residual(calc, target, 2, true), 1e-12)
	// (0² + 2²) / (10² + 4²)
	assert.InDelta(t, 4.0/116, Residual(calc, target, 2, false), 1e-12)

	exact := shells(10, 4, 7)
	assert.Zero(t, Residual(exact, target, 1, true))

	// Zero sigma falls back to the largest experimental intensity
	target.Sigma[1] = 0
	assert.InDelta(t, (2.0/10)*(2.0/10)/2, Residual(calc, target, 2, true), 1e-12)

	none := &constraint.Target{Covered: []bool{false, false, false}, I: make([]float64, 3), Sigma: make([]float64, 3)}
	assert.True(t, math.IsInf(Residual(calc, none, 1, true), 1))
}

func TestRecordMaxIterations(t *testing.T) {
	tr := NewTracker(Criteria{MaxIterations: 3})
	for i := 0; i < 2; i++ {
		stop, reason := tr.Record(1)
		require.False(t, stop)
		require.Equal(t, ReasonNone, reason)
	}
	stop, reason := tr.Record(1)
	assert.True(t, stop)
	assert.Equal(t, ReasonMaxIterations, reason)
	assert.Equal(t, 3, tr.Len())
}

func TestRecordThreshold(t *testing.T) {
	tr := NewTracker(Criteria{MaxIterations: 100, Threshold: 0.5, MinIterations: 3})

	// Below threshold, but gated by MinIterations
	stop, _ := tr.Record(0.1)
	assert.False(t, stop)
	stop, _ = tr.Record(0.1)
	assert.False(t, stop)
	stop, reason := tr.Record(0.1)
	assert.True(t, stop)
	assert.Equal(t, ReasonThreshold, reason)
}

func TestMaxIterationsWinsOverThreshold(t *testing.T) {
	tr := NewTracker(Criteria{MaxIterations: 1, Threshold: 10})
	_, reason := tr.Record(1)
	assert.Equal(t, ReasonMaxIterations, reason)
}

func TestPlateauNeverFiresWhileImproving(t *testing.T) {
	tr := NewTracker(Criteria{MaxIterations: 1000, PlateauWindow: 10, PlateauTolerance: 1e-3})
	r := 1.0
	for i := 0; i < 500; i++ {
		stop, reason := tr.Record(r)
		require.False(t, stop, "iteration %d stopped with %s", i, reason)
		r *= 0.99
	}
}

func TestPlateauFiresOnStall(t *testing.T) {
	tr := NewTracker(Criteria{MaxIterations: 1000, PlateauWindow: 5, PlateauTolerance: 1e-3})
	var stopped int
	var reason Reason
	for i := 0; i < 100; i++ {
		var stop bool
		stop, reason = tr.Record(1)
		if stop {
			stopped = i + 1
			break
		}
	}
	assert.Equal(t, 6, stopped)
	assert.Equal(t, ReasonPlateau, reason)
}

func TestPlateauIgnoresNoiseAboveBest(t *testing.T) {
	tr := NewTracker(Criteria{MaxIterations: 1000, PlateauWindow: 4, PlateauTolerance: 1e-3})
	// Oscillating residuals whose best keeps improving never plateau
	values := []float64{1, 2, 0.9, 2, 0.8, 2, 0.7, 2, 0.6, 2, 0.5}
	for _, v := range values {
		stop, _ := tr.Record(v)
		require.False(t, stop)
	}
	assert.Equal(t, 0.5, tr.Best())
	assert.Equal(t, 0.5, tr.Last())
}

func TestTrackerEmpty(t *testing.T) {
	tr := NewTracker(Criteria{MaxIterations: 1})
	assert.True(t, math.IsInf(tr.Best(), 1))
	assert.True(t, math.IsInf(tr.Last(), 1))
	assert.Empty(t, tr.History())
	assert.False(t, tr.Plateaued())
}
