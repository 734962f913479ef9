package reconstruction

import (
	"saxsdensity/internal/models"
	"saxsdensity/pkg/constraint"
	"saxsdensity/pkg/convergence"
	"saxsdensity/pkg/fourier3d"
	"saxsdensity/pkg/shrinkwrap"
)

// Summary holds low-resolution descriptors of a finished reconstruction
type Summary struct {
	// Residual is the residual of the returned density against the data,
	// computed after the last iteration
	Residual float64

	// Scale is the factor mapping the calculated profile onto the data
	Scale float64

	// RadiusOfGyration of the returned density in Å
	RadiusOfGyration float64

	// SupportVolume is the enclosed volume of the final support in Å³
	SupportVolume float64

	// DensityMean and DensityStdDev describe the density inside the support
	DensityMean   float64
	DensityStdDev float64
}

// IterationState is the mutable state of one attempt. It is created when
// the attempt starts, advanced once per iteration by the stage functions
// and summarised into a Result when the attempt ends.
type IterationState struct {
	// Iteration is the number of completed iterations
	Iteration int

	// Density is the density after the most recent real-space projection
	Density *models.DensityGrid

	// Support is the current support mask
	Support *models.SupportMask

	// SupportVolumes holds the enclosed support volume after every iteration
	SupportVolumes []float64

	// Scale is the most recent profile scale factor
	Scale float64

	// Phase is the shrink-wrap phase after the most recent iteration
	Phase shrinkwrap.Phase

	// Converged is set when the run stopped on the threshold or plateau rule.
	// Reaching the iteration cap is not convergence.
	Converged bool

	// Warnings collects non-fatal numerical anomalies
	Warnings []models.NumericalInstabilityWarning
}

// Result is the immutable outcome of a successful run
type Result struct {
	// RunID identifies the run; it is derived from the seed and attempt
	RunID string

	// Density is the final density map
	Density *models.DensityGrid

	// Support is the final support mask
	Support *models.SupportMask

	// Residuals is the full residual history of the returned attempt
	Residuals []float64

	// SupportVolumes is the support volume history of the returned attempt
	SupportVolumes []float64

	// Reason is why the run terminated
	Reason convergence.Reason

	// Converged is true for threshold and plateau stops only
	Converged bool

	// Iterations is the number of iterations completed in the returned attempt
	Iterations int

	// Attempts is the number of initialisations used, including diverged ones
	Attempts int

	// Seed is the seed of the returned attempt
	Seed uint64

	// FinalProfile is the radial profile of the returned density
	FinalProfile fourier3d.Shells

	// Target is the measured profile interpolated onto the same shells
	Target *constraint.Target

	// Warnings lists the numerical anomalies seen during the returned attempt
	Warnings []models.NumericalInstabilityWarning

	// Summary holds derived descriptors
	Summary Summary
}
