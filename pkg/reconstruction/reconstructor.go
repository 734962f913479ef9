// Package reconstruction runs the iterative ab-initio density reconstruction:
// alternating reciprocal-space amplitude projection and real-space
// support/positivity projection, with periodic shrink-wrap support updates.
package reconstruction

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saxsdensity/internal/models"
	"saxsdensity/pkg/config"
	"saxsdensity/pkg/constraint"
	"saxsdensity/pkg/convergence"
	"saxsdensity/pkg/fourier3d"
	"saxsdensity/pkg/grid"
	"saxsdensity/pkg/profile"
	"saxsdensity/pkg/shrinkwrap"
)

// Reconstructor turns a scattering profile into a density map.
//
// A Reconstructor keeps no state between calls to Run: every run builds its
// own grid, transforms and iteration state, so independent runs with
// different seeds may execute concurrently on separate goroutines.
type Reconstructor struct {
	// cfg stores the reconstruction configuration
	cfg *config.Config

	// logger receives progress and warnings
	logger *zap.Logger
}

// NewReconstructor creates a new reconstructor with the provided configuration.
//
// Parameters:
//   - cfg: Reconstruction configuration; validated when Run is called
//   - logger: Destination for progress logs; nil disables logging
//
// Returns:
//   - A new Reconstructor instance
func NewReconstructor(cfg *config.Config, logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{cfg: cfg, logger: logger}
}

// setup holds everything derived from configuration and data.
// It is built once per Run and only read by the iterations.
type setup struct {
	space       *grid.Space
	bridge      *fourier3d.Bridge
	target      *constraint.Target
	bound       *models.SupportMask
	swParams    shrinkwrap.Params
	schedule    shrinkwrap.Schedule
	criteria    convergence.Criteria
	scaleMethod constraint.ScaleMethod
	amplitude   constraint.AmplitudeMode
	realSpace   constraint.RealSpaceOptions
}

// attemptOutcome is what a single initialisation produced
type attemptOutcome struct {
	result   *Result
	diverged bool
	badMasks int
	history  []float64
}

// Run reconstructs a density from profile.
//
// Configuration and profile problems are reported as *models.ConfigurationError
// before any iteration. If the support collapses repeatedly on every attempt,
// Run returns *models.DivergedReconstructionError. Cancelling ctx stops the
// run at the next iteration boundary; the lowest-residual density of the
// attempt so far is returned with reason "cancelled" and a nil error.
func (r *Reconstructor) Run(ctx context.Context, p *models.ScatteringProfile) (*Result, error) {
	// Step 1: Validate inputs and derive the run setup
	if r.cfg == nil {
		return nil, &models.ConfigurationError{Code: models.ErrCodeInvalidValue, Field: "config", Message: "configuration is nil"}
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := r.prepare(p)
	if err != nil {
		return nil, err
	}

	r.logger.Info("reconstruction started",
		zap.Int("n", s.space.N),
		zap.Float64("side", s.space.Side),
		zap.Float64("voxel", s.space.Voxel),
		zap.Int("shells", s.bridge.Shells().Len()),
		zap.Int("shells_covered", s.target.NumCovered),
		zap.Uint64("seed", r.cfg.Iterations.RandomSeed))

	// Step 2: Iterate, reinitialising on divergence
	var histories [][]float64
	lastBad := 0
	retries := r.cfg.Iterations.DivergenceRetries
	for attempt := 0; attempt <= retries; attempt++ {
		out, err := r.attempt(ctx, s, attempt)
		if err != nil {
			return nil, err
		}
		if !out.diverged {
			out.result.Attempts = attempt + 1
			return out.result, nil
		}
		histories = append(histories, out.history)
		lastBad = out.badMasks
		r.logger.Warn("support diverged",
			zap.String("reason", string(convergence.ReasonDiverged)),
			zap.Int("attempt", attempt+1),
			zap.Int("attempts_allowed", retries+1),
			zap.Int("bad_masks", out.badMasks),
			zap.Int("iterations", len(out.history)))
	}

	return nil, &models.DivergedReconstructionError{
		Attempts: len(histories),
		BadMasks: lastBad,
		History:  histories,
	}
}

// prepare builds the grid, transforms, target and schedules for one run
func (r *Reconstructor) prepare(p *models.ScatteringProfile) (*setup, error) {
	cfg := r.cfg
	space, err := grid.New(cfg.Grid.MaxDimension, cfg.Grid.VoxelSize, cfg.Grid.Oversampling, cfg.Grid.NSamples)
	if err != nil {
		return nil, err
	}
	bridge := fourier3d.NewBridge(space)
	target, err := constraint.NewTarget(bridge.Shells(), p)
	if err != nil {
		return nil, err
	}

	sw := cfg.ShrinkWrap
	return &setup{
		space:  space,
		bridge: bridge,
		target: target,
		bound:  shrinkwrap.Bound(space, cfg.Grid.MaxDimension, cfg.Grid.BoundRadiusFactor),
		swParams: shrinkwrap.Params{
			SigmaStart:           sw.SigmaStart,
			SigmaEnd:             sw.SigmaEnd,
			SigmaDecay:           sw.SigmaDecay,
			ThresholdFraction:    sw.ThresholdFraction,
			ThresholdFractionEnd: sw.ThresholdFractionEnd,
			Schedule:             shrinkwrap.ThresholdSchedule(sw.Schedule),
			AnnealUpdates:        sw.AnnealUpdates,
		},
		schedule: shrinkwrap.Schedule{
			Start:       sw.Start,
			Cadence:     sw.Cadence,
			MaxBadMasks: sw.MaxBadMasks,
		},
		criteria: convergence.Criteria{
			MaxIterations:    cfg.Iterations.MaxIterations,
			Threshold:        cfg.Convergence.Threshold,
			PlateauWindow:    cfg.Convergence.PlateauWindow,
			PlateauTolerance: cfg.Convergence.PlateauTolerance,
			MinIterations:    cfg.Convergence.MinIterations,
		},
		scaleMethod: constraint.ScaleMethod(cfg.Constraints.ScaleMethod),
		amplitude:   constraint.AmplitudeMode(cfg.Constraints.AmplitudeMode),
		realSpace: constraint.RealSpaceOptions{
			FlatSolvent:    cfg.Constraints.EnforceFlatSolvent,
			FlatSolventCap: cfg.Constraints.FlatSolventCap,
		},
	}, nil
}

// evaluation is the reciprocal-space view of one density: its transform,
// radial profile, scale and residual against the target
type evaluation struct {
	reciprocal []complex128
	calc       fourier3d.Shells
	scale      float64
	residual   float64
}

// evaluate transforms density and scores it against the target
func (r *Reconstructor) evaluate(s *setup, density *models.DensityGrid) evaluation {
	reciprocal := s.bridge.Forward(density.Data)
	calc := s.bridge.RadialProfile(reciprocal)
	scale := s.target.Scale(calc, s.scaleMethod)
	return evaluation{
		reciprocal: reciprocal,
		calc:       calc,
		scale:      scale,
		residual:   convergence.Residual(calc, s.target, scale, r.cfg.Convergence.ChiWeighted),
	}
}

// snapshot is a copy of the lowest-residual state seen in an attempt
type snapshot struct {
	density *models.DensityGrid
	support *models.SupportMask
	eval    evaluation
}

// attempt runs one initialisation to termination or divergence.
//
// Every recorded residual belongs to the density produced by the iteration
// it is recorded for, so a stop always returns the density that met the
// stopping rule.
func (r *Reconstructor) attempt(ctx context.Context, s *setup, attempt int) (attemptOutcome, error) {
	seed := r.cfg.Iterations.RandomSeed
	rng := rand.New(rand.NewPCG(seed, uint64(attempt)))
	state := initialState(s.space, r.cfg.Grid.MaxDimension/2, rng)

	estimator := shrinkwrap.NewEstimator(s.space, s.swParams)
	machine := shrinkwrap.NewMachine(s.schedule)
	tracker := convergence.NewTracker(s.criteria)

	eval := r.evaluate(s, state.Density)
	var best *snapshot
	for {
		// Cancellation is only honoured between iterations
		if ctx.Err() != nil {
			r.logger.Info("reconstruction cancelled", zap.Int("iterations", state.Iteration))
			if best != nil {
				state.Density, state.Support, eval = best.density, best.support, best.eval
			}
			return attemptOutcome{result: r.finish(s, state, eval, tracker, convergence.ReasonCancelled, attempt)}, nil
		}

		if err := r.iterate(s, state, eval, estimator, machine); err != nil {
			return attemptOutcome{}, err
		}
		if machine.Phase() == shrinkwrap.Diverged {
			return attemptOutcome{diverged: true, badMasks: machine.BadMasks(), history: tracker.History()}, nil
		}

		eval = r.evaluate(s, state.Density)
		stop, reason := tracker.Record(eval.residual)
		if best == nil || eval.residual < best.eval.residual {
			best = &snapshot{density: state.Density.Clone(), support: state.Support.Clone(), eval: eval}
		}
		if stop {
			if reason == convergence.ReasonThreshold || reason == convergence.ReasonPlateau {
				machine.Converge()
				state.Converged = true
			}
			state.Phase = machine.Phase()
			return attemptOutcome{result: r.finish(s, state, eval, tracker, reason, attempt)}, nil
		}
	}
}

// initialState fills a sphere of the given radius with uniform random
// density in [0, 1) and starts from a support covering the whole grid.
func initialState(space *grid.Space, radius float64, rng *rand.Rand) *IterationState {
	density := space.NewDensity()
	for i := 0; i < space.N; i++ {
		for j := 0; j < space.N; j++ {
			for k := 0; k < space.N; k++ {
				if space.Radius(i, j, k) <= radius {
					density.Data[space.Index(i, j, k)] = rng.Float64()
				}
			}
		}
	}
	return &IterationState{
		Density: density,
		Support: models.NewSupportMask(space.N, true),
		Scale:   1,
		Phase:   shrinkwrap.Exploring,
	}
}

// iterate advances state by one iteration, starting from eval, the
// evaluation of the current density. eval.reciprocal is overwritten.
func (r *Reconstructor) iterate(s *setup, state *IterationState, eval evaluation, estimator *shrinkwrap.Estimator, machine *shrinkwrap.Machine) error {
	iter := state.Iteration
	cfg := r.cfg

	// Reciprocal-space projection
	s.target.Apply(eval.reciprocal, s.bridge.Shells(), eval.calc, eval.scale, s.amplitude)

	rho, imagRatio := s.bridge.Inverse(eval.reciprocal)
	if imagRatio > cfg.Numerics.ImagTolerance {
		w := models.NumericalInstabilityWarning{Iteration: iter, ImagRatio: imagRatio, Tolerance: cfg.Numerics.ImagTolerance}
		state.Warnings = append(state.Warnings, w)
		r.logger.Warn("numerical instability", zap.Error(w))
		if limit := cfg.Numerics.MaxInstabilityWarnings; limit > 0 && len(state.Warnings) > limit {
			return fmt.Errorf("iteration %d: %d warnings: %w", iter, len(state.Warnings), models.ErrNumericalInstability)
		}
	}

	// Real-space projection
	constraint.Project(rho, state.Support, s.bound, s.realSpace)
	state.Density = &models.DensityGrid{
		Data:      rho,
		N:         state.Density.N,
		VoxelSize: state.Density.VoxelSize,
		Origin:    state.Density.Origin,
	}

	if c := cfg.Iterations.RecenterCadence; c > 0 && iter > 0 && iter%c == 0 && machine.Phase() == shrinkwrap.Exploring {
		shift := constraint.Recenter(rho, state.Support, s.space.N)
		r.logger.Debug("density recentred", zap.Int("iteration", iter), zap.Ints("shift", shift[:]))
	}

	// Periodic support update
	if machine.Due(iter) {
		sigma, fraction := estimator.Sigma(), estimator.Fraction()
		mask, outcome := estimator.Update(state.Density, state.Support, s.bound)
		phase := machine.Observe(outcome)
		if !outcome.Bad() {
			state.Support = mask
			constraint.Project(rho, mask, s.bound, s.realSpace)
		}
		r.logger.Debug("support updated",
			zap.Int("iteration", iter),
			zap.Stringer("outcome", outcome),
			zap.Stringer("phase", phase),
			zap.Float64("sigma", sigma),
			zap.Float64("fraction", fraction),
			zap.Int("support_voxels", state.Support.Count()),
			zap.Float64("residual", eval.residual))
	}

	state.Phase = machine.Phase()
	state.Scale = eval.scale
	state.SupportVolumes = append(state.SupportVolumes, state.Support.Volume(s.space.VoxelVolume()))
	state.Iteration++
	return nil
}

// finish summarises state into a Result. eval must be the evaluation of
// state.Density so the reported profile and residual match the returned map.
func (r *Reconstructor) finish(s *setup, state *IterationState, eval evaluation, tracker *convergence.Tracker, reason convergence.Reason, attempt int) *Result {
	calc, scale, residual := eval.calc, eval.scale, eval.residual
	mean, std := profile.MaskedStats(state.Density, state.Support)

	seed := r.cfg.Iterations.RandomSeed
	runID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("saxsdensity/%d/%d", seed, attempt)))

	volumes := make([]float64, len(state.SupportVolumes))
	copy(volumes, state.SupportVolumes)
	warnings := make([]models.NumericalInstabilityWarning, len(state.Warnings))
	copy(warnings, state.Warnings)

	result := &Result{
		RunID:          runID.String(),
		Density:        state.Density.Clone(),
		Support:        state.Support.Clone(),
		Residuals:      tracker.History(),
		SupportVolumes: volumes,
		Reason:         reason,
		Converged:      state.Converged,
		Iterations:     state.Iteration,
		Seed:           seed,
		FinalProfile:   calc,
		Target:         s.target,
		Warnings:       warnings,
		Summary: Summary{
			Residual:         residual,
			Scale:            scale,
			RadiusOfGyration: profile.RadiusOfGyration(state.Density),
			SupportVolume:    state.Support.Volume(s.space.VoxelVolume()),
			DensityMean:      mean,
			DensityStdDev:    std,
		},
	}

	r.logger.Info("reconstruction finished",
		zap.String("run_id", result.RunID),
		zap.String("reason", string(reason)),
		zap.Int("iterations", result.Iterations),
		zap.Float64("residual", residual),
		zap.Float64("rg", result.Summary.RadiusOfGyration),
		zap.Float64("support_volume", result.Summary.SupportVolume),
		zap.Int("warnings", len(warnings)))
	return result
}
