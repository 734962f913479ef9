package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"saxsdensity/internal/logging"
	"saxsdensity/internal/models"
	"saxsdensity/pkg/config"
	"saxsdensity/pkg/export"
	"saxsdensity/pkg/fourier3d"
	"saxsdensity/pkg/grid"
	"saxsdensity/pkg/profile"
	"saxsdensity/pkg/reconstruction"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "saxsdensity",
		Short: "Ab-initio electron density reconstruction from solution scattering profiles",
		Long: `saxsdensity reconstructs a low-resolution 3D electron density map from a
1D small-angle scattering profile by iterative projection between real
and reciprocal space with shrink-wrap support refinement.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newReconstructCmd(), newSimulateSphereCmd(), newRegridCmd(), newInitConfigCmd())
	return root
}

func newReconstructCmd() *cobra.Command {
	var (
		profilePath string
		configPath  string
		outDir      string
		seed        uint64
		maxIter     int
		dmax        float64
		units       string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Reconstruct a density map from a profile CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("seed") {
				cfg.Iterations.RandomSeed = seed
			}
			if flags.Changed("max-iterations") {
				cfg.Iterations.MaxIterations = maxIter
			}
			if flags.Changed("dmax") {
				cfg.Grid.MaxDimension = dmax
			}
			if verbose {
				cfg.Output.Verbose = true
			}

			logger := logging.New(cfg.Output.Verbose, cfg.Output.LogFile)
			defer logger.Sync()

			p, err := readProfile(profilePath, units)
			if err != nil {
				return err
			}

			start := time.Now()
			res, err := reconstruction.NewReconstructor(cfg, logger).Run(cmd.Context(), p)
			if err != nil {
				var diverged *models.DivergedReconstructionError
				if errors.As(err, &diverged) {
					logger.Error("reconstruction diverged; retry with another seed", zap.Int("attempts", diverged.Attempts))
				}
				return err
			}
			if err := export.WriteResult(outDir, res); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished after %d iterations (%s) in %.2f seconds\n",
				res.RunID, res.Iterations, res.Reason, time.Since(start).Seconds())
			fmt.Fprintf(out, "Residual:           %.4g\n", res.Summary.Residual)
			fmt.Fprintf(out, "Radius of gyration: %.2f Å\n", res.Summary.RadiusOfGyration)
			fmt.Fprintf(out, "Support volume:     %.0f Å³\n", res.Summary.SupportVolume)
			fmt.Fprintf(out, "Output written to:  %s\n", outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "profile CSV with columns q, i, sigma")
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "configuration file; defaults are used if it does not exist")
	cmd.Flags().StringVarP(&outDir, "out", "o", "output", "output directory")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&maxIter, "max-iterations", 0, "override the iteration cap")
	cmd.Flags().Float64Var(&dmax, "dmax", 0, "override the maximum particle dimension in Å")
	cmd.Flags().StringVarP(&units, "units", "u", string(profile.PerAngstrom), "q units of the profile: a (1/Å) or nm (1/nm)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func newSimulateSphereCmd() *cobra.Command {
	var (
		radius        float64
		voxel         float64
		oversampling  float64
		sigmaFraction float64
		outPath       string
	)
	cmd := &cobra.Command{
		Use:   "simulate-sphere",
		Short: "Write the simulated profile of a uniform solid sphere",
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := grid.New(2*radius, voxel, oversampling, 0)
			if err != nil {
				return err
			}
			bridge := fourier3d.NewBridge(space)
			p, err := fourier3d.SimulateProfile(bridge, space.SolidSphere(radius), sigmaFraction)
			if err != nil {
				return err
			}
			return withOutput(cmd, outPath, func(w io.Writer) error { return export.WriteProfileCSV(w, p) })
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 25, "sphere radius in Å")
	cmd.Flags().Float64Var(&voxel, "voxel", 3, "voxel size in Å")
	cmd.Flags().Float64Var(&oversampling, "oversampling", 3, "box side over sphere diameter")
	cmd.Flags().Float64Var(&sigmaFraction, "sigma-fraction", fourier3d.DefaultSigmaFraction, "uncertainty as a fraction of I(0)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output CSV, - for stdout")
	return cmd
}

func newRegridCmd() *cobra.Command {
	var (
		profilePath string
		qmax        float64
		points      int
		method      string
		units       string
		outPath     string
	)
	cmd := &cobra.Command{
		Use:   "regrid",
		Short: "Interpolate a profile onto a uniform q grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readProfile(profilePath, units)
			if err != nil {
				return err
			}
			if qmax <= 0 && p.Len() > 0 {
				qmax = p.QMax()
			}
			out, err := profile.Regrid(p, profile.UniformQ(qmax, points), profile.Method(method))
			if err != nil {
				return err
			}
			return withOutput(cmd, outPath, func(w io.Writer) error { return export.WriteProfileCSV(w, out) })
		},
	}
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "profile CSV with columns q, i, sigma")
	cmd.Flags().Float64Var(&qmax, "qmax", 0, "largest q of the new grid; defaults to the profile's")
	cmd.Flags().IntVarP(&points, "points", "n", 501, "number of q samples")
	cmd.Flags().StringVar(&method, "method", string(profile.Cubic), "interpolation: linear or cubic")
	cmd.Flags().StringVarP(&units, "units", "u", string(profile.PerAngstrom), "q units of the profile: a (1/Å) or nm (1/nm); output is always 1/Å")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output CSV, - for stdout")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a configuration file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "c", "config.yaml", "configuration file to create")
	return cmd
}

// readProfile loads and cleans a profile CSV and converts its q to Å⁻¹
func readProfile(path, units string) (*models.ScatteringProfile, error) {
	p, err := export.ReadProfileFile(path)
	if err != nil {
		return nil, err
	}
	return profile.ToAngstrom(p.Clean(), profile.Units(units))
}

// withOutput runs write against stdout for "-" or against the named file
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
