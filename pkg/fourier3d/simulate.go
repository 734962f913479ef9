package fourier3d

import (
	"fmt"

	"saxsdensity/internal/models"
)

// DefaultSigmaFraction sets simulated uncertainties to 3% of I(0).
const DefaultSigmaFraction = 0.03

// SimulateProfile computes the scattering profile of a density map on the
// bridge's grid. Only shells whose centre lies below the largest axis
// frequency are reported, since shells beyond it are only partially
// sampled by the cube. Each point receives sigma = sigmaFraction * I(0).
func SimulateProfile(b *Bridge, density *models.DensityGrid, sigmaFraction float64) (*models.ScatteringProfile, error) {
	if density.N != b.space.N {
		return nil, fmt.Errorf("density grid has side %d, bridge expects %d", density.N, b.space.N)
	}
	if sigmaFraction <= 0 {
		sigmaFraction = DefaultSigmaFraction
	}

	shells := b.RadialProfile(b.Forward(density.Data))
	qmax := b.space.QMaxAxis()

	var points []models.Point
	for i, q := range shells.Q {
		if !shells.Valid[i] || q >= qmax {
			continue
		}
		points = append(points, models.Point{Q: q, I: shells.I[i]})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no shells below qmax %.4f", qmax)
	}
	sigma := points[0].I * sigmaFraction
	for i := range points {
		points[i].Sigma = sigma
	}
	return &models.ScatteringProfile{Points: points}, nil
}
