package profile

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"saxsdensity/internal/models"
)

// RadiusOfGyration returns the density-weighted RMS distance of the map from
// its centre of mass, in Å. Negative voxels are ignored. An empty map yields 0.
func RadiusOfGyration(g *models.DensityGrid) float64 {
	n := g.N
	var total float64
	var com [3]float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				v := g.At(i, j, k)
				if v <= 0 {
					continue
				}
				total += v
				com[0] += v * float64(i)
				com[1] += v * float64(j)
				com[2] += v * float64(k)
			}
		}
	}
	if total == 0 {
		return 0
	}
	for a := range com {
		com[a] /= total
	}

	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				v := g.At(i, j, k)
				if v <= 0 {
					continue
				}
				dx, dy, dz := float64(i)-com[0], float64(j)-com[1], float64(k)-com[2]
				sum += v * (dx*dx + dy*dy + dz*dz)
			}
		}
	}
	return math.Sqrt(sum/total) * g.VoxelSize
}

// MaskedStats returns the mean and standard deviation of density over the
// voxels inside mask. A nil mask selects every voxel.
func MaskedStats(g *models.DensityGrid, mask *models.SupportMask) (mean, std float64) {
	values := make([]float64, 0, len(g.Data))
	for i, v := range g.Data {
		if mask == nil || mask.Data[i] {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	if len(values) == 1 {
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}
