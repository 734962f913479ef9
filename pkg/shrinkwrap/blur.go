package shrinkwrap

import "math"

// truncate is the kernel half-width in units of sigma
const truncate = 4.0

// gaussianKernel returns a normalised 1D Gaussian kernel of half-width
// ceil(truncate*sigma). A non-positive sigma yields the identity kernel.
func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(math.Ceil(truncate * sigma))
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// Blur convolves a cubic volume of side n with an isotropic Gaussian of
// width sigma voxels, one axis at a time. Boundaries wrap, matching the
// periodicity implied by the Fourier transform.
func Blur(data []float64, n int, sigma float64) []float64 {
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	src := make([]float64, len(data))
	copy(src, data)
	if radius == 0 {
		return src
	}
	dst := make([]float64, len(data))
	line := make([]float64, n)

	for _, stride := range [3]int{1, n, n * n} {
		for base := 0; base < len(src); base++ {
			if (base/stride)%n != 0 {
				continue
			}
			for t := 0; t < n; t++ {
				line[t] = src[base+t*stride]
			}
			for t := 0; t < n; t++ {
				var acc float64
				for o := -radius; o <= radius; o++ {
					s := (t + o) % n
					if s < 0 {
						s += n
					}
					acc += kernel[o+radius] * line[s]
				}
				dst[base+t*stride] = acc
			}
		}
		src, dst = dst, src
	}
	return src
}
