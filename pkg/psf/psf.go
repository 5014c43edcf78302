// Package psf provides the point spread function kernels used to match-filter
// image planes before trajectory evaluation. A PSF is a square, odd-sided grid
// of float32 weights; it is immutable once constructed so a kernel can be
// shared safely between frames and between the science and variance paths.
package psf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidShape is returned when a kernel array is not square or has an
// even side length.
var ErrInvalidShape = fmt.Errorf("psf: kernel must be square with odd dimensions")

// PSF is a discretized point spread function.
//
// The kernel is stored row-major with side length Dim. Radius is (Dim-1)/2,
// so the center weight sits at (Radius, Radius). Sum is the total weight,
// retained at construction time because the renormalizing convolution of
// the psi and phi planes needs it without rescanning the kernel.
type PSF struct {
	dim    int
	radius int
	kernel []float32
	sum    float32
}

// New builds a PSF by discretizing an isotropic 2D Gaussian with the given
// standard deviation (in pixels) onto a square grid. The grid is sized to
// cover at least three sigma on each side of the center, with an odd side
// length so the kernel has a well-defined center pixel. The discrete weights
// are normalized to sum to 1.
func New(sigma float64) *PSF {
	if sigma <= 0 {
		// A degenerate PSF is a single unit pixel.
		return &PSF{dim: 1, radius: 0, kernel: []float32{1}, sum: 1}
	}

	radius := int(math.Ceil(3.0 * sigma))
	dim := 2*radius + 1

	// Accumulate in float64 and narrow at the end so the normalization is
	// as exact as the float32 grid allows.
	weights := make([]float64, dim*dim)
	twoSigmaSq := 2.0 * sigma * sigma
	for i := 0; i < dim; i++ {
		dy := float64(i - radius)
		for j := 0; j < dim; j++ {
			dx := float64(j - radius)
			weights[i*dim+j] = math.Exp(-(dx*dx + dy*dy) / twoSigmaSq)
		}
	}

	total := floats.Sum(weights)
	kernel := make([]float32, dim*dim)
	var sum float32
	for i, w := range weights {
		kernel[i] = float32(w / total)
		sum += kernel[i]
	}

	return &PSF{dim: dim, radius: radius, kernel: kernel, sum: sum}
}

// NewFromKernel builds a PSF from an explicit 2D weight array. The array must
// be square with an odd side length; otherwise a wrapped ErrInvalidShape is
// returned. The input is copied, so the caller keeps ownership of its array.
func NewFromKernel(k [][]float32) (*PSF, error) {
	dim := len(k)
	if dim == 0 || dim%2 == 0 {
		return nil, fmt.Errorf("%w: got %d rows", ErrInvalidShape, dim)
	}
	kernel := make([]float32, 0, dim*dim)
	var sum float32
	for i, row := range k {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidShape, i, len(row), dim)
		}
		for _, w := range row {
			kernel = append(kernel, w)
			sum += w
		}
	}
	return &PSF{dim: dim, radius: (dim - 1) / 2, kernel: kernel, sum: sum}, nil
}

// Dim returns the kernel side length.
func (p *PSF) Dim() int { return p.dim }

// Radius returns (Dim-1)/2.
func (p *PSF) Radius() int { return p.radius }

// Size returns the number of kernel entries, Dim*Dim.
func (p *PSF) Size() int { return p.dim * p.dim }

// Sum returns the total kernel weight.
func (p *PSF) Sum() float32 { return p.sum }

// Value returns the kernel weight at row i, column j in kernel coordinates.
// Out-of-range queries return 0.
func (p *PSF) Value(i, j int) float32 {
	if i < 0 || i >= p.dim || j < 0 || j >= p.dim {
		return 0
	}
	return p.kernel[i*p.dim+j]
}

// Kernel returns a copy of the flat row-major kernel.
func (p *PSF) Kernel() []float32 {
	out := make([]float32, len(p.kernel))
	copy(out, p.kernel)
	return out
}

// Squared returns a new PSF whose weights are the element-wise squares of
// this one. The phi plane is convolved with the squared kernel because the
// matched-filter denominator propagates variance through the filter weights.
func (p *PSF) Squared() *PSF {
	kernel := make([]float32, len(p.kernel))
	var sum float32
	for i, w := range p.kernel {
		kernel[i] = w * w
		sum += kernel[i]
	}
	return &PSF{dim: p.dim, radius: p.radius, kernel: kernel, sum: sum}
}

func (p *PSF) String() string {
	return fmt.Sprintf("PSF{dim=%d, radius=%d, sum=%f}", p.dim, p.radius, p.sum)
}
