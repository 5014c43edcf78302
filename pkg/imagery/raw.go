// Package imagery holds the pixel-plane types the search engine operates on:
// a single float32 plane (RawImage), an integer bit-flag plane (MaskImage),
// the science/variance/mask triple for one exposure (LayeredImage), and the
// time-ordered collection of exposures (ImageStack).
//
// Invalid pixels are marked with the NoData sentinel rather than a parallel
// validity plane; every arithmetic and sampling operation in this package is
// sentinel-aware and propagates NoData.
package imagery

import (
	"fmt"

	"driftsearch/pkg/psf"
)

// NoData marks a pixel with no valid data. Arithmetic touching a NoData cell
// yields NoData; bilinear sampling near one yields NoData.
const NoData float32 = -9999.0

// ErrInvalidShape is returned when plane dimensions disagree or an array does
// not match its declared width and height.
var ErrInvalidShape = fmt.Errorf("imagery: plane dimensions mismatch")

// RawImage is a single width x height float32 plane, stored row-major.
type RawImage struct {
	data   []float32
	width  int
	height int
}

// NewRawImage returns a zero-initialized plane.
func NewRawImage(width, height int) (*RawImage, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrInvalidShape, width, height)
	}
	return &RawImage{
		data:   make([]float32, width*height),
		width:  width,
		height: height,
	}, nil
}

// NewRawImageFromData wraps an existing flat row-major array. The array is
// used directly, not copied; len(data) must equal width*height.
func NewRawImageFromData(data []float32, width, height int) (*RawImage, error) {
	if width < 1 || height < 1 || len(data) != width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d plane", ErrInvalidShape, len(data), width, height)
	}
	return &RawImage{data: data, width: width, height: height}, nil
}

// Width returns the plane width in pixels.
func (r *RawImage) Width() int { return r.width }

// Height returns the plane height in pixels.
func (r *RawImage) Height() int { return r.height }

// Data returns the backing float32 slice. Mutations are visible to the plane.
func (r *RawImage) Data() []float32 { return r.data }

// Clone returns a deep copy of the plane.
func (r *RawImage) Clone() *RawImage {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawImage{data: data, width: r.width, height: r.height}
}

// Contains reports whether integer pixel coordinates lie inside the plane.
func (r *RawImage) Contains(x, y int) bool {
	return x >= 0 && x < r.width && y >= 0 && y < r.height
}

// Pixel returns the value at (x, y), or NoData when out of range.
func (r *RawImage) Pixel(x, y int) float32 {
	if !r.Contains(x, y) {
		return NoData
	}
	return r.data[y*r.width+x]
}

// SetPixel sets the value at (x, y). Out-of-range writes are ignored.
func (r *RawImage) SetPixel(x, y int, v float32) {
	if r.Contains(x, y) {
		r.data[y*r.width+x] = v
	}
}

// AddPixel adds v to the pixel at (x, y). A NoData pixel stays NoData, and
// out-of-range writes are ignored.
func (r *RawImage) AddPixel(x, y int, v float32) {
	if !r.Contains(x, y) {
		return
	}
	idx := y*r.width + x
	if r.data[idx] == NoData {
		return
	}
	r.data[idx] += v
}

// Fill sets every pixel to v.
func (r *RawImage) Fill(v float32) {
	for i := range r.data {
		r.data[i] = v
	}
}

// Interpolate samples the plane at fractional coordinates (x, y) using
// bilinear interpolation over the four integer neighbors. It returns NoData
// when the sample lies outside [0, W-1] x [0, H-1] or when any of the four
// neighbors is NoData; sub-pixel velocities are only resolvable if partial
// neighborhoods never fake a value.
func (r *RawImage) Interpolate(x, y float32) float32 {
	if x < 0 || y < 0 || x > float32(r.width-1) || y > float32(r.height-1) {
		return NoData
	}
	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > r.width-1 {
		x1 = r.width - 1
	}
	if y1 > r.height-1 {
		y1 = r.height - 1
	}

	p00 := r.data[y0*r.width+x0]
	p01 := r.data[y0*r.width+x1]
	p10 := r.data[y1*r.width+x0]
	p11 := r.data[y1*r.width+x1]
	if p00 == NoData || p01 == NoData || p10 == NoData || p11 == NoData {
		return NoData
	}

	xr := x - float32(x0)
	yr := y - float32(y0)
	top := p00 + xr*(p01-p00)
	bottom := p10 + xr*(p11-p10)
	return top + yr*(bottom-top)
}

// Convolve correlates the plane with the PSF in place. The kernel is centered
// on each output pixel and renormalized over the weights whose neighbors are
// in bounds and not NoData, so partially masked neighborhoods keep the gain
// of the full kernel (its Sum).
// A NoData center pixel is preserved as NoData so downstream sampling can
// skip it, and the output is also NoData when every weight is excluded.
func (r *RawImage) Convolve(p *psf.PSF) {
	radius := p.Radius()
	dim := p.Dim()
	out := make([]float32, len(r.data))

	for y := 0; y < r.height; y++ {
		for x := 0; x < r.width; x++ {
			idx := y*r.width + x
			if r.data[idx] == NoData {
				out[idx] = NoData
				continue
			}

			var sum, weight float32
			for ki := 0; ki < dim; ki++ {
				ny := y + ki - radius
				if ny < 0 || ny >= r.height {
					continue
				}
				rowOff := ny * r.width
				for kj := 0; kj < dim; kj++ {
					nx := x + kj - radius
					if nx < 0 || nx >= r.width {
						continue
					}
					v := r.data[rowOff+nx]
					if v == NoData {
						continue
					}
					w := p.Value(ki, kj)
					sum += v * w
					weight += w
				}
			}

			if weight == 0 {
				out[idx] = NoData
			} else {
				out[idx] = sum * p.Sum() / weight
			}
		}
	}

	r.data = out
}
