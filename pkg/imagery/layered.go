package imagery

import (
	"fmt"
	"math"

	"driftsearch/pkg/psf"
)

// LayeredImage bundles the three planes of one exposure (science, variance,
// mask) with its timestamp and the PSF of that exposure. The timestamp unit
// is opaque to the core; it only has to be consistent across a stack.
//
// Invariants: all three planes share identical dimensions, and after
// ApplyMaskFlags a flagged pixel has NoData in the science plane.
type LayeredImage struct {
	science  *RawImage
	variance *RawImage
	mask     *MaskImage
	time     float64
	psf      *psf.PSF
}

// NewLayeredImage builds a frame from its planes. All planes must share the
// same dimensions or a wrapped ErrInvalidShape is returned.
func NewLayeredImage(science, variance *RawImage, mask *MaskImage, time float64, p *psf.PSF) (*LayeredImage, error) {
	if science == nil || variance == nil || mask == nil {
		return nil, fmt.Errorf("%w: nil plane", ErrInvalidShape)
	}
	if variance.Width() != science.Width() || variance.Height() != science.Height() ||
		mask.Width() != science.Width() || mask.Height() != science.Height() {
		return nil, fmt.Errorf("%w: science %dx%d, variance %dx%d, mask %dx%d",
			ErrInvalidShape,
			science.Width(), science.Height(),
			variance.Width(), variance.Height(),
			mask.Width(), mask.Height())
	}
	if p == nil {
		p = psf.New(0)
	}
	return &LayeredImage{science: science, variance: variance, mask: mask, time: time, psf: p}, nil
}

// NewBlankLayeredImage builds a frame with zeroed planes, a constant variance
// and a zeroed mask. Used by tests and the synthetic demo stack.
func NewBlankLayeredImage(width, height int, variance float32, time float64, p *psf.PSF) (*LayeredImage, error) {
	sci, err := NewRawImage(width, height)
	if err != nil {
		return nil, err
	}
	vari, err := NewRawImage(width, height)
	if err != nil {
		return nil, err
	}
	vari.Fill(variance)
	mask, err := NewMaskImage(width, height)
	if err != nil {
		return nil, err
	}
	return NewLayeredImage(sci, vari, mask, time, p)
}

// Science returns the science plane. The plane is shared, not copied.
func (l *LayeredImage) Science() *RawImage { return l.science }

// Variance returns the variance plane.
func (l *LayeredImage) Variance() *RawImage { return l.variance }

// Mask returns the mask plane.
func (l *LayeredImage) Mask() *MaskImage { return l.mask }

// Width returns the frame width in pixels.
func (l *LayeredImage) Width() int { return l.science.Width() }

// Height returns the frame height in pixels.
func (l *LayeredImage) Height() int { return l.science.Height() }

// PixelsPerImage returns the number of pixels in one plane.
func (l *LayeredImage) PixelsPerImage() int { return l.science.Width() * l.science.Height() }

// Time returns the raw frame timestamp.
func (l *LayeredImage) Time() float64 { return l.time }

// SetTime overrides the frame timestamp.
func (l *LayeredImage) SetTime(t float64) { l.time = t }

// PSF returns the PSF attached to this frame.
func (l *LayeredImage) PSF() *psf.PSF { return l.psf }

// SetPSF attaches a new PSF to the frame.
func (l *LayeredImage) SetPSF(p *psf.PSF) { l.psf = p }

// SetScience replaces the science plane; dimensions must match.
func (l *LayeredImage) SetScience(p *RawImage) error {
	if p.Width() != l.Width() || p.Height() != l.Height() {
		return fmt.Errorf("%w: science %dx%d, frame %dx%d", ErrInvalidShape, p.Width(), p.Height(), l.Width(), l.Height())
	}
	l.science = p
	return nil
}

// SetVariance replaces the variance plane; dimensions must match.
func (l *LayeredImage) SetVariance(p *RawImage) error {
	if p.Width() != l.Width() || p.Height() != l.Height() {
		return fmt.Errorf("%w: variance %dx%d, frame %dx%d", ErrInvalidShape, p.Width(), p.Height(), l.Width(), l.Height())
	}
	l.variance = p
	return nil
}

// SetMask replaces the mask plane; dimensions must match.
func (l *LayeredImage) SetMask(m *MaskImage) error {
	if m.Width() != l.Width() || m.Height() != l.Height() {
		return fmt.Errorf("%w: mask %dx%d, frame %dx%d", ErrInvalidShape, m.Width(), m.Height(), l.Width(), l.Height())
	}
	l.mask = m
	return nil
}

// AddObject injects a synthetic point source near fractional position (x, y)
// with the given total flux, adding flux*psf(i-cx, j-cy) over the PSF
// footprint, where (cx, cy) is the pixel nearest to (x, y); the kernel is
// not shifted by the sub-pixel remainder. Used by recovery experiments: inject a known
// source, search, and confirm it comes back.
func (l *LayeredImage) AddObject(x, y, flux float32) {
	radius := l.psf.Radius()
	dim := l.psf.Dim()
	cx := int(math.Round(float64(x)))
	cy := int(math.Round(float64(y)))
	for ki := 0; ki < dim; ki++ {
		py := cy + ki - radius
		for kj := 0; kj < dim; kj++ {
			px := cx + kj - radius
			l.science.AddPixel(px, py, flux*l.psf.Value(ki, kj))
		}
	}
}

// ApplyMaskFlags sets science pixels to NoData wherever the mask word ANDed
// with flagMask is non-zero and the ANDed value is not one of the exceptions.
func (l *LayeredImage) ApplyMaskFlags(flagMask int32, exceptions []int32) {
	width := l.Width()
	height := l.Height()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			hit := l.mask.Flags(x, y) & flagMask
			if hit == 0 {
				continue
			}
			excepted := false
			for _, e := range exceptions {
				if hit == e {
					excepted = true
					break
				}
			}
			if !excepted {
				l.science.SetPixel(x, y, NoData)
			}
		}
	}
}

// ConvolveSciencePSF convolves the science plane in place with the frame PSF.
func (l *LayeredImage) ConvolveSciencePSF() {
	l.science.Convolve(l.psf)
}
