package imagery

import (
	"fmt"

	"driftsearch/pkg/psf"
)

// FrameLoader loads a single exposure from external storage. FITS parsing
// and calibration live outside the core; the search engine only sees the
// planes a loader hands back.
type FrameLoader interface {
	Load(path string) (*LayeredImage, error)
}

// ImageStack is a time-ordered sequence of LayeredImages sharing identical
// dimensions. Frame times are exposed as offsets from the first frame, so
// the trajectory evaluator always works with t[0] = 0.
//
// Frames returns the frames by reference and mutations through those
// references are visible to the stack. That is deliberate: the
// inject-and-research workflow adds a synthetic object to the shared frames
// and runs the search again on the same stack.
type ImageStack struct {
	frames []*LayeredImage
	width  int
	height int
}

// NewImageStack builds a stack from frames that all share the same
// dimensions. An empty frame list or a dimension mismatch is a wrapped
// ErrInvalidShape.
func NewImageStack(frames []*LayeredImage) (*ImageStack, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: empty frame list", ErrInvalidShape)
	}
	width := frames[0].Width()
	height := frames[0].Height()
	for i, f := range frames {
		if f.Width() != width || f.Height() != height {
			return nil, fmt.Errorf("%w: frame %d is %dx%d, stack is %dx%d",
				ErrInvalidShape, i, f.Width(), f.Height(), width, height)
		}
	}
	return &ImageStack{frames: frames, width: width, height: height}, nil
}

// NewImageStackFromFiles loads each path through the loader and builds a
// stack from the results, preserving path order.
func NewImageStackFromFiles(paths []string, loader FrameLoader) (*ImageStack, error) {
	frames := make([]*LayeredImage, 0, len(paths))
	for _, path := range paths {
		frame, err := loader.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load frame %s: %w", path, err)
		}
		frames = append(frames, frame)
	}
	return NewImageStack(frames)
}

// Width returns the stack width in pixels.
func (s *ImageStack) Width() int { return s.width }

// Height returns the stack height in pixels.
func (s *ImageStack) Height() int { return s.height }

// NumImages returns the number of frames.
func (s *ImageStack) NumImages() int { return len(s.frames) }

// Frames returns the shared frame slice.
func (s *ImageStack) Frames() []*LayeredImage { return s.frames }

// SetTimes overrides every frame timestamp. The length must match the frame
// count.
func (s *ImageStack) SetTimes(times []float64) error {
	if len(times) != len(s.frames) {
		return fmt.Errorf("%w: %d times for %d frames", ErrInvalidShape, len(times), len(s.frames))
	}
	for i, t := range times {
		s.frames[i].SetTime(t)
	}
	return nil
}

// Times returns the frame times as float32 offsets from the first frame, so
// the first entry is always 0.
func (s *ImageStack) Times() []float32 {
	times := make([]float32, len(s.frames))
	t0 := s.frames[0].Time()
	for i, f := range s.frames {
		times[i] = float32(f.Time() - t0)
	}
	return times
}

// ApplyMaskFlags applies the per-frame mask rule to every frame.
func (s *ImageStack) ApplyMaskFlags(flagMask int32, exceptions []int32) {
	for _, f := range s.frames {
		f.ApplyMaskFlags(flagMask, exceptions)
	}
}

// ApplyGlobalMask sets a pixel to NoData in every frame when more than
// threshold frames have a mask hit for flagMask at that pixel. The
// comparison is strictly greater-than: a pixel flagged in exactly threshold
// frames survives.
func (s *ImageStack) ApplyGlobalMask(flagMask int32, threshold int) {
	counts := make([]int, s.width*s.height)
	for _, f := range s.frames {
		mask := f.Mask().Data()
		for i, flags := range mask {
			if flags&flagMask != 0 {
				counts[i]++
			}
		}
	}
	for i, c := range counts {
		if c <= threshold {
			continue
		}
		x := i % s.width
		y := i / s.width
		for _, f := range s.frames {
			f.Science().SetPixel(x, y, NoData)
		}
	}
}

// ConvolvePSF convolves every frame's science plane with its attached PSF.
func (s *ImageStack) ConvolvePSF() {
	for _, f := range s.frames {
		f.ConvolveSciencePSF()
	}
}

// BroadcastPSF attaches one PSF to every frame. Most nights are searched
// with a single seeing estimate even though per-frame PSFs are supported.
func (s *ImageStack) BroadcastPSF(p *psf.PSF) {
	for _, f := range s.frames {
		f.SetPSF(p)
	}
}

// InjectObject adds a synthetic source moving at (vx, vy) pixels per unit
// time from starting position (x, y) at the first frame, placing it at its
// predicted position in every frame.
func (s *ImageStack) InjectObject(x, y, vx, vy, flux float32) {
	times := s.Times()
	for i, f := range s.frames {
		f.AddObject(x+vx*times[i], y+vy*times[i], flux)
	}
}
