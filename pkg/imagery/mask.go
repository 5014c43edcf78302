package imagery

import "fmt"

// MaskImage is a width x height plane of integer bit flags, one entry per
// pixel. Flag semantics (bad column, cosmic ray, saturated, ...) belong to
// the image loader; the core only tests bits against caller-supplied masks.
type MaskImage struct {
	flags  []int32
	width  int
	height int
}

// NewMaskImage returns a zeroed mask plane.
func NewMaskImage(width, height int) (*MaskImage, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrInvalidShape, width, height)
	}
	return &MaskImage{
		flags:  make([]int32, width*height),
		width:  width,
		height: height,
	}, nil
}

// NewMaskImageFromData wraps an existing flat row-major flag array.
func NewMaskImageFromData(flags []int32, width, height int) (*MaskImage, error) {
	if width < 1 || height < 1 || len(flags) != width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d mask", ErrInvalidShape, len(flags), width, height)
	}
	return &MaskImage{flags: flags, width: width, height: height}, nil
}

// Width returns the mask width in pixels.
func (m *MaskImage) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *MaskImage) Height() int { return m.height }

// Data returns the backing flag slice.
func (m *MaskImage) Data() []int32 { return m.flags }

// Flags returns the flag word at (x, y), or 0 when out of range.
func (m *MaskImage) Flags(x, y int) int32 {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return 0
	}
	return m.flags[y*m.width+x]
}

// SetFlags replaces the flag word at (x, y). Out-of-range writes are ignored.
func (m *MaskImage) SetFlags(x, y int, flags int32) {
	if x >= 0 && x < m.width && y >= 0 && y < m.height {
		m.flags[y*m.width+x] = flags
	}
}

// Clone returns a deep copy of the mask.
func (m *MaskImage) Clone() *MaskImage {
	flags := make([]int32, len(m.flags))
	copy(flags, m.flags)
	return &MaskImage{flags: flags, width: m.width, height: m.height}
}
