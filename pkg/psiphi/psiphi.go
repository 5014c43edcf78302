// Package psiphi converts a preprocessed image stack into the matched-filter
// planes the trajectory evaluator samples: for each frame, a numerator plane
// psi = convolve(science/variance, psf) and a denominator plane
// phi = convolve(1/variance, psf^2).
//
// The pair is a sufficient statistic for a linear trajectory: the co-added
// flux along a candidate is sum(psi)/sum(phi) and the co-added likelihood is
// sum(psi)/sqrt(sum(phi)).
package psiphi

import (
	"fmt"

	"driftsearch/pkg/imagery"
)

// Planes holds the per-frame psi and phi planes plus the relative time
// vector, everything the evaluator needs from the stack.
type Planes struct {
	Psi    []*imagery.RawImage
	Phi    []*imagery.RawImage
	Times  []float32
	Width  int
	Height int
}

// NumFrames returns the number of frames in the plane set.
func (p *Planes) NumFrames() int { return len(p.Psi) }

// Build computes psi and phi for every frame of the stack. The stack is not
// mutated; each frame's planes are cloned before division and convolution.
//
// Per frame:
//   - psi: science/variance with NoData propagation (masked science or
//     non-positive variance yields NoData), convolved with the frame PSF.
//     A NoData pixel stays NoData through the convolution, so the evaluator
//     can skip it; valid pixels renormalize over their valid neighbors.
//   - phi: 1/variance with masked or non-positive-variance pixels set to 0,
//     convolved with the squared PSF. Masked pixels contribute zero weight
//     rather than poisoning the denominator.
func Build(stack *imagery.ImageStack) (*Planes, error) {
	if stack == nil || stack.NumImages() == 0 {
		return nil, fmt.Errorf("psiphi: cannot build planes from an empty stack")
	}

	frames := stack.Frames()
	planes := &Planes{
		Psi:    make([]*imagery.RawImage, len(frames)),
		Phi:    make([]*imagery.RawImage, len(frames)),
		Times:  stack.Times(),
		Width:  stack.Width(),
		Height: stack.Height(),
	}

	for i, frame := range frames {
		sci := frame.Science().Data()
		vari := frame.Variance().Data()

		psiData := make([]float32, len(sci))
		phiData := make([]float32, len(sci))
		for j := range sci {
			if sci[j] == imagery.NoData || vari[j] <= 0 {
				psiData[j] = imagery.NoData
				phiData[j] = 0
				continue
			}
			psiData[j] = sci[j] / vari[j]
			phiData[j] = 1.0 / vari[j]
		}

		psi, err := imagery.NewRawImageFromData(psiData, planes.Width, planes.Height)
		if err != nil {
			return nil, fmt.Errorf("failed to build psi plane %d: %w", i, err)
		}
		phi, err := imagery.NewRawImageFromData(phiData, planes.Width, planes.Height)
		if err != nil {
			return nil, fmt.Errorf("failed to build phi plane %d: %w", i, err)
		}

		psi.Convolve(frame.PSF())
		phi.Convolve(frame.PSF().Squared())

		planes.Psi[i] = psi
		planes.Phi[i] = phi
	}

	return planes, nil
}
