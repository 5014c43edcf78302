// Package search implements the exhaustive trajectory search: for every
// starting pixel and every candidate velocity it accumulates the psi/phi
// planes along the hypothesized line, scores the co-added detection, keeps
// the best K hypotheses per pixel and ranks the survivors globally.
package search

import "fmt"

// Trajectory is one scored linear-motion hypothesis: the starting pixel at
// t=0, the velocity in pixels per unit time, and the statistics accumulated
// over the frames that contributed.
type Trajectory struct {
	// X, Y are the starting pixel at the first frame.
	X, Y int

	// VX, VY are the velocity components in pixels per unit time.
	VX, VY float32

	// LH is the co-added likelihood, sum(psi)/sqrt(sum(phi)) over the
	// contributing frames.
	LH float32

	// Flux is the co-added flux estimate, sum(psi)/sum(phi).
	Flux float32

	// ObsCount is the number of frames whose sampled pixel was in bounds
	// and not NoData.
	ObsCount int
}

func (t Trajectory) String() string {
	return fmt.Sprintf("lh: %.4f flux: %.4f x: %d y: %d vx: %.4f vy: %.4f obs: %d",
		t.LH, t.Flux, t.X, t.Y, t.VX, t.VY, t.ObsCount)
}

// betterThan reports whether a ranks strictly above b in the result order:
// likelihood descending, then flux descending, then observation count
// descending, then (x, y, vx, vy) ascending. The chain is total, so equal
// inputs always produce the same ranked list.
func (t Trajectory) betterThan(o Trajectory) bool {
	if t.LH != o.LH {
		return t.LH > o.LH
	}
	if t.Flux != o.Flux {
		return t.Flux > o.Flux
	}
	if t.ObsCount != o.ObsCount {
		return t.ObsCount > o.ObsCount
	}
	if t.X != o.X {
		return t.X < o.X
	}
	if t.Y != o.Y {
		return t.Y < o.Y
	}
	if t.VX != o.VX {
		return t.VX < o.VX
	}
	return t.VY < o.VY
}
