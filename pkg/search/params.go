package search

import (
	"fmt"
	"math"
	"runtime"
)

// ErrBadSearchSpec is returned when the search parameters do not describe a
// valid candidate grid.
var ErrBadSearchSpec = fmt.Errorf("search: invalid search specification")

// Params is the search specification: the velocity-magnitude and angle grids
// expanded into candidate velocities, the per-pixel retention count, and the
// filtering predicates applied during evaluation.
type Params struct {
	// NumAngles and NumVelocities set the grid resolution. The candidate
	// velocities are the Cartesian product of NumVelocities magnitudes
	// stepped from MinVelocity toward MaxVelocity and NumAngles angles
	// stepped from MinAngle toward MaxAngle, upper bounds exclusive.
	NumAngles     int
	NumVelocities int

	// MinAngle and MaxAngle bound the trajectory angle in radians relative
	// to the +x axis.
	MinAngle float32
	MaxAngle float32

	// MinVelocity and MaxVelocity bound the velocity magnitude in pixels
	// per unit time.
	MinVelocity float32
	MaxVelocity float32

	// MinObserved is the minimum number of contributing frames a trajectory
	// needs to be retained.
	MinObserved int

	// MinLH drops trajectories below this likelihood. Zero keeps everything
	// the observation-count filter allows.
	MinLH float32

	// ResultsPerPixel is K, the number of trajectories each starting pixel
	// retains. Defaults to 8 when zero.
	ResultsPerPixel int

	// KeepFraction is the fraction of the globally sorted candidates that
	// survive selection. Values outside [0, 1] are clamped; zero means
	// keep everything.
	KeepFraction float64

	// Workers is the number of evaluation goroutines. Defaults to
	// runtime.NumCPU() when zero or negative.
	Workers int
}

// Validate checks the grid bounds and fills in defaulted fields. It returns
// a wrapped ErrBadSearchSpec describing the first problem found.
func (p *Params) Validate() error {
	if p.NumVelocities < 1 {
		return fmt.Errorf("%w: need at least one velocity, got %d", ErrBadSearchSpec, p.NumVelocities)
	}
	if p.NumAngles < 1 {
		return fmt.Errorf("%w: need at least one angle, got %d", ErrBadSearchSpec, p.NumAngles)
	}
	if p.MinVelocity > p.MaxVelocity {
		return fmt.Errorf("%w: velocity bounds inverted (%f > %f)", ErrBadSearchSpec, p.MinVelocity, p.MaxVelocity)
	}
	if p.MinAngle > p.MaxAngle {
		return fmt.Errorf("%w: angle bounds inverted (%f > %f)", ErrBadSearchSpec, p.MinAngle, p.MaxAngle)
	}
	if p.MinObserved < 1 {
		return fmt.Errorf("%w: minimum observations must be at least 1, got %d", ErrBadSearchSpec, p.MinObserved)
	}
	if p.ResultsPerPixel == 0 {
		p.ResultsPerPixel = 8
	}
	if p.ResultsPerPixel < 1 {
		return fmt.Errorf("%w: results per pixel must be at least 1, got %d", ErrBadSearchSpec, p.ResultsPerPixel)
	}
	if p.KeepFraction < 0 {
		p.KeepFraction = 0
	}
	if p.KeepFraction > 1 {
		p.KeepFraction = 1
	}
	if p.Workers < 1 {
		p.Workers = runtime.NumCPU()
	}
	return nil
}

// Candidate is one velocity hypothesis shared by every starting pixel.
type Candidate struct {
	VX, VY float32
}

// Candidates expands the grid into the full candidate list, angles in the
// outer loop and magnitudes in the inner loop. The list length is always
// NumAngles*NumVelocities.
func (p *Params) Candidates() []Candidate {
	angles := gridValues(p.MinAngle, p.MaxAngle, p.NumAngles)
	velocities := gridValues(p.MinVelocity, p.MaxVelocity, p.NumVelocities)

	cands := make([]Candidate, 0, len(angles)*len(velocities))
	for _, theta := range angles {
		sin, cos := math.Sincos(float64(theta))
		for _, v := range velocities {
			cands = append(cands, Candidate{
				VX: v * float32(cos),
				VY: v * float32(sin),
			})
		}
	}
	return cands
}

// gridValues returns n values starting at lo with step (hi-lo)/n. The upper
// bound is exclusive, so a grid over [0, vmax) always carries an exact zero
// and integer bounds land exactly on integer grid points.
func gridValues(lo, hi float32, n int) []float32 {
	out := make([]float32, n)
	step := (hi - lo) / float32(n)
	for i := range out {
		out[i] = lo + float32(i)*step
	}
	return out
}
