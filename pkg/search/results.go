package search

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Results is the globally ranked trajectory list produced by a search. The
// order is total: likelihood descending, flux descending, observation count
// descending, then (x, y, vx, vy) ascending, so identical inputs always
// yield identical lists.
type Results struct {
	trajectories []Trajectory
}

// newResults sorts the evaluator output and applies the keep fraction from
// the search specification.
func newResults(trajectories []Trajectory, keepFraction float64) *Results {
	sort.Slice(trajectories, func(i, j int) bool {
		return trajectories[i].betterThan(trajectories[j])
	})
	if keepFraction > 0 && keepFraction < 1 {
		keep := int(keepFraction * float64(len(trajectories)))
		trajectories = trajectories[:keep]
	}
	return &Results{trajectories: trajectories}
}

// Len returns the number of ranked trajectories.
func (r *Results) Len() int { return len(r.trajectories) }

// Get returns a copy of the ranked slice [offset, offset+count). Ranges
// reaching past the end are truncated; a fully out-of-range request returns
// an empty slice.
func (r *Results) Get(offset, count int) []Trajectory {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(r.trajectories) || count <= 0 {
		return nil
	}
	end := offset + count
	if end > len(r.trajectories) {
		end = len(r.trajectories)
	}
	out := make([]Trajectory, end-offset)
	copy(out, r.trajectories[offset:end])
	return out
}

// All returns a copy of the full ranked list.
func (r *Results) All() []Trajectory {
	return r.Get(0, len(r.trajectories))
}

// Filter returns a new Results keeping only trajectories with likelihood in
// [minLH, maxLH]. The post-processing stage drops implausibly bright hits
// the same way.
func (r *Results) Filter(minLH, maxLH float32) *Results {
	kept := make([]Trajectory, 0, len(r.trajectories))
	for _, t := range r.trajectories {
		if t.LH >= minLH && t.LH <= maxLH {
			kept = append(kept, t)
		}
	}
	return &Results{trajectories: kept}
}

// Save writes the top fraction of the ranked list to path as text, one
// trajectory per line: "lh flux x y vx vy obs_count". The fraction is
// clamped to [0, 1]; 1 writes everything.
func (r *Results) Save(path string, fraction float64) error {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	count := int(fraction * float64(len(r.trajectories)))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, t := range r.trajectories[:count] {
		fmt.Fprintf(w, "%f %f %d %d %f %f %d\n", t.LH, t.Flux, t.X, t.Y, t.VX, t.VY, t.ObsCount)
	}
	return w.Flush()
}

// Stats summarizes the likelihood distribution of the ranked list.
type Stats struct {
	Count  int
	MaxLH  float64
	MeanLH float64
	StdLH  float64
}

// Stats computes the summary used by the verbose pipeline output and by the
// no-signal sanity checks.
func (r *Results) Stats() Stats {
	if len(r.trajectories) == 0 {
		return Stats{}
	}
	lhs := make([]float64, len(r.trajectories))
	for i, t := range r.trajectories {
		lhs[i] = float64(t.LH)
	}
	mean, std := stat.MeanStdDev(lhs, nil)
	return Stats{
		Count:  len(r.trajectories),
		MaxLH:  float64(r.trajectories[0].LH),
		MeanLH: mean,
		StdLH:  std,
	}
}
