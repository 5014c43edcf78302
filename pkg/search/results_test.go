package search

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func sampleResults() *Results {
	return newResults([]Trajectory{
		{X: 3, Y: 1, VX: 1, VY: 0, LH: 10, Flux: 100, ObsCount: 5},
		{X: 1, Y: 1, VX: 2, VY: 0, LH: 30, Flux: 300, ObsCount: 5},
		{X: 2, Y: 1, VX: 1, VY: 1, LH: 20, Flux: 200, ObsCount: 5},
		{X: 4, Y: 4, VX: 0, VY: 1, LH: 20, Flux: 250, ObsCount: 4},
	}, 1.0)
}

// TestRanking verifies the total order: likelihood first, then flux on ties
func TestRanking(t *testing.T) {
	all := sampleResults().All()
	wantLH := []float32{30, 20, 20, 10}
	for i, want := range wantLH {
		if all[i].LH != want {
			t.Errorf("rank %d: expected lh %f, got %f", i, want, all[i].LH)
		}
	}
	// The two lh=20 entries break the tie on flux descending.
	if all[1].Flux != 250 || all[2].Flux != 200 {
		t.Errorf("expected flux tie-break 250 before 200, got %f then %f", all[1].Flux, all[2].Flux)
	}
}

// TestTieBreakTotalOrder verifies fully tied statistics fall back to
// coordinates
func TestTieBreakTotalOrder(t *testing.T) {
	r := newResults([]Trajectory{
		{X: 5, Y: 2, LH: 1, Flux: 1, ObsCount: 3},
		{X: 5, Y: 1, LH: 1, Flux: 1, ObsCount: 3},
		{X: 4, Y: 9, LH: 1, Flux: 1, ObsCount: 3},
	}, 1.0)
	all := r.All()
	if all[0].X != 4 || all[1].Y != 1 || all[2].Y != 2 {
		t.Errorf("coordinate tie-break wrong: %v", all)
	}
}

// TestGet verifies slicing and clamping
func TestGet(t *testing.T) {
	r := sampleResults()
	if got := r.Get(1, 2); len(got) != 2 || got[0].LH != 20 {
		t.Errorf("Get(1,2): unexpected slice %v", got)
	}
	if got := r.Get(3, 10); len(got) != 1 {
		t.Errorf("Get(3,10): expected 1 result, got %d", len(got))
	}
	if got := r.Get(99, 5); got != nil {
		t.Errorf("Get past end: expected nil, got %v", got)
	}
	if got := r.Get(-5, 2); len(got) != 2 || got[0].LH != 30 {
		t.Errorf("Get with negative offset: expected clamp to start, got %v", got)
	}
}

// TestKeepFraction verifies truncation of the ranked list
func TestKeepFraction(t *testing.T) {
	trajectories := make([]Trajectory, 10)
	for i := range trajectories {
		trajectories[i] = Trajectory{X: i, LH: float32(i), ObsCount: 1}
	}
	r := newResults(trajectories, 0.5)
	if r.Len() != 5 {
		t.Errorf("expected 5 kept trajectories, got %d", r.Len())
	}
	// Zero means keep everything.
	r = newResults(append([]Trajectory{}, trajectories...), 0)
	if r.Len() != 10 {
		t.Errorf("expected all 10 trajectories with zero fraction, got %d", r.Len())
	}
}

// TestFilter verifies the likelihood band filter
func TestFilter(t *testing.T) {
	r := sampleResults().Filter(15, 25)
	if r.Len() != 2 {
		t.Fatalf("expected 2 trajectories in [15,25], got %d", r.Len())
	}
	for _, tr := range r.All() {
		if tr.LH != 20 {
			t.Errorf("unexpected trajectory %v after filter", tr)
		}
	}
}

// TestSave verifies the on-disk format and the fraction clamp
func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.txt")

	r := sampleResults()
	// Out-of-range fractions clamp to [0,1].
	if err := r.Save(path, 7); err != nil {
		t.Fatalf("Save: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}

	var lh, flux, vx, vy float32
	var x, y, obs int
	if _, err := fmt.Sscanf(lines[0], "%f %f %d %d %f %f %d", &lh, &flux, &x, &y, &vx, &vy, &obs); err != nil {
		t.Fatalf("parse line: %v", err)
	}
	if lh != 30 || flux != 300 || x != 1 || y != 1 || obs != 5 {
		t.Errorf("first line fields wrong: %q", lines[0])
	}

	// A half fraction writes only the upper half of the ranking.
	if err := r.Save(path, 0.5); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if countLines(data) != 2 {
		t.Errorf("expected 2 lines at fraction 0.5, got %d", countLines(data))
	}
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
