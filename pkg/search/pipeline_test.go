package search

import (
	"math"
	"math/rand"
	"testing"

	"driftsearch/pkg/imagery"
	"driftsearch/pkg/psf"
)

// noisyStack builds a stack of Gaussian background noise with a constant
// variance plane, using a fixed seed so runs are reproducible.
func noisyStack(t *testing.T, seed int64, numFrames, w, h int, noiseSigma, variance float32, times []float64, p *psf.PSF) *imagery.ImageStack {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	frames := make([]*imagery.LayeredImage, numFrames)
	for i := range frames {
		frame, err := imagery.NewBlankLayeredImage(w, h, variance, times[i], p)
		if err != nil {
			t.Fatalf("NewBlankLayeredImage: %v", err)
		}
		sci := frame.Science().Data()
		for j := range sci {
			sci[j] = float32(rng.NormFloat64()) * noiseSigma
		}
		frames[i] = frame
	}
	stack, err := imagery.NewImageStack(frames)
	if err != nil {
		t.Fatalf("NewImageStack: %v", err)
	}
	return stack
}

func sequentialTimes(n int) []float64 {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i)
	}
	return times
}

// TestRecoveryEndToEnd injects a faint moving source into a noisy stack and
// verifies the full pipeline recovers its position and velocity
func TestRecoveryEndToEnd(t *testing.T) {
	times := []float64{0, 2, 3, 4.5, 5, 6, 7, 10, 11, 14}
	kernel := psf.New(1.0)
	stack := noisyStack(t, 42, 10, 100, 100, 10, 5, times, kernel)
	stack.InjectObject(20, 35, 8, 0, 25000)

	params := &Params{
		NumAngles:     10,
		NumVelocities: 10,
		MinAngle:      -0.1,
		MaxAngle:      0.1,
		MinVelocity:   5,
		MaxVelocity:   15,
		MinObserved:   2,
	}
	results, err := NewPipeline(stack, params, PipelineOptions{}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results.Len() == 0 {
		t.Fatal("no trajectories returned")
	}

	top := results.Get(0, 1)[0]
	if top.X < 20 || top.X > 22 {
		t.Errorf("expected top x in [20,22], got %d", top.X)
	}
	if top.Y < 34 || top.Y > 36 {
		t.Errorf("expected top y in [34,36], got %d", top.Y)
	}
	if math.Abs(float64(top.VX)-8) >= 0.1 {
		t.Errorf("expected top vx within 0.1 of 8, got %f", top.VX)
	}
	if math.Abs(float64(top.VY)) >= 0.2 {
		t.Errorf("expected top vy within 0.2 of 0, got %f", top.VY)
	}
	if top.LH <= 3000 {
		t.Errorf("expected top likelihood above 3000, got %f", top.LH)
	}
}

// TestNoSignal verifies a pure-noise stack produces only noise-level
// likelihoods when the variance plane matches the injected noise
func TestNoSignal(t *testing.T) {
	kernel := psf.New(1.0)
	stack := noisyStack(t, 7, 10, 50, 50, 10, 100, sequentialTimes(10), kernel)

	params := &Params{
		NumAngles:     5,
		NumVelocities: 5,
		MinAngle:      0,
		MaxAngle:      6.2832,
		MinVelocity:   0,
		MaxVelocity:   3,
		MinObserved:   5,
	}
	results, err := NewPipeline(stack, params, PipelineOptions{}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// With variance matching the noise, each likelihood is approximately
	// standard normal; the extreme over the whole grid sits near
	// sqrt(2 ln n) ~ 5. Border renormalization widens the tails, so the
	// bound is loose.
	stats := results.Stats()
	if stats.MaxLH >= 20 {
		t.Errorf("pure-noise maximum likelihood %f is signal-level", stats.MaxLH)
	}
}

// TestStationarySource verifies a zero-velocity candidate recovers a
// non-moving source
func TestStationarySource(t *testing.T) {
	kernel := psf.New(1.0)
	stack := noisyStack(t, 13, 5, 64, 64, 1, 1, sequentialTimes(5), kernel)
	stack.InjectObject(32, 32, 0, 0, 500)

	params := &Params{
		NumAngles:     4,
		NumVelocities: 3,
		MinAngle:      0,
		MaxAngle:      6.2832,
		MinVelocity:   0,
		MaxVelocity:   3,
		MinObserved:   3,
	}
	results, err := NewPipeline(stack, params, PipelineOptions{}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	top := results.Get(0, 1)[0]
	if top.X != 32 || top.Y != 32 {
		t.Errorf("expected recovery at (32,32), got (%d,%d)", top.X, top.Y)
	}
	speed := math.Hypot(float64(top.VX), float64(top.VY))
	if speed >= 1 {
		t.Errorf("expected speed below the grid spacing, got %f", speed)
	}
}

// TestDiagonalMotion verifies angle recovery for a source moving at 45
// degrees
func TestDiagonalMotion(t *testing.T) {
	kernel := psf.New(1.0)
	stack := noisyStack(t, 99, 10, 100, 100, 1, 1, sequentialTimes(10), kernel)
	stack.InjectObject(10, 10, 5, 5, 1000)

	params := &Params{
		NumAngles:     8,
		NumVelocities: 3,
		MinAngle:      0,
		MaxAngle:      6.2832,
		MinVelocity:   6,
		MaxVelocity:   9,
		MinObserved:   5,
	}
	results, err := NewPipeline(stack, params, PipelineOptions{}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	top := results.Get(0, 1)[0]
	angleSpacing := 2 * math.Pi / 8
	theta := math.Atan2(float64(top.VY), float64(top.VX))
	if math.Abs(theta-math.Pi/4) > angleSpacing {
		t.Errorf("expected angle within %f of pi/4, got %f", angleSpacing, theta)
	}
	if top.X < 9 || top.X > 11 || top.Y < 9 || top.Y > 11 {
		t.Errorf("expected start near (10,10), got (%d,%d)", top.X, top.Y)
	}
}

// TestEdgeExit verifies a source leaving the frame halfway keeps its
// first-half observations and is still recoverable
func TestEdgeExit(t *testing.T) {
	kernel := psf.New(1.0)
	stack := noisyStack(t, 5, 10, 64, 64, 1, 1, sequentialTimes(10), kernel)
	// vx=4 from x=40: in bounds through frame 5 (x=60), outside from
	// frame 6 (x=64) on.
	stack.InjectObject(40, 32, 4, 0, 1000)

	params := &Params{
		NumAngles:     1,
		NumVelocities: 1,
		MinAngle:      0,
		MaxAngle:      0,
		MinVelocity:   4,
		MaxVelocity:   4,
		MinObserved:   3,
	}
	results, err := NewPipeline(stack, params, PipelineOptions{}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	tr, ok := findResult(results, 40, 32)
	if !ok {
		t.Fatal("trajectory at (40,32) not found")
	}
	// Positions 40+4t stay within [0,63] for t <= 5.
	if tr.ObsCount != 6 {
		t.Errorf("expected 6 in-bounds observations, got %d", tr.ObsCount)
	}
	top := results.Get(0, 1)[0]
	if top.X != 40 || top.Y != 32 {
		t.Errorf("expected the exiting source to still rank first, got (%d,%d)", top.X, top.Y)
	}
}

// TestTwoSources verifies two objects with different velocities both
// survive per-pixel and global selection
func TestTwoSources(t *testing.T) {
	kernel := psf.New(1.0)
	stack := noisyStack(t, 21, 8, 100, 100, 1, 1, sequentialTimes(8), kernel)
	stack.InjectObject(20, 20, 5, 0, 1000)
	stack.InjectObject(20, 70, 0, 5, 1000)

	params := &Params{
		NumAngles:     8,
		NumVelocities: 2,
		MinAngle:      0,
		MaxAngle:      6.2832,
		MinVelocity:   5,
		MaxVelocity:   7,
		MinObserved:   5,
	}
	results, err := NewPipeline(stack, params, PipelineOptions{}).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	foundA, foundB := false, false
	for _, tr := range results.All() {
		if abs(tr.X-20) <= 1 && abs(tr.Y-20) <= 1 && tr.VX > 4 && math.Abs(float64(tr.VY)) < 1 {
			foundA = true
		}
		if abs(tr.X-20) <= 1 && abs(tr.Y-70) <= 1 && tr.VY > 4 && math.Abs(float64(tr.VX)) < 1 {
			foundB = true
		}
	}
	if !foundA {
		t.Error("horizontal source at (20,20) not recovered")
	}
	if !foundB {
		t.Error("vertical source at (20,70) not recovered")
	}
}

// TestDeterminism verifies two searches over identical inputs produce
// identical ranked lists
func TestDeterminism(t *testing.T) {
	kernel := psf.New(1.0)
	params := &Params{
		NumAngles:     4,
		NumVelocities: 4,
		MinAngle:      0,
		MaxAngle:      6.2832,
		MinVelocity:   0,
		MaxVelocity:   4,
		MinObserved:   3,
		Workers:       4,
	}

	run := func() []Trajectory {
		stack := noisyStack(t, 5, 6, 40, 40, 10, 100, sequentialTimes(6), kernel)
		stack.InjectObject(10, 10, 2, 1, 800)
		results, err := NewPipeline(stack, params, PipelineOptions{}).Run()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return results.All()
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("ranked list lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("ranked lists diverge at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

// TestPipelineValidation verifies parameter and stack guards surface the
// right error kinds
func TestPipelineValidation(t *testing.T) {
	kernel := psf.New(1.0)
	stack := noisyStack(t, 3, 3, 16, 16, 1, 1, sequentialTimes(3), kernel)

	bad := &Params{NumAngles: 0, NumVelocities: 1, MinObserved: 1}
	if _, err := NewPipeline(stack, bad, PipelineOptions{}).Run(); err == nil {
		t.Error("expected error for zero-angle grid")
	}

	good := &Params{NumAngles: 1, NumVelocities: 1, MinObserved: 1}
	if _, err := NewPipeline(nil, good, PipelineOptions{}).Run(); err == nil {
		t.Error("expected error for nil stack")
	}

	if _, err := NewPipeline(stack, good, PipelineOptions{Engine: "fpga"}).Run(); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
