package search

import (
	"fmt"
	"time"

	"driftsearch/pkg/imagery"
	"driftsearch/pkg/psiphi"
)

// PipelineOptions configures the full stack-to-results run around the
// search specification itself.
type PipelineOptions struct {
	// MaskFlags and MaskExceptions drive the per-frame mask rule. A zero
	// MaskFlags skips per-frame masking.
	MaskFlags      int32
	MaskExceptions []int32

	// GlobalMaskFlags and GlobalMaskThreshold drive the cross-frame mask
	// rule: a pixel flagged in strictly more than the threshold number of
	// frames is invalidated everywhere. A zero GlobalMaskFlags skips it.
	GlobalMaskFlags     int32
	GlobalMaskThreshold int

	// PsiDir and PhiDir, when both set, receive diagnostic dumps of the
	// matched-filter planes.
	PsiDir string
	PhiDir string

	// Engine selects the evaluation device; empty means the CPU engine.
	Engine string

	// Verbose turns on step-by-step progress output.
	Verbose bool
}

// Pipeline runs the complete search: mask preprocessing, psi/phi
// construction, exhaustive grid evaluation, and global ranking.
//
// The steps mirror the data flow of the engine:
//  1. Apply the per-frame and cross-frame mask rules to the stack.
//  2. Convert each frame into psi/phi matched-filter planes.
//  3. Evaluate every (starting pixel, candidate velocity) pair.
//  4. Sort the survivors into the final ranked list.
type Pipeline struct {
	stack   *imagery.ImageStack
	params  *Params
	opts    PipelineOptions
	planes  *psiphi.Planes
	results *Results
}

// NewPipeline creates a pipeline over the given stack. The stack is shared,
// not copied; injections made through stack.Frames() between runs are seen
// by the next Run.
func NewPipeline(stack *imagery.ImageStack, params *Params, opts PipelineOptions) *Pipeline {
	return &Pipeline{stack: stack, params: params, opts: opts}
}

// Run executes the pipeline and returns the ranked results.
func (p *Pipeline) Run() (*Results, error) {
	if p.stack == nil || p.stack.NumImages() == 0 {
		return nil, ErrEmptyStack
	}
	if err := p.params.Validate(); err != nil {
		return nil, err
	}

	engine, err := NewEngine(p.opts.Engine)
	if err != nil {
		return nil, err
	}

	// Step 1: mask preprocessing.
	if p.opts.MaskFlags != 0 {
		p.logf("Step 1: Applying mask flags 0x%x to %d frames...\n", p.opts.MaskFlags, p.stack.NumImages())
		p.stack.ApplyMaskFlags(p.opts.MaskFlags, p.opts.MaskExceptions)
	}
	if p.opts.GlobalMaskFlags != 0 {
		p.logf("Step 1b: Applying global mask (threshold %d)...\n", p.opts.GlobalMaskThreshold)
		p.stack.ApplyGlobalMask(p.opts.GlobalMaskFlags, p.opts.GlobalMaskThreshold)
	}

	// Step 2: matched-filter planes.
	p.logf("Step 2: Building psi/phi planes for %d frames of %dx%d...\n",
		p.stack.NumImages(), p.stack.Width(), p.stack.Height())
	planes, err := psiphi.Build(p.stack)
	if err != nil {
		return nil, fmt.Errorf("failed to build psi/phi planes: %w", err)
	}
	p.planes = planes

	if p.opts.PsiDir != "" && p.opts.PhiDir != "" {
		p.logf("Step 2b: Dumping psi/phi planes to %s and %s...\n", p.opts.PsiDir, p.opts.PhiDir)
		if err := planes.Dump(p.opts.PsiDir, p.opts.PhiDir); err != nil {
			return nil, fmt.Errorf("failed to dump psi/phi planes: %w", err)
		}
	}

	// Step 3: exhaustive evaluation.
	cands := p.params.Candidates()
	p.logf("Step 3: Evaluating %d candidates per pixel over %d pixels (%d workers)...\n",
		len(cands), p.stack.Width()*p.stack.Height(), p.params.Workers)
	start := time.Now()
	trajectories, err := engine.Evaluate(planes, cands, p.params)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	p.logf("Evaluation finished in %.2fs with %d survivors\n", time.Since(start).Seconds(), len(trajectories))

	// Step 4: global ranking.
	p.logf("Step 4: Ranking results...\n")
	p.results = newResults(trajectories, p.params.KeepFraction)
	return p.results, nil
}

// Planes returns the psi/phi planes from the last Run, for diagnostics.
func (p *Pipeline) Planes() *psiphi.Planes { return p.planes }

// Results returns the ranked list from the last Run.
func (p *Pipeline) Results() *Results { return p.results }

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.opts.Verbose {
		fmt.Printf(format, args...)
	}
}
