package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"driftsearch/pkg/config"
	"driftsearch/pkg/imagery"
	"driftsearch/pkg/psf"
	"driftsearch/pkg/search"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "driftsearch.yaml", "Path to YAML configuration")
	inputDir := flag.String("input", "", "Directory containing .frame files (science/variance/mask blobs)")
	outputFile := flag.String("output", "", "Results file (overrides config)")
	demo := flag.Bool("demo", false, "Run on a synthetic stack with an injected moving source")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputFile != "" {
		cfg.Output.ResultsFile = *outputFile
	}

	if *inputDir == "" && !*demo {
		flag.Usage()
		os.Exit(1)
	}

	fmt.Println("================================")
	fmt.Println("DRIFTSEARCH: EXHAUSTIVE LINEAR-TRAJECTORY SEARCH OVER AN IMAGE STACK")
	fmt.Println("================================")

	kernel := psf.New(cfg.Processing.PSFSigma)

	var stack *imagery.ImageStack
	if *demo {
		fmt.Println("Building synthetic demo stack...")
		stack, err = demoStack(kernel, cfg)
	} else {
		fmt.Printf("Loading frames from %s...\n", *inputDir)
		stack, err = loadStack(*inputDir, kernel)
	}
	if err != nil {
		log.Fatalf("Failed to build image stack: %v", err)
	}
	stack.BroadcastPSF(kernel)
	fmt.Printf("Loaded %d frames of %dx%d\n", stack.NumImages(), stack.Width(), stack.Height())

	params := &search.Params{
		NumAngles:       cfg.Search.NumAngles,
		NumVelocities:   cfg.Search.NumVelocities,
		MinAngle:        cfg.Search.MinAngle,
		MaxAngle:        cfg.Search.MaxAngle,
		MinVelocity:     cfg.Search.MinVelocity,
		MaxVelocity:     cfg.Search.MaxVelocity,
		MinObserved:     cfg.Search.MinObserved,
		MinLH:           cfg.Search.MinLH,
		ResultsPerPixel: cfg.Search.ResultsPerPixel,
		KeepFraction:    cfg.Search.KeepFraction,
		Workers:         cfg.Processing.Workers,
	}
	opts := search.PipelineOptions{
		MaskFlags:           cfg.Processing.MaskFlags,
		MaskExceptions:      cfg.Processing.MaskExceptions,
		GlobalMaskFlags:     cfg.Processing.GlobalMaskFlags,
		GlobalMaskThreshold: cfg.Processing.GlobalMaskThreshold,
		PsiDir:              cfg.Output.PsiDir,
		PhiDir:              cfg.Output.PhiDir,
		Engine:              cfg.Processing.Engine,
		Verbose:             cfg.Output.Verbose,
	}

	fmt.Println("Starting trajectory search...")
	startTime := time.Now()
	results, err := search.NewPipeline(stack, params, opts).Run()
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	elapsed := time.Since(startTime)

	stats := results.Stats()
	fmt.Printf("\nSearch completed in %.2f seconds!\n", elapsed.Seconds())
	fmt.Printf("Ranked trajectories: %d\n", stats.Count)
	fmt.Printf("Max likelihood: %.3f\n", stats.MaxLH)
	fmt.Printf("Mean likelihood: %.3f (stddev %.3f)\n", stats.MeanLH, stats.StdLH)

	fmt.Println("\nTop trajectories:")
	for _, t := range results.Get(0, 10) {
		fmt.Printf("  %v\n", t)
	}

	if err := results.Save(cfg.Output.ResultsFile, cfg.Output.SaveFraction); err != nil {
		log.Fatalf("Failed to save results: %v", err)
	}
	fmt.Printf("\nResults saved to: %s\n", cfg.Output.ResultsFile)
}

// loadStack reads every .frame file in dir, ordered by the numeric part of
// the filename so frame sequence numbers survive lexicographic quirks.
func loadStack(dir string, kernel *psf.PSF) (*imagery.ImageStack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frameFiles []string
	for _, entry := range entries {
		if strings.ToLower(filepath.Ext(entry.Name())) == ".frame" {
			frameFiles = append(frameFiles, entry.Name())
		}
	}
	if len(frameFiles) == 0 {
		return nil, fmt.Errorf("no .frame files found in input directory")
	}

	sort.Slice(frameFiles, func(i, j int) bool {
		return extractNumber(frameFiles[i]) < extractNumber(frameFiles[j])
	})

	paths := make([]string, len(frameFiles))
	for i, name := range frameFiles {
		paths[i] = filepath.Join(dir, name)
	}
	return imagery.NewImageStackFromFiles(paths, &blobLoader{psf: kernel})
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// demoStack builds a small noisy stack with one injected moving source so a
// full search run can be exercised without any input data.
func demoStack(kernel *psf.PSF, cfg *config.Config) (*imagery.ImageStack, error) {
	const (
		numFrames = 10
		width     = 256
		height    = 256
		noise     = 10.0
		flux      = 2500.0
	)

	rng := rand.New(rand.NewSource(101))
	frames := make([]*imagery.LayeredImage, numFrames)
	for i := range frames {
		// Exposures 0.01 time units apart, so the default velocity grid
		// keeps the source inside the frame across the whole stack.
		frame, err := imagery.NewBlankLayeredImage(width, height, noise*noise, float64(i)*0.01, kernel)
		if err != nil {
			return nil, err
		}
		sci := frame.Science().Data()
		for j := range sci {
			sci[j] = float32(rng.NormFloat64() * noise)
		}
		frames[i] = frame
	}

	stack, err := imagery.NewImageStack(frames)
	if err != nil {
		return nil, err
	}

	// Drop the demo source in the middle of the configured velocity grid.
	v := (cfg.Search.MinVelocity + cfg.Search.MaxVelocity) / 2
	stack.InjectObject(float32(width)/4, float32(height)/2, v, 0, flux)
	fmt.Printf("Injected source at (%d, %d) with vx=%.1f vy=0.0 flux=%.0f\n", width/4, height/2, v, flux)
	return stack, nil
}
