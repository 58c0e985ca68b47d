// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// blockcheck instantiates tensor blocks with demonstration options and checks their declared partial
// derivatives against central finite differences, printing a report.
//
// Usage:
//
//	blockcheck [-blocks=min,reorder,...] [-seed=42] [-step=1e-6] [-tol=1e-5] [-parallel=N] [-csv=report.csv]
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gomlx/tensorblocks/internal/workerspool"
	"github.com/gomlx/tensorblocks/pkg/blocks"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagBlocks = xslices.Flag("blocks", nil,
		fmt.Sprintf("Comma-separated list of blocks to check. Default is all of %s.", strings.Join(demoNames(), ", ")),
		func(name string) (string, error) {
			_, err := findDemo(name)
			return name, err
		})
	flagSeed     = flag.Uint64("seed", 42, "Seed for the random inputs.")
	flagStep     = flag.Float64("step", blocks.DefaultCheckStep, "Finite-differences step.")
	flagTol      = flag.Float64("tol", 1e-5, "Tolerance for the difference between declared partials and finite differences.")
	flagParallel = flag.Int("parallel", runtime.NumCPU(),
		"Number of blocks checked in parallel. 0 checks them sequentially, -1 checks all at once.")
	flagProgress = flag.Bool("progress", true, "Display a progress bar while checking.")
	flagCSV      = flag.String("csv", "", "If set, also writes the per-partial results to this CSV file.")
)

// result of checking one block.
type result struct {
	demo    demo
	block   blocks.Block
	checks  []blocks.PartialCheck
	err     error
	elapsed time.Duration
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'blockcheck -help'.", flag.Args())
		os.Exit(1)
	}

	selected := demos
	if len(*flagBlocks) > 0 {
		selected = xslices.Map(*flagBlocks, func(name string) demo { return must.M1(findDemo(name)) })
	}
	runID := uuid.NewString()
	klog.V(1).Infof("blockcheck run %s: checking %d blocks", runID, len(selected))

	start := time.Now()
	results := checkAll(selected)
	r := &report{
		runID:   runID,
		seed:    *flagSeed,
		step:    *flagStep,
		tol:     *flagTol,
		results: results,
		elapsed: time.Since(start),
	}
	fmt.Println(r.Render())
	if *flagCSV != "" {
		f := must.M1(os.Create(*flagCSV))
		must.M(r.WriteCSV(f))
		must.M(f.Close())
		klog.V(1).Infof("results written to %s", *flagCSV)
	}
	if r.NumFailures() > 0 {
		os.Exit(1)
	}
}

// checkAll builds every demo block and checks its partials, using a pool of workers.
//
// Each block gets its own random number generator, seeded from -seed and its position, so results don't
// depend on the scheduling.
func checkAll(selected []demo) []result {
	var bar *progressbar.ProgressBar
	if *flagProgress {
		bar = progressbar.NewOptions(len(selected),
			progressbar.OptionSetDescription("checking blocks"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(termenv.EnvColorProfile() != termenv.Ascii),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	results := make([]result, len(selected))
	pool := workerspool.New().SetMaxParallelism(*flagParallel)
	pool.Run(len(selected), func(ii int) {
		results[ii] = checkDemo(selected[ii], rand.New(rand.NewPCG(*flagSeed, uint64(ii))))
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return results
}

// checkDemo builds the block of d and checks its partials at random inputs.
func checkDemo(d demo, rng *rand.Rand) result {
	start := time.Now()
	res := result{demo: d}
	res.block, res.err = d.build()
	if res.err != nil {
		return res
	}
	res.checks, res.err = blocks.CheckPartials(res.block, d.randomInputs(res.block, rng), *flagStep)
	res.elapsed = time.Since(start)
	if res.err == nil {
		klog.V(1).Infof("%s: %d partials checked in %s", res.block.Name(), len(res.checks), res.elapsed)
	}
	return res
}
