// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemos(t *testing.T) {
	*flagProgress = false
	results := checkAll(demos)
	require.Len(t, results, len(demos))
	for ii, res := range results {
		require.NoErrorf(t, res.err, "demo %q", demos[ii].name)
		require.NotEmpty(t, res.checks)
		for _, check := range res.checks {
			assert.Truef(t, check.Passed(*flagTol), "%s: %s max error %g, max undeclared %g",
				res.block.Name(), check.PartialKey, check.MaxError, check.MaxUndeclared)
		}
	}

	r := &report{runID: "test", seed: *flagSeed, step: *flagStep, tol: *flagTol, results: results}
	assert.Zero(t, r.NumFailures())
	rendered := r.Render()
	for _, d := range demos {
		assert.Contains(t, rendered, d.name)
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "block,of,wrt,declared,nnz,max_error,max_undeclared,passed", lines[0])
	var numChecks int
	for _, res := range results {
		numChecks += len(res.checks)
	}
	assert.Len(t, lines, numChecks+1)

	// A tolerance no check can pass.
	r.tol = -1
	assert.Equal(t, numChecks, r.NumFailures())
}

func TestFindDemo(t *testing.T) {
	d, err := findDemo("reorder")
	require.NoError(t, err)
	assert.Equal(t, "reorder", d.name)
	_, err = findDemo("nope")
	require.Error(t, err)
	assert.Len(t, demoNames(), len(demos))
}
