// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package blocktest holds test utilities for packages that implement or use blocks.
package blocktest

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/tensorblocks/pkg/blocks"
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DefaultTolerance for CheckPartials, appropriate for central differences of smooth functions.
const DefaultTolerance = 1e-5

// NewRand returns a deterministic random number generator for tests.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// RandomTensor returns a tensor with the given shape and values uniformly distributed in [low, high).
func RandomTensor(rng *rand.Rand, shape shapes.Shape, low, high float64) *tensors.Tensor[float64] {
	t := tensors.FromShape[float64](shape)
	for ii := range t.Flat() {
		t.Flat()[ii] = low + (high-low)*rng.Float64()
	}
	return t
}

// RandomInputs returns random values for all the inputs of b, uniformly distributed in [low, high).
func RandomInputs(b blocks.Block, rng *rand.Rand, low, high float64) blocks.Values {
	inputs := make(blocks.Values, len(b.Inputs()))
	for _, p := range b.Inputs() {
		inputs[p.Name] = RandomTensor(rng, p.Shape, low, high)
	}
	return inputs
}

// Compute runs an Explicit block on inputs and returns its freshly allocated outputs, failing the test on error.
func Compute(t testing.TB, b blocks.Explicit, inputs blocks.Values) blocks.Values {
	t.Helper()
	outputs := blocks.NewValues(b.Outputs())
	require.NoError(t, b.Compute(inputs, outputs))
	return outputs
}

// CheckPartials asserts that the partials declared by b match central finite differences at inputs, within tol
// (DefaultTolerance if <= 0), and that the finite differences are zero outside the declared patterns.
func CheckPartials(t testing.TB, b blocks.Block, inputs blocks.Values, tol float64) {
	t.Helper()
	if tol <= 0 {
		tol = DefaultTolerance
	}
	checks, err := blocks.CheckPartials(b, inputs, 0)
	require.NoError(t, err)
	require.NotEmpty(t, checks)
	for _, check := range checks {
		assert.Truef(t, check.MaxError <= tol,
			"%s: declared %s differs from finite differences by %g (tolerance %g)", b.Name(), check.PartialKey, check.MaxError, tol)
		assert.Truef(t, check.MaxUndeclared <= tol,
			"%s: %s has finite differences of magnitude %g outside the declared pattern", b.Name(), check.PartialKey, check.MaxUndeclared)
	}
}
