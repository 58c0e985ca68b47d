// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks_test

import (
	"math"
	"testing"

	. "github.com/gomlx/tensorblocks/pkg/blocks"
	"github.com/gomlx/tensorblocks/pkg/blocks/blocktest"
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplicationPlainProduct(t *testing.T) {
	b, err := NewMultiplication(MultiplicationConfig{
		Shape:   shapes.Make(2, 3, 4),
		InNames: []string{"x", "y"},
		OutName: "f",
		Powers:  []float64{1, 1},
	})
	require.NoError(t, err)
	inputs := blocktest.RandomInputs(b, blocktest.NewRand(42), -1, 1)
	out := blocktest.Compute(t, b, inputs)["f"].Flat()
	x, y := inputs["x"].Flat(), inputs["y"].Flat()
	for elem := range out {
		assert.InDelta(t, x[elem]*y[elem], out[elem], 1e-15)
	}
}

func TestMultiplicationPowersAndConstant(t *testing.T) {
	shape := shapes.Make(2, 3, 4)
	scale := 1.5
	b, err := NewMultiplication(MultiplicationConfig{
		Shape:    shape,
		InNames:  []string{"x", "y", "z"},
		OutName:  "f",
		Powers:   []float64{1, -2, 3},
		Constant: &scale,
	})
	require.NoError(t, err)
	inputs := blocktest.RandomInputs(b, blocktest.NewRand(1), 0.5, 1.5)
	out := blocktest.Compute(t, b, inputs)["f"].Flat()
	x, y, z := inputs["x"].Flat(), inputs["y"].Flat(), inputs["z"].Flat()
	for elem := range out {
		want := 1.5 * x[elem] * math.Pow(y[elem], -2) * math.Pow(z[elem], 3)
		assert.InDelta(t, want, out[elem], 1e-12*math.Abs(want))
	}
	blocktest.CheckPartials(t, b, inputs, 0)

	// Per-element constant.
	constant := make([]float64, shape.Size())
	for ii := range constant {
		constant[ii] = float64(ii)
	}
	b, err = NewMultiplication(MultiplicationConfig{
		Shape:         shape,
		InNames:       []string{"x", "y"},
		OutName:       "f",
		ConstantArray: constant,
	})
	require.NoError(t, err)
	out = blocktest.Compute(t, b, inputs)["f"].Flat()
	for elem := range out {
		assert.InDelta(t, constant[elem]*x[elem]*y[elem], out[elem], 1e-12)
	}
	blocktest.CheckPartials(t, b, inputs, 0)

	// An explicit zero constant zeroes the output and its partials.
	var zero float64
	b, err = NewMultiplication(MultiplicationConfig{Shape: shape, InNames: []string{"x", "y"}, OutName: "f", Constant: &zero})
	require.NoError(t, err)
	for _, v := range blocktest.Compute(t, b, inputs)["f"].Flat() {
		assert.Zero(t, v)
	}
	jac := NewJacobian(b)
	require.NoError(t, b.ComputePartials(inputs, jac))
	for _, v := range jac[PartialKey{Of: "f", Wrt: "x"}].Values {
		assert.Zero(t, v)
	}
}

func TestMultiplicationZeroFactor(t *testing.T) {
	// Partials of x*y at x=0 are still well defined: no division by the factors.
	b, err := NewMultiplication(MultiplicationConfig{Shape: shapes.Make(1), InNames: []string{"x", "y"}, OutName: "f"})
	require.NoError(t, err)
	inputs := blocktest.RandomInputs(b, blocktest.NewRand(0), 2, 2)
	inputs["x"].Flat()[0] = 0
	jac := NewJacobian(b)
	require.NoError(t, b.ComputePartials(inputs, jac))
	assert.Equal(t, []float64{2}, jac[PartialKey{Of: "f", Wrt: "x"}].Values)
	assert.Equal(t, []float64{0}, jac[PartialKey{Of: "f", Wrt: "y"}].Values)
}

func TestMultiplicationConfig(t *testing.T) {
	scale := 2.0
	_, err := NewMultiplication(MultiplicationConfig{
		Shape: shapes.Make(2), InNames: []string{"x", "y"}, OutName: "f", Powers: []float64{1},
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewMultiplication(MultiplicationConfig{
		Shape: shapes.Make(2), InNames: []string{"x"}, OutName: "f", ConstantArray: []float64{1, 2, 3},
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewMultiplication(MultiplicationConfig{
		Shape: shapes.Make(2), InNames: []string{"x"}, OutName: "f", Constant: &scale, ConstantArray: []float64{1, 2},
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
