// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks_test

import (
	"testing"

	. "github.com/gomlx/tensorblocks/pkg/blocks"
	"github.com/gomlx/tensorblocks/pkg/blocks/blocktest"
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearCombination(t *testing.T) {
	shape := shapes.Make(2, 3, 4)
	b, err := NewLinearCombination(LinearCombinationConfig{
		Shape:    shape,
		OutName:  "f",
		InNames:  []string{"x", "y", "z"},
		Coeffs:   []float64{1, -2, 3},
		Constant: 1.5,
	})
	require.NoError(t, err)
	inputs := blocktest.RandomInputs(b, blocktest.NewRand(9), -1, 1)
	out := blocktest.Compute(t, b, inputs)["f"].Flat()
	x, y, z := inputs["x"].Flat(), inputs["y"].Flat(), inputs["z"].Flat()
	for elem := range out {
		assert.InDelta(t, 1.5+x[elem]-2*y[elem]+3*z[elem], out[elem], 1e-14)
	}
	blocktest.CheckPartials(t, b, inputs, 0)

	// ComputePartials doesn't touch the constant values.
	jac := NewJacobian(b)
	require.NoError(t, b.ComputePartials(inputs, jac))
	assert.Equal(t, 3.0, jac[PartialKey{Of: "f", Wrt: "z"}].Values[5])
}

func TestLinearCombinationForms(t *testing.T) {
	shape := shapes.Make(3)
	byName, err := NewLinearCombination(LinearCombinationConfig{
		Shape:        shape,
		OutName:      "f",
		CoeffsByName: map[string]float64{"z": 3, "x": 1, "y": -2},
	})
	require.NoError(t, err)
	assert.Equal(t, []Term{{"x", 1}, {"y", -2}, {"z", 3}}, byName.Terms())
	for ii, name := range []string{"x", "y", "z"} {
		assert.Equal(t, name, byName.Inputs()[ii].Name)
	}

	terms, err := NewLinearCombination(LinearCombinationConfig{
		Shape:         shape,
		OutName:       "f",
		Terms:         []Term{{"y", -2}, {"x", 1}, {"z", 3}},
		ConstantArray: []float64{1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "y", terms.Inputs()[0].Name)

	defaults, err := NewLinearCombination(LinearCombinationConfig{Shape: shape, OutName: "f", InNames: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, []Term{{"x", 1}, {"y", 1}}, defaults.Terms())

	inputs := blocktest.RandomInputs(byName, blocktest.NewRand(3), -1, 1)
	outByName := blocktest.Compute(t, byName, inputs)["f"].Flat()
	outTerms := blocktest.Compute(t, terms, inputs)["f"].Flat()
	for elem := range outByName {
		assert.InDelta(t, outByName[elem]+float64(elem+1), outTerms[elem], 1e-14)
	}
}

func TestLinearCombinationConfig(t *testing.T) {
	shape := shapes.Make(2)
	for _, cfg := range []LinearCombinationConfig{
		{Shape: shape, OutName: "f"},
		{Shape: shape, OutName: "f", InNames: []string{"x"}, CoeffsByName: map[string]float64{"y": 1}},
		{Shape: shape, OutName: "f", InNames: []string{"x", "y"}, Coeffs: []float64{1}},
		{Shape: shape, OutName: "f", CoeffsByName: map[string]float64{"y": 1}, Coeffs: []float64{1}},
		{Shape: shape, OutName: "f", Terms: []Term{}},
		{Shape: shape, OutName: "f", Terms: []Term{{"x", 1}, {"x", 2}}},
	} {
		_, err := NewLinearCombination(cfg)
		require.ErrorIsf(t, err, ErrInvalidConfig, "config %+v", cfg)
	}
}
