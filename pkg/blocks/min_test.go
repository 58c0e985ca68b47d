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

func newMin(t *testing.T, rho float64) *ElementwiseMin {
	b, err := NewElementwiseMin(MinConfig{
		Shape:   shapes.Make(2, 3),
		InNames: []string{"in1", "in2", "in3"},
		OutName: "out",
		Rho:     rho,
	})
	require.NoError(t, err)
	return b
}

func TestElementwiseMinPartialsSumToOne(t *testing.T) {
	b := newMin(t, 20)
	inputs := blocktest.RandomInputs(b, blocktest.NewRand(42), -1, 1)
	jac := NewJacobian(b)
	require.NoError(t, b.ComputePartials(inputs, jac))
	for elem := range 6 {
		var sum float64
		for _, name := range []string{"in1", "in2", "in3"} {
			w := jac[PartialKey{Of: "out", Wrt: name}].Values[elem]
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}

func TestElementwiseMinConverges(t *testing.T) {
	rng := blocktest.NewRand(7)
	inputs := blocktest.RandomInputs(newMin(t, 1), rng, -1, 1)
	trueMin := make([]float64, 6)
	for elem := range trueMin {
		trueMin[elem] = math.Inf(1)
		for _, x := range inputs {
			trueMin[elem] = min(trueMin[elem], x.Flat()[elem])
		}
	}

	previous := make([]float64, 6)
	for ii := range previous {
		previous[ii] = math.Inf(-1)
	}
	for _, rho := range []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 1000} {
		out := blocktest.Compute(t, newMin(t, rho), inputs)["out"].Flat()
		for elem, v := range out {
			// The smoothed minimum is a lower bound, within log(n)/rho of the true minimum.
			assert.LessOrEqual(t, v, trueMin[elem]+1e-12)
			assert.GreaterOrEqual(t, v, trueMin[elem]-math.Log(3)/rho-1e-12)
			assert.GreaterOrEqualf(t, v, previous[elem]-1e-12, "not monotonic in rho=%g", rho)
			previous[elem] = v
		}
	}
	for elem, v := range previous {
		assert.InDelta(t, trueMin[elem], v, 2e-3)
	}
}

func TestElementwiseMinLargeValues(t *testing.T) {
	// Stabilized: no overflow for large rho*x.
	b := newMin(t, 100)
	inputs := blocktest.RandomInputs(b, blocktest.NewRand(3), -1000, 1000)
	out := blocktest.Compute(t, b, inputs)["out"].Flat()
	for _, v := range out {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestElementwiseMinPartials(t *testing.T) {
	b := newMin(t, 5)
	blocktest.CheckPartials(t, b, blocktest.RandomInputs(b, blocktest.NewRand(11), -1, 1), 0)
}

func TestElementwiseMinConfig(t *testing.T) {
	for _, rho := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewElementwiseMin(MinConfig{Shape: shapes.Make(2), InNames: []string{"a"}, OutName: "out", Rho: rho})
		require.ErrorIsf(t, err, ErrInvalidConfig, "rho=%g", rho)
	}
	_, err := NewElementwiseMin(MinConfig{Shape: shapes.Make(2), OutName: "out", Rho: 1})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
