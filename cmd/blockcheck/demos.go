// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/gomlx/tensorblocks/pkg/blocks"
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
	"github.com/pkg/errors"
)

// demo instantiates one block with demonstration options and random inputs inside its valid domain.
type demo struct {
	name string

	// low and high bound the random inputs.
	low, high float64

	build func() (blocks.Block, error)
}

var demos = []demo{
	{"elementwise_min", -1, 1, func() (blocks.Block, error) {
		return blocks.NewElementwiseMin(blocks.MinConfig{
			Shape:   shapes.Make(2, 3),
			InNames: []string{"a", "b", "c"},
			OutName: "min",
			Rho:     20,
		})
	}},
	{"multiplication", 0.5, 1.5, func() (blocks.Block, error) {
		constant := 1.5
		return blocks.NewMultiplication(blocks.MultiplicationConfig{
			Shape:    shapes.Make(2, 3, 4),
			InNames:  []string{"x", "y", "z"},
			OutName:  "f",
			Powers:   []float64{1, -2, 3},
			Constant: &constant,
		})
	}},
	{"operation", -2, 2, func() (blocks.Block, error) {
		return blocks.NewOperation(blocks.OperationConfig{
			Shape:   shapes.Make(3, 2),
			InNames: []string{"x", "y"},
			OutName: "f",
			Func:    sinProduct,
		})
	}},
	{"linear_combination", -1, 1, func() (blocks.Block, error) {
		return blocks.NewLinearCombination(blocks.LinearCombinationConfig{
			Shape:        shapes.Make(2, 3),
			OutName:      "f",
			CoeffsByName: map[string]float64{"x": 1, "y": -2, "z": 3},
			Constant:     0.5,
		})
	}},
	{"contraction", -1, 1, func() (blocks.Block, error) {
		return blocks.NewContraction(blocks.ContractionConfig{
			Shape:        shapes.Make(3, 2, 4),
			ContractAxes: []int{0, 1},
			InName:       "x",
			OutName:      "sum",
		})
	}},
	{"scalar_contraction", -1, 1, func() (blocks.Block, error) {
		return blocks.NewScalarContraction(blocks.ScalarContractionConfig{Shape: shapes.Make(2, 3), InName: "x", OutName: "sum"})
	}},
	{"expansion", -1, 1, func() (blocks.Block, error) {
		return blocks.NewExpansion(blocks.ExpansionConfig{
			Shape:      shapes.Make(3, 2, 4),
			ExpandAxes: []int{0, 1},
			InName:     "x",
			OutName:    "y",
		})
	}},
	{"scalar_expansion", -1, 1, func() (blocks.Block, error) {
		return blocks.NewScalarExpansion(blocks.ScalarExpansionConfig{Shape: shapes.Make(2, 3), InName: "s", OutName: "y"})
	}},
	{"reorder", -1, 1, func() (blocks.Block, error) {
		return blocks.NewReorder(blocks.ReorderConfig{
			InShape:       shapes.Make(2, 3, 4),
			InSubscripts:  "abc",
			OutSubscripts: "cab",
			InName:        "x",
			OutName:       "y",
		})
	}},
	{"cross_product", -1, 1, func() (blocks.Block, error) {
		return blocks.NewCrossProduct(blocks.CrossProductConfig{
			ShapeNo3: shapes.Make(2, 2),
			In1Axis:  2,
			In2Axis:  0,
			OutAxis:  1,
			In1Name:  "a",
			In2Name:  "b",
			OutName:  "c",
		})
	}},
	{"bspline", -1, 1, func() (blocks.Block, error) {
		return blocks.NewBSpline(blocks.BSplineConfig{NumControlPoints: 10, NumPoints: 25, InName: "cp", OutName: "pts"})
	}},
	{"bracketed", 0.1, 0.9, func() (blocks.Block, error) {
		return blocks.NewBracketed(blocks.BracketedConfig{
			Shape:    shapes.Make(2, 3),
			InNames:  []string{"c"},
			OutName:  "x",
			Residual: squareRoot,
			Strict:   true,
		})
	}},
}

// demoNames lists the names accepted by -blocks.
func demoNames() []string {
	return xslices.Map(demos, func(d demo) string { return d.name })
}

// findDemo returns the demo with the given name.
func findDemo(name string) (demo, error) {
	idx := slices.IndexFunc(demos, func(d demo) bool { return d.name == name })
	if idx < 0 {
		return demo{}, errors.Errorf("unknown block %q, valid blocks are %v", name, demoNames())
	}
	return demos[idx], nil
}

// randomInputs returns values for the inputs of b uniformly distributed in [d.low, d.high).
func (d demo) randomInputs(b blocks.Block, rng *rand.Rand) blocks.Values {
	inputs := blocks.NewValues(b.Inputs())
	for _, t := range inputs {
		flat := t.Flat()
		for ii := range flat {
			flat[ii] = d.low + (d.high-d.low)*rng.Float64()
		}
	}
	return inputs
}

// f(x, y) = x*y + sin(x)
var sinProduct = blocks.FunctionOf(
	func(inputs [][]float64, out []float64) {
		x, y := inputs[0], inputs[1]
		for ii := range out {
			out[ii] = x[ii]*y[ii] + math.Sin(x[ii])
		}
	},
	func(inputs [][]float64, partials [][]float64) {
		x, y := inputs[0], inputs[1]
		for ii := range x {
			partials[0][ii] = y[ii] + math.Cos(x[ii])
			partials[1][ii] = x[ii]
		}
	})

// r(c, x) = x² - c, whose root in [0, 1] is √c.
var squareRoot = blocks.ResidualOf(
	func(inputs blocks.Values, x, r []float64) {
		c := inputs["c"].Flat()
		for ii := range r {
			r[ii] = x[ii]*x[ii] - c[ii]
		}
	},
	func(inputs blocks.Values, x []float64, dInputs map[string][]float64, dx []float64) {
		for ii := range dx {
			dInputs["c"][ii] = -1
			dx[ii] = 2 * x[ii]
		}
	})
