// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"math"
	"slices"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
)

// MultiplicationConfig configures a Multiplication block.
type MultiplicationConfig struct {
	// Shape shared by all inputs and the output.
	Shape shapes.Shape

	InNames []string
	OutName string

	// Powers of each input, one per InNames. If nil, all powers are 1.
	Powers []float64

	// Constant factor. If nil (and ConstantArray is nil) the factor is 1.
	Constant *float64

	// ConstantArray is an optional per-element factor, with Shape.Size() values in row-major order.
	// If set, Constant must be nil.
	ConstantArray []float64
}

// Multiplication computes `out = c * Π_i x_i^p_i`, element-wise.
//
// Zero bases with negative powers are not guarded: they propagate as Inf/NaN.
type Multiplication struct {
	*base
	cfg      MultiplicationConfig
	constant []float64
}

var _ Explicit = (*Multiplication)(nil)

// NewMultiplication validates the configuration and sets up the block.
func NewMultiplication(cfg MultiplicationConfig) (*Multiplication, error) {
	const kind = "multiplication"
	return construct(kind, func() (*Multiplication, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		if err := checkNames(kind, cfg.InNames); err != nil {
			return nil, err
		}
		if cfg.Powers == nil {
			cfg.Powers = xslices.SliceWithValue(len(cfg.InNames), 1.0)
		} else if len(cfg.Powers) != len(cfg.InNames) {
			return nil, configErrorf("%s: got %d powers for %d inputs", kind, len(cfg.Powers), len(cfg.InNames))
		}
		constant, err := constantArray(kind, cfg.Shape, cfg.Constant, 1, cfg.ConstantArray)
		if err != nil {
			return nil, err
		}
		cfg.InNames = slices.Clone(cfg.InNames)
		cfg.Powers = slices.Clone(cfg.Powers)
		b := &Multiplication{base: newBase(kind, cfg.OutName), cfg: cfg, constant: constant}
		if err := b.addOutput(cfg.OutName, cfg.Shape); err != nil {
			return nil, err
		}
		for _, name := range cfg.InNames {
			if err := b.addInput(name, cfg.Shape); err != nil {
				return nil, err
			}
			if err := b.declarePartials(cfg.OutName, name, sparse.Diagonal(cfg.Shape.Size()), nil); err != nil {
				return nil, err
			}
		}
		b.logSetup()
		return b, nil
	})
}

// constantArray resolves the scalar-or-array constant of a block into one value per element.
// A nil scalar with no array means defaultValue.
func constantArray(kind string, shape shapes.Shape, scalar *float64, defaultValue float64, array []float64) ([]float64, error) {
	if array != nil {
		if scalar != nil {
			return nil, configErrorf("%s: only one of Constant (%g) or ConstantArray can be set", kind, *scalar)
		}
		if len(array) != shape.Size() {
			return nil, configErrorf("%s: ConstantArray has %d values for shape %s", kind, len(array), shape)
		}
		return slices.Clone(array), nil
	}
	if scalar == nil {
		scalar = &defaultValue
	}
	return xslices.SliceWithValue(shape.Size(), *scalar), nil
}

// Compute implements Explicit.
func (b *Multiplication) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	xs := flatValues(b.inputs, inputs)
	out := outputs[b.cfg.OutName].Flat()
	copy(out, b.constant)
	for ii, x := range xs {
		p := b.cfg.Powers[ii]
		for elem := range out {
			out[elem] *= math.Pow(x[elem], p)
		}
	}
	return nil
}

// ComputePartials implements Explicit.
//
// The product of the other factors is taken from running prefix and suffix products, so no division by
// x_i is needed.
func (b *Multiplication) ComputePartials(inputs Values, jac Jacobian) error {
	if err := b.checkValues("input", b.inputs, inputs); err != nil {
		return err
	}
	n := len(b.cfg.InNames)
	partials := make([][]float64, n)
	for ii, name := range b.cfg.InNames {
		var err error
		partials[ii], err = b.partialValues(jac, b.cfg.OutName, name)
		if err != nil {
			return err
		}
	}
	xs := flatValues(b.inputs, inputs)
	factors := make([]float64, n)
	suffix := make([]float64, n+1)
	for elem := range b.cfg.Shape.Size() {
		for ii, x := range xs {
			factors[ii] = math.Pow(x[elem], b.cfg.Powers[ii])
		}
		suffix[n] = 1
		for ii := n - 1; ii >= 0; ii-- {
			suffix[ii] = suffix[ii+1] * factors[ii]
		}
		prefix := b.constant[elem]
		for ii, x := range xs {
			p := b.cfg.Powers[ii]
			partials[ii][elem] = prefix * p * math.Pow(x[elem], p-1) * suffix[ii+1]
			prefix *= factors[ii]
		}
	}
	return nil
}
