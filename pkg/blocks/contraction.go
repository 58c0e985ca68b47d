// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"slices"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/core/subscripts"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
)

// ContractionConfig configures a Contraction block.
type ContractionConfig struct {
	// Shape of the input. The output shape is Shape without ContractAxes.
	Shape shapes.Shape

	// ContractAxes are the axes summed over, each in [0, Shape.Rank()).
	ContractAxes []int

	InName, OutName string
}

// Contraction sums its input over a set of axes. The Jacobian is constant 1, with one entry per input element.
type Contraction struct {
	*base
	inName, outName string
	mapping         subscripts.Mapping
}

var _ Explicit = (*Contraction)(nil)

// NewContraction validates the configuration and sets up the block.
func NewContraction(cfg ContractionConfig) (*Contraction, error) {
	const kind = "contraction"
	return construct(kind, func() (*Contraction, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		m, err := subscripts.Contraction(cfg.Shape, slices.Clone(cfg.ContractAxes))
		if err != nil {
			return nil, configErrorf("%s: %v", kind, err)
		}
		return newMappingBlock(kind, cfg.InName, cfg.OutName, m, sparse.Contraction,
			func(b *base) *Contraction {
				return &Contraction{base: b, inName: cfg.InName, outName: cfg.OutName, mapping: m}
			})
	})
}

// newMappingBlock sets up a block with one input and one output related by the mapping m, with a constant
// Jacobian of ones whose pattern is built by patternFn.
func newMappingBlock[B Block](kind, inName, outName string, m subscripts.Mapping,
	patternFn func(subscripts.Mapping) (sparse.Pattern, error), newFn func(*base) B) (B, error) {
	var zero B
	pattern, err := patternFn(m)
	if err != nil {
		return zero, configErrorf("%s: %v", kind, err)
	}
	b := newBase(kind, outName)
	if err := b.addInput(inName, m.InputShape); err != nil {
		return zero, err
	}
	if err := b.addOutput(outName, m.OutputShape); err != nil {
		return zero, err
	}
	if err := b.declarePartials(outName, inName, pattern, xslices.SliceWithValue(pattern.NNZ(), 1.0)); err != nil {
		return zero, err
	}
	b.logSetup()
	return newFn(b), nil
}

// Mapping used by the block.
func (b *Contraction) Mapping() subscripts.Mapping { return b.mapping }

// applyMapping evaluates m on the input and copies the result to the output.
func applyMapping(b *base, m subscripts.Mapping, inName, outName string, inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	result, err := subscripts.Apply(m, inputs[inName])
	if err != nil {
		return err
	}
	copy(outputs[outName].Flat(), result.Flat())
	return nil
}

// Compute implements Explicit.
func (b *Contraction) Compute(inputs, outputs Values) error {
	return applyMapping(b.base, b.mapping, b.inName, b.outName, inputs, outputs)
}

// ComputePartials implements Explicit. The partials are constant.
func (b *Contraction) ComputePartials(inputs Values, _ Jacobian) error {
	return b.checkValues("input", b.inputs, inputs)
}

// ScalarContractionConfig configures a ScalarContraction block.
type ScalarContractionConfig struct {
	// Shape of the input. The output is a scalar.
	Shape shapes.Shape

	InName, OutName string
}

// ScalarContraction sums all the elements of its input into a scalar.
type ScalarContraction struct {
	*base
	inName, outName string
}

var _ Explicit = (*ScalarContraction)(nil)

// NewScalarContraction validates the configuration and sets up the block.
func NewScalarContraction(cfg ScalarContractionConfig) (*ScalarContraction, error) {
	const kind = "scalar_contraction"
	return construct(kind, func() (*ScalarContraction, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		b := &ScalarContraction{base: newBase(kind, cfg.OutName), inName: cfg.InName, outName: cfg.OutName}
		if err := b.addInput(cfg.InName, cfg.Shape); err != nil {
			return nil, err
		}
		if err := b.addOutput(cfg.OutName, shapes.Scalar()); err != nil {
			return nil, err
		}
		size := cfg.Shape.Size()
		if err := b.declarePartials(cfg.OutName, cfg.InName, sparse.ScalarContraction(size), xslices.SliceWithValue(size, 1.0)); err != nil {
			return nil, err
		}
		b.logSetup()
		return b, nil
	})
}

// Compute implements Explicit.
func (b *ScalarContraction) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	var sum float64
	for _, v := range inputs[b.inName].Flat() {
		sum += v
	}
	outputs[b.outName].Flat()[0] = sum
	return nil
}

// ComputePartials implements Explicit. The partials are constant.
func (b *ScalarContraction) ComputePartials(inputs Values, _ Jacobian) error {
	return b.checkValues("input", b.inputs, inputs)
}
