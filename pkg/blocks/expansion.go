// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"slices"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/core/subscripts"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
)

// ExpansionConfig configures an Expansion block.
type ExpansionConfig struct {
	// Shape of the output. The input shape is Shape without ExpandAxes.
	Shape shapes.Shape

	// ExpandAxes are the axes of the output the input is broadcast along, each in [0, Shape.Rank()).
	ExpandAxes []int

	InName, OutName string
}

// Expansion broadcasts its input along new axes, replicating its values.
// The Jacobian is constant 1, with one entry per output element.
type Expansion struct {
	*base
	inName, outName string
	mapping         subscripts.Mapping
}

var _ Explicit = (*Expansion)(nil)

// NewExpansion validates the configuration and sets up the block.
func NewExpansion(cfg ExpansionConfig) (*Expansion, error) {
	const kind = "expansion"
	return construct(kind, func() (*Expansion, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		m, err := subscripts.Expansion(cfg.Shape, slices.Clone(cfg.ExpandAxes))
		if err != nil {
			return nil, configErrorf("%s: %v", kind, err)
		}
		return newMappingBlock(kind, cfg.InName, cfg.OutName, m, sparse.Expansion,
			func(b *base) *Expansion {
				return &Expansion{base: b, inName: cfg.InName, outName: cfg.OutName, mapping: m}
			})
	})
}

// Mapping used by the block.
func (b *Expansion) Mapping() subscripts.Mapping { return b.mapping }

// Compute implements Explicit.
func (b *Expansion) Compute(inputs, outputs Values) error {
	return applyMapping(b.base, b.mapping, b.inName, b.outName, inputs, outputs)
}

// ComputePartials implements Explicit. The partials are constant.
func (b *Expansion) ComputePartials(inputs Values, _ Jacobian) error {
	return b.checkValues("input", b.inputs, inputs)
}

// ScalarExpansionConfig configures a ScalarExpansion block.
type ScalarExpansionConfig struct {
	// Shape of the output. The input is a scalar.
	Shape shapes.Shape

	InName, OutName string
}

// ScalarExpansion broadcasts a scalar input to every element of its output.
type ScalarExpansion struct {
	*base
	inName, outName string
}

var _ Explicit = (*ScalarExpansion)(nil)

// NewScalarExpansion validates the configuration and sets up the block.
func NewScalarExpansion(cfg ScalarExpansionConfig) (*ScalarExpansion, error) {
	const kind = "scalar_expansion"
	return construct(kind, func() (*ScalarExpansion, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		b := &ScalarExpansion{base: newBase(kind, cfg.OutName), inName: cfg.InName, outName: cfg.OutName}
		if err := b.addInput(cfg.InName, shapes.Scalar()); err != nil {
			return nil, err
		}
		if err := b.addOutput(cfg.OutName, cfg.Shape); err != nil {
			return nil, err
		}
		size := cfg.Shape.Size()
		if err := b.declarePartials(cfg.OutName, cfg.InName, sparse.ScalarExpansion(size), xslices.SliceWithValue(size, 1.0)); err != nil {
			return nil, err
		}
		b.logSetup()
		return b, nil
	})
}

// Compute implements Explicit.
func (b *ScalarExpansion) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	outputs[b.outName].Fill(inputs[b.inName].Flat()[0])
	return nil
}

// ComputePartials implements Explicit. The partials are constant.
func (b *ScalarExpansion) ComputePartials(inputs Values, _ Jacobian) error {
	return b.checkValues("input", b.inputs, inputs)
}
