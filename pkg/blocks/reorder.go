// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/core/subscripts"
)

// ReorderConfig configures a Reorder block.
//
// The subscripts label the axes of the input and of the output with one letter each, as in an einsum
// equation: e.g. InSubscripts "abc" and OutSubscripts "cab" move the last axis first.
type ReorderConfig struct {
	InShape shapes.Shape

	// OutShape is optional: if its Dimensions are nil it is derived from InShape and the subscripts.
	// Otherwise, it must match the permuted InShape.
	OutShape shapes.Shape

	InSubscripts, OutSubscripts string

	InName, OutName string
}

// Reorder permutes the axes of its input. Its Jacobian is a constant permutation matrix.
type Reorder struct {
	*base
	inName, outName string
	mapping         subscripts.Mapping
}

var _ Explicit = (*Reorder)(nil)

// NewReorder validates the configuration and sets up the block.
func NewReorder(cfg ReorderConfig) (*Reorder, error) {
	const kind = "reorder"
	return construct(kind, func() (*Reorder, error) {
		if err := checkShape(kind, "InShape", cfg.InShape); err != nil {
			return nil, err
		}
		m, err := subscripts.Permutation(cfg.InSubscripts, cfg.OutSubscripts, cfg.InShape)
		if err != nil {
			return nil, configErrorf("%s: %v", kind, err)
		}
		if cfg.OutShape.Dimensions != nil && !cfg.OutShape.Equal(m.OutputShape) {
			return nil, configErrorf("%s: OutShape %s doesn't match InShape %s reordered from %q to %q, which is %s",
				kind, cfg.OutShape, cfg.InShape, cfg.InSubscripts, cfg.OutSubscripts, m.OutputShape)
		}
		return newMappingBlock(kind, cfg.InName, cfg.OutName, m, sparse.Permutation,
			func(b *base) *Reorder {
				return &Reorder{base: b, inName: cfg.InName, outName: cfg.OutName, mapping: m}
			})
	})
}

// Mapping used by the block.
func (b *Reorder) Mapping() subscripts.Mapping { return b.mapping }

// InverseConfig returns the configuration of the Reorder block that undoes b, reading from inName and
// writing to outName.
func (b *Reorder) InverseConfig(inName, outName string) ReorderConfig {
	inSub, outSub := subscripts.InverseSubscripts(b.mapping.Permutation())
	return ReorderConfig{
		InShape:       b.mapping.OutputShape.Clone(),
		OutShape:      b.mapping.InputShape.Clone(),
		InSubscripts:  inSub,
		OutSubscripts: outSub,
		InName:        inName,
		OutName:       outName,
	}
}

// Compute implements Explicit.
func (b *Reorder) Compute(inputs, outputs Values) error {
	return applyMapping(b.base, b.mapping, b.inName, b.outName, inputs, outputs)
}

// ComputePartials implements Explicit. The partials are constant.
func (b *Reorder) ComputePartials(inputs Values, _ Jacobian) error {
	return b.checkValues("input", b.inputs, inputs)
}
