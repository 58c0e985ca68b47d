// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/core/subscripts"
)

// CrossProductConfig configures a CrossProduct block.
//
// Each of the two inputs and the output is shaped as ShapeNo3 with a length-3 vector axis inserted at
// its own position (In1Axis, In2Axis, OutAxis), each in [0, ShapeNo3.Rank()].
type CrossProductConfig struct {
	ShapeNo3 shapes.Shape

	In1Axis, In2Axis, OutAxis int

	In1Name, In2Name, OutName string
}

// CrossProduct computes `out = in1 × in2` along the vector axes, broadcast over all other axes.
//
// Its partials are `∂out/∂in1 = -[in2]×` and `∂out/∂in2 = [in1]×`, with two entries per output element
// since the diagonal of the skew-symmetric matrices is zero.
type CrossProduct struct {
	*base
	cfg                          CrossProductConfig
	in1Map, in2Map, outMap       subscripts.Mapping
	in1Group, in2Group, outGroup []int
}

var _ Explicit = (*CrossProduct)(nil)

// NewCrossProduct validates the configuration and sets up the block.
func NewCrossProduct(cfg CrossProductConfig) (*CrossProduct, error) {
	const kind = "cross_product"
	return construct(kind, func() (*CrossProduct, error) {
		if err := checkShape(kind, "ShapeNo3", cfg.ShapeNo3); err != nil {
			return nil, err
		}
		b := &CrossProduct{base: newBase(kind, cfg.OutName), cfg: cfg}
		b.cfg.ShapeNo3 = cfg.ShapeNo3.Clone()
		for _, mapping := range []struct {
			field   string
			axis    int
			m       *subscripts.Mapping
			grouped *[]int
		}{
			{"In1Axis", cfg.In1Axis, &b.in1Map, &b.in1Group},
			{"In2Axis", cfg.In2Axis, &b.in2Map, &b.in2Group},
			{"OutAxis", cfg.OutAxis, &b.outMap, &b.outGroup},
		} {
			m, err := subscripts.CrossProduct(cfg.ShapeNo3, mapping.axis)
			if err != nil {
				return nil, configErrorf("%s: %s: %v", kind, mapping.field, err)
			}
			grouped, err := m.GroupedIndices()
			if err != nil {
				return nil, configErrorf("%s: %s: %v", kind, mapping.field, err)
			}
			*mapping.m, *mapping.grouped = m, grouped
		}
		if err := b.addInput(cfg.In1Name, b.in1Map.OutputShape); err != nil {
			return nil, err
		}
		if err := b.addInput(cfg.In2Name, b.in2Map.OutputShape); err != nil {
			return nil, err
		}
		if err := b.addOutput(cfg.OutName, b.outMap.OutputShape); err != nil {
			return nil, err
		}
		for _, wrt := range []struct {
			name string
			m    subscripts.Mapping
		}{{cfg.In1Name, b.in1Map}, {cfg.In2Name, b.in2Map}} {
			pattern, err := sparse.CrossProduct(b.outMap, wrt.m)
			if err != nil {
				return nil, configErrorf("%s: %v", kind, err)
			}
			if err := b.declarePartials(cfg.OutName, wrt.name, pattern, nil); err != nil {
				return nil, err
			}
		}
		b.logSetup()
		return b, nil
	})
}

// Compute implements Explicit.
func (b *CrossProduct) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	x := inputs[b.cfg.In1Name].Flat()
	y := inputs[b.cfg.In2Name].Flat()
	out := outputs[b.cfg.OutName].Flat()
	for kept := range b.cfg.ShapeNo3.Size() {
		xg := b.in1Group[3*kept : 3*kept+3]
		yg := b.in2Group[3*kept : 3*kept+3]
		for i := range 3 {
			j, k := (i+1)%3, (i+2)%3
			out[b.outGroup[3*kept+i]] = x[xg[j]]*y[yg[k]] - x[xg[k]]*y[yg[j]]
		}
	}
	return nil
}

// ComputePartials implements Explicit.
func (b *CrossProduct) ComputePartials(inputs Values, jac Jacobian) error {
	if err := b.checkValues("input", b.inputs, inputs); err != nil {
		return err
	}
	d1, err := b.partialValues(jac, b.cfg.OutName, b.cfg.In1Name)
	if err != nil {
		return err
	}
	d2, err := b.partialValues(jac, b.cfg.OutName, b.cfg.In2Name)
	if err != nil {
		return err
	}
	if err := sparse.CrossProductValues(sparse.CrossFirst, inputs[b.cfg.In2Name].Flat(), b.in2Group, d1); err != nil {
		return err
	}
	return sparse.CrossProductValues(sparse.CrossSecond, inputs[b.cfg.In1Name].Flat(), b.in1Group, d2)
}
