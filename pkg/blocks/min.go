// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"math"
	"slices"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
)

// MinConfig configures an ElementwiseMin block.
type MinConfig struct {
	// Shape shared by all inputs and the output.
	Shape shapes.Shape

	InNames []string
	OutName string

	// Rho controls the sharpness of the smoothing and must be > 0: the output approaches the true
	// minimum as Rho grows, at the cost of steeper derivatives.
	Rho float64
}

// ElementwiseMin computes a smooth approximation of the element-wise minimum of its inputs:
//
//	out = -(fmax + log(Σ_i exp(ρ * (-x_i - fmax))) / ρ),  with fmax = max_i(-x_i)
//
// The partial with respect to x_i is the softmax weight `exp(ρ * (-x_i - fmax)) / Σ_j exp(ρ * (-x_j - fmax))`,
// so the partials of each element sum to 1.
type ElementwiseMin struct {
	*base
	cfg MinConfig
}

var _ Explicit = (*ElementwiseMin)(nil)

// NewElementwiseMin validates the configuration and sets up the block.
func NewElementwiseMin(cfg MinConfig) (*ElementwiseMin, error) {
	const kind = "elementwise_min"
	return construct(kind, func() (*ElementwiseMin, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		if err := checkNames(kind, cfg.InNames); err != nil {
			return nil, err
		}
		if !(cfg.Rho > 0) || math.IsInf(cfg.Rho, 1) {
			return nil, configErrorf("%s: Rho must be a finite value > 0, got %g", kind, cfg.Rho)
		}
		cfg.InNames = slices.Clone(cfg.InNames)
		b := &ElementwiseMin{base: newBase(kind, cfg.OutName), cfg: cfg}
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

// weights calls fn for every element with the stabilized exponentials of each input and their sum.
func (b *ElementwiseMin) weights(xs [][]float64, fn func(elem int, fmax float64, exps []float64, sum float64)) {
	rho := b.cfg.Rho
	exps := make([]float64, len(xs))
	for elem := range b.cfg.Shape.Size() {
		fmax := math.Inf(-1)
		for _, x := range xs {
			fmax = max(fmax, -x[elem])
		}
		var sum float64
		for ii, x := range xs {
			exps[ii] = math.Exp(rho * (-x[elem] - fmax))
			sum += exps[ii]
		}
		fn(elem, fmax, exps, sum)
	}
}

// Compute implements Explicit.
func (b *ElementwiseMin) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	out := outputs[b.cfg.OutName].Flat()
	b.weights(flatValues(b.inputs, inputs), func(elem int, fmax float64, _ []float64, sum float64) {
		out[elem] = -(fmax + math.Log(sum)/b.cfg.Rho)
	})
	return nil
}

// ComputePartials implements Explicit.
func (b *ElementwiseMin) ComputePartials(inputs Values, jac Jacobian) error {
	if err := b.checkValues("input", b.inputs, inputs); err != nil {
		return err
	}
	partials := make([][]float64, len(b.cfg.InNames))
	for ii, name := range b.cfg.InNames {
		var err error
		partials[ii], err = b.partialValues(jac, b.cfg.OutName, name)
		if err != nil {
			return err
		}
	}
	b.weights(flatValues(b.inputs, inputs), func(elem int, _ float64, exps []float64, sum float64) {
		for ii, e := range exps {
			partials[ii][elem] = e / sum
		}
	})
	return nil
}
