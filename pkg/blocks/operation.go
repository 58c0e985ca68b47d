// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"slices"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
)

// Function is a user-supplied element-wise function of n inputs, used by the Operation block.
//
// All slices are flattened in row-major order and have the same length (the size of the block shape).
// inputs are ordered as OperationConfig.InNames and must not be modified.
type Function interface {
	// Evaluate fills out with f(inputs...).
	Evaluate(inputs [][]float64, out []float64)

	// Derivative fills partials[i] with ∂f/∂inputs[i], element-wise.
	Derivative(inputs [][]float64, partials [][]float64)
}

type funcPair struct {
	eval  func(inputs [][]float64, out []float64)
	deriv func(inputs [][]float64, partials [][]float64)
}

func (f funcPair) Evaluate(inputs [][]float64, out []float64) { f.eval(inputs, out) }

func (f funcPair) Derivative(inputs [][]float64, partials [][]float64) { f.deriv(inputs, partials) }

// FunctionOf returns a Function implemented by the two given closures. Both are required: NewOperation
// fails if any of them is nil.
func FunctionOf(eval func(inputs [][]float64, out []float64), deriv func(inputs [][]float64, partials [][]float64)) Function {
	return funcPair{eval: eval, deriv: deriv}
}

// OperationConfig configures an Operation block.
type OperationConfig struct {
	// Shape shared by all inputs and the output.
	Shape shapes.Shape

	InNames []string
	OutName string

	Func Function
}

// Operation computes a user-supplied element-wise function `out = f(x_1, ..., x_n)`, with the partials
// given by the function's Derivative.
type Operation struct {
	*base
	cfg OperationConfig
}

var _ Explicit = (*Operation)(nil)

// NewOperation validates the configuration and sets up the block.
func NewOperation(cfg OperationConfig) (*Operation, error) {
	const kind = "operation"
	return construct(kind, func() (*Operation, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		if err := checkNames(kind, cfg.InNames); err != nil {
			return nil, err
		}
		if cfg.Func == nil {
			return nil, configErrorf("%s: Func is required", kind)
		}
		if pair, ok := cfg.Func.(funcPair); ok && (pair.eval == nil || pair.deriv == nil) {
			return nil, configErrorf("%s: Func requires both the evaluation and the derivative functions", kind)
		}
		cfg.InNames = slices.Clone(cfg.InNames)
		b := &Operation{base: newBase(kind, cfg.OutName), cfg: cfg}
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

// Compute implements Explicit.
func (b *Operation) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	b.cfg.Func.Evaluate(flatValues(b.inputs, inputs), outputs[b.cfg.OutName].Flat())
	return nil
}

// ComputePartials implements Explicit.
func (b *Operation) ComputePartials(inputs Values, jac Jacobian) error {
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
	b.cfg.Func.Derivative(flatValues(b.inputs, inputs), partials)
	return nil
}
