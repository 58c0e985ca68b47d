// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"slices"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
)

// Term of a linear combination: Coeff * input Name.
type Term struct {
	Name  string
	Coeff float64
}

// LinearCombinationConfig configures a LinearCombination block.
//
// The terms are given in exactly one of three forms: Terms; InNames with optional Coeffs (all 1 if nil);
// or CoeffsByName, whose inputs are declared sorted by name.
type LinearCombinationConfig struct {
	// Shape shared by all inputs and the output.
	Shape shapes.Shape

	OutName string

	Terms []Term

	InNames []string
	Coeffs  []float64

	CoeffsByName map[string]float64

	// Constant added to the output. Alternatively, ConstantArray holds one value per element, in which
	// case Constant must be 0.
	Constant      float64
	ConstantArray []float64
}

// terms resolves the tagged union of the configuration into a list of terms.
func (cfg *LinearCombinationConfig) terms(kind string) ([]Term, error) {
	var forms int
	if cfg.Terms != nil {
		forms++
	}
	if cfg.InNames != nil {
		forms++
	}
	if cfg.CoeffsByName != nil {
		forms++
	}
	if forms != 1 {
		return nil, configErrorf("%s: exactly one of Terms, InNames or CoeffsByName must be set, got %d", kind, forms)
	}
	switch {
	case cfg.Terms != nil:
		if len(cfg.Coeffs) > 0 {
			return nil, configErrorf("%s: Coeffs can only be used with InNames", kind)
		}
		return slices.Clone(cfg.Terms), nil
	case cfg.InNames != nil:
		coeffs := cfg.Coeffs
		if coeffs == nil {
			coeffs = xslices.SliceWithValue(len(cfg.InNames), 1.0)
		} else if len(coeffs) != len(cfg.InNames) {
			return nil, configErrorf("%s: got %d coefficients for %d inputs", kind, len(coeffs), len(cfg.InNames))
		}
		terms := make([]Term, len(cfg.InNames))
		for ii, name := range cfg.InNames {
			terms[ii] = Term{Name: name, Coeff: coeffs[ii]}
		}
		return terms, nil
	default:
		if len(cfg.Coeffs) > 0 {
			return nil, configErrorf("%s: Coeffs can only be used with InNames", kind)
		}
		return xslices.Map(xslices.SortedKeys(cfg.CoeffsByName), func(name string) Term {
			return Term{Name: name, Coeff: cfg.CoeffsByName[name]}
		}), nil
	}
}

// LinearCombination computes `out = constant + Σ_i c_i * x_i`, element-wise. Its partials are constant.
type LinearCombination struct {
	*base
	outName  string
	terms    []Term
	constant []float64
}

var _ Explicit = (*LinearCombination)(nil)

// NewLinearCombination validates the configuration and sets up the block.
func NewLinearCombination(cfg LinearCombinationConfig) (*LinearCombination, error) {
	const kind = "linear_combination"
	return construct(kind, func() (*LinearCombination, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		terms, err := cfg.terms(kind)
		if err != nil {
			return nil, err
		}
		if len(terms) == 0 {
			return nil, configErrorf("%s: at least one term is required", kind)
		}
		var scalar *float64
		if cfg.Constant != 0 {
			scalar = &cfg.Constant
		}
		constant, err := constantArray(kind, cfg.Shape, scalar, 0, cfg.ConstantArray)
		if err != nil {
			return nil, err
		}
		b := &LinearCombination{base: newBase(kind, cfg.OutName), outName: cfg.OutName, terms: terms, constant: constant}
		if err := b.addOutput(cfg.OutName, cfg.Shape); err != nil {
			return nil, err
		}
		size := cfg.Shape.Size()
		for _, term := range terms {
			if err := b.addInput(term.Name, cfg.Shape); err != nil {
				return nil, err
			}
			values := xslices.SliceWithValue(size, term.Coeff)
			if err := b.declarePartials(cfg.OutName, term.Name, sparse.Diagonal(size), values); err != nil {
				return nil, err
			}
		}
		b.logSetup()
		return b, nil
	})
}

// Terms returns the resolved terms, in the order the inputs were declared.
func (b *LinearCombination) Terms() []Term { return slices.Clone(b.terms) }

// Compute implements Explicit.
func (b *LinearCombination) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	out := outputs[b.outName].Flat()
	copy(out, b.constant)
	for ii, x := range flatValues(b.inputs, inputs) {
		coeff := b.terms[ii].Coeff
		for elem, v := range x {
			out[elem] += coeff * v
		}
	}
	return nil
}

// ComputePartials implements Explicit. The partials are constant, so there is nothing to refresh.
func (b *LinearCombination) ComputePartials(inputs Values, _ Jacobian) error {
	return b.checkValues("input", b.inputs, inputs)
}
