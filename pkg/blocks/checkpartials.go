// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"math"

	"github.com/pkg/errors"
)

// DefaultCheckStep is the finite-difference step used by CheckPartials if none is given.
const DefaultCheckStep = 1e-6

// PartialCheck compares the Jacobian declared by a block for one (output, input) pair against
// central finite differences.
type PartialCheck struct {
	PartialKey

	// Declared is false for pairs with no declared partials: their finite differences should be all zero.
	Declared bool

	// NNZ of the declared pattern.
	NNZ int

	// MaxError is the largest difference between the declared and the finite-difference values over the
	// declared positions, relative to the declared value where its magnitude is larger than 1.
	MaxError float64

	// MaxUndeclared is the largest finite-difference magnitude outside the declared positions.
	MaxUndeclared float64
}

// Passed returns whether both errors are within tol.
func (c PartialCheck) Passed(tol float64) bool {
	return c.MaxError <= tol && c.MaxUndeclared <= tol
}

// cloneValues returns a deep copy of v, merged with the values of extra (if any).
func cloneValues(v Values, extra ...Values) Values {
	out := make(Values, len(v))
	for _, values := range append([]Values{v}, extra...) {
		for name, t := range values {
			out[name] = t.Clone()
		}
	}
	return out
}

// CheckPartials evaluates the partials declared by b at the given inputs and compares them, for every
// pair of output and input, with central finite differences of step (DefaultCheckStep if <= 0).
//
// Explicit blocks are differentiated through Compute and ComputePartials. Implicit blocks are first
// solved with SolveNonlinear, and then their residuals are differentiated through ApplyNonlinear and
// Linearize, with respect to both inputs and outputs.
//
// The inputs are not modified.
func CheckPartials(b Block, inputs Values, step float64) ([]PartialCheck, error) {
	if step <= 0 {
		step = DefaultCheckStep
	}
	var (
		point    Values
		wrtPorts = b.Inputs()
		eval     func(point Values) (Values, error)
		jac      = NewJacobian(b)
	)
	switch blk := b.(type) {
	case Explicit:
		point = cloneValues(inputs)
		eval = func(point Values) (Values, error) {
			outputs := NewValues(b.Outputs())
			return outputs, blk.Compute(point, outputs)
		}
		if err := blk.ComputePartials(point, jac); err != nil {
			return nil, errors.WithMessagef(err, "checking partials of %s", b.Name())
		}
	case Implicit:
		outputs := NewValues(b.Outputs())
		if err := blk.SolveNonlinear(inputs, outputs); err != nil {
			return nil, errors.WithMessagef(err, "checking partials of %s", b.Name())
		}
		point = cloneValues(inputs, outputs)
		wrtPorts = append(append([]Port(nil), b.Inputs()...), b.Outputs()...)
		eval = func(point Values) (Values, error) {
			residuals := NewValues(b.Outputs())
			return residuals, blk.ApplyNonlinear(point, point, residuals)
		}
		if err := blk.Linearize(point, point, jac); err != nil {
			return nil, errors.WithMessagef(err, "checking partials of %s", b.Name())
		}
	default:
		return nil, errors.Errorf("block %s is neither Explicit nor Implicit", b.Name())
	}

	var checks []PartialCheck
	for _, wrt := range wrtPorts {
		if _, found := point[wrt.Name]; !found {
			return nil, errors.Wrapf(ErrPortMismatch, "checking partials of %s: missing input %q", b.Name(), wrt.Name)
		}
		x := point[wrt.Name].Flat()

		// fd[of][row][col]
		fd := make([][][]float64, len(b.Outputs()))
		for ii, of := range b.Outputs() {
			fd[ii] = make([][]float64, of.Shape.Size())
			for row := range fd[ii] {
				fd[ii][row] = make([]float64, len(x))
			}
		}
		for col := range x {
			original := x[col]
			x[col] = original + step
			plus, err := eval(point)
			if err != nil {
				return nil, errors.WithMessagef(err, "checking partials of %s", b.Name())
			}
			x[col] = original - step
			minus, err := eval(point)
			if err != nil {
				return nil, errors.WithMessagef(err, "checking partials of %s", b.Name())
			}
			x[col] = original
			for ii, of := range b.Outputs() {
				p, m := plus[of.Name].Flat(), minus[of.Name].Flat()
				for row := range p {
					fd[ii][row][col] = (p[row] - m[row]) / (2 * step)
				}
			}
		}

		for ii, of := range b.Outputs() {
			check := PartialCheck{PartialKey: PartialKey{Of: of.Name, Wrt: wrt.Name}}
			var declared [][]float64
			var inPattern [][]bool
			if m, found := jac[check.PartialKey]; found {
				check.Declared = true
				check.NNZ = m.NNZ()
				declared = m.Dense()
				inPattern = make([][]bool, m.NumRows)
				for row := range inPattern {
					inPattern[row] = make([]bool, m.NumCols)
				}
				for k, row := range m.Rows {
					inPattern[row][m.Cols[k]] = true
				}
			}
			for row, fdRow := range fd[ii] {
				for col, fdValue := range fdRow {
					if check.Declared && inPattern[row][col] {
						value := declared[row][col]
						check.MaxError = max(check.MaxError, math.Abs(value-fdValue)/max(1, math.Abs(value)))
					} else {
						check.MaxUndeclared = max(check.MaxUndeclared, math.Abs(fdValue))
					}
				}
			}
			checks = append(checks, check)
		}
	}
	return checks, nil
}
