// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"math"
	"slices"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Residual is the user-supplied residual function of a Bracketed block, solved element-wise for x.
//
// All slices are flattened in row-major order, with the size of the block shape. inputs holds the values
// of the block inputs and must not be modified.
type Residual interface {
	// Evaluate fills r with the residual at x.
	Evaluate(inputs Values, x, r []float64)

	// Derivatives fills, element-wise, dInputs[name] with ∂r/∂input for each input name and dx with ∂r/∂x.
	Derivatives(inputs Values, x []float64, dInputs map[string][]float64, dx []float64)
}

type residualPair struct {
	eval   func(inputs Values, x, r []float64)
	derivs func(inputs Values, x []float64, dInputs map[string][]float64, dx []float64)
}

func (p residualPair) Evaluate(inputs Values, x, r []float64) { p.eval(inputs, x, r) }

func (p residualPair) Derivatives(inputs Values, x []float64, dInputs map[string][]float64, dx []float64) {
	p.derivs(inputs, x, dInputs, dx)
}

// ResidualOf returns a Residual implemented by the two given closures. Both are required: NewBracketed
// fails if any of them is nil.
func ResidualOf(eval func(inputs Values, x, r []float64),
	derivs func(inputs Values, x []float64, dInputs map[string][]float64, dx []float64)) Residual {
	return residualPair{eval: eval, derivs: derivs}
}

// Monotonicity of the residual with respect to the unknown, which selects which end of the bracket
// is moved to the midpoint.
type Monotonicity int

//go:generate go tool enumer -type=Monotonicity -trimprefix=Monotonicity -transform=snake -values -text bracketed.go

const (
	// MonotonicityIncreasing residuals are negative below the root: a non-negative residual at the
	// midpoint moves the upper end.
	MonotonicityIncreasing Monotonicity = iota

	// MonotonicityDecreasing residuals are positive below the root: a non-negative residual at the
	// midpoint moves the lower end.
	MonotonicityDecreasing

	// MonotonicityAuto selects, per element, increasing or decreasing by comparing the residuals at
	// both ends of the bracket. Ties are taken as increasing.
	MonotonicityAuto
)

// DefaultMaxIter is the number of bisection iterations used if BracketedConfig.MaxIter is 0.
const DefaultMaxIter = 50

// BracketedConfig configures a Bracketed block.
type BracketedConfig struct {
	// Shape shared by all inputs and the output.
	Shape shapes.Shape

	InNames []string
	OutName string

	Residual Residual

	// MaxIter is the fixed number of bisection iterations. If 0, DefaultMaxIter is used.
	MaxIter int

	// Lower and Upper define the initial bracket, the same for every element. If both are 0, [0, 1] is used.
	Lower, Upper float64

	Monotonicity Monotonicity

	// Strict makes SolveNonlinear fail with ErrNotBracketed if the residual doesn't change sign between
	// the ends of the initial bracket, for any element. Otherwise, the solve is best-effort: it always
	// returns the final midpoint, and only logs a warning.
	Strict bool
}

// SolveStats reports on the last SolveNonlinear call of a Bracketed block.
type SolveStats struct {
	// Iterations of bisection executed.
	Iterations int

	// MaxWidth is the largest final bracket width over all elements.
	MaxWidth float64

	// Unchanged is the number of elements whose residual never changed sign during the bisection:
	// their bracket most likely doesn't contain a root.
	Unchanged int
}

// Bracketed is an implicit block whose output is the root, element-wise, of a residual function
// r(inputs, out) = 0, found by a fixed number of bisection steps over a bracket.
//
// Its linearization is diagonal: each element of the residual depends only on the same element of the
// inputs and of the output.
type Bracketed struct {
	*base
	cfg       BracketedConfig
	lastSolve SolveStats

	// dResidualDOut is the diagonal ∂r/∂out cached by the last Linearize.
	dResidualDOut []float64
}

var _ Implicit = (*Bracketed)(nil)

// NewBracketed validates the configuration and sets up the block.
func NewBracketed(cfg BracketedConfig) (*Bracketed, error) {
	const kind = "bracketed"
	return construct(kind, func() (*Bracketed, error) {
		if err := checkShape(kind, "Shape", cfg.Shape); err != nil {
			return nil, err
		}
		if err := checkNames(kind, cfg.InNames); err != nil {
			return nil, err
		}
		if cfg.Residual == nil {
			return nil, configErrorf("%s: Residual is required", kind)
		}
		if pair, ok := cfg.Residual.(residualPair); ok && (pair.eval == nil || pair.derivs == nil) {
			return nil, configErrorf("%s: Residual requires both the evaluation and the derivatives functions", kind)
		}
		if cfg.MaxIter == 0 {
			cfg.MaxIter = DefaultMaxIter
		}
		if cfg.MaxIter < 0 {
			return nil, configErrorf("%s: MaxIter must be > 0, got %d", kind, cfg.MaxIter)
		}
		if cfg.Lower == 0 && cfg.Upper == 0 {
			cfg.Upper = 1
		}
		if !(cfg.Lower < cfg.Upper) || math.IsInf(cfg.Lower, 0) || math.IsInf(cfg.Upper, 0) {
			return nil, configErrorf("%s: invalid bracket [%g, %g]", kind, cfg.Lower, cfg.Upper)
		}
		if !cfg.Monotonicity.IsAMonotonicity() {
			return nil, configErrorf("%s: invalid %s", kind, cfg.Monotonicity)
		}
		cfg.InNames = slices.Clone(cfg.InNames)
		b := &Bracketed{base: newBase(kind, cfg.OutName), cfg: cfg}
		if err := b.addOutput(cfg.OutName, cfg.Shape); err != nil {
			return nil, err
		}
		diagonal := sparse.Diagonal(cfg.Shape.Size())
		for _, name := range cfg.InNames {
			if err := b.addInput(name, cfg.Shape); err != nil {
				return nil, err
			}
			if err := b.declarePartials(cfg.OutName, name, diagonal, nil); err != nil {
				return nil, err
			}
		}
		if err := b.declarePartials(cfg.OutName, cfg.OutName, diagonal, nil); err != nil {
			return nil, err
		}
		b.logSetup()
		return b, nil
	})
}

// LastSolve returns the statistics of the last call to SolveNonlinear.
func (b *Bracketed) LastSolve() SolveStats { return b.lastSolve }

// ApplyNonlinear implements Implicit: residuals of the output are evaluated at the current outputs.
func (b *Bracketed) ApplyNonlinear(inputs, outputs, residuals Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	if err := b.checkValues("residual", b.outputs, residuals); err != nil {
		return err
	}
	b.cfg.Residual.Evaluate(inputs, outputs[b.cfg.OutName].Flat(), residuals[b.cfg.OutName].Flat())
	return nil
}

// increasing returns, for each element, whether the residual is taken as increasing in the unknown,
// given the residuals at both ends of the initial bracket.
func (b *Bracketed) increasing(rLower, rUpper []float64) []bool {
	size := b.cfg.Shape.Size()
	switch b.cfg.Monotonicity {
	case MonotonicityDecreasing:
		return make([]bool, size)
	case MonotonicityAuto:
		inc := make([]bool, size)
		for elem := range size {
			inc[elem] = rLower[elem] <= rUpper[elem]
		}
		return inc
	default:
		return xslices.SliceWithValue(size, true)
	}
}

// SolveNonlinear implements Implicit: it runs MaxIter bisection steps on every element, with no early
// exit, and sets the output to the midpoint of the final bracket. Elements whose residual is exactly
// zero at one end of the initial bracket are set to that end.
func (b *Bracketed) SolveNonlinear(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	size := b.cfg.Shape.Size()
	lower := xslices.SliceWithValue(size, b.cfg.Lower)
	upper := xslices.SliceWithValue(size, b.cfg.Upper)
	x := make([]float64, size)
	r := make([]float64, size)

	rLower := make([]float64, size)
	rUpper := make([]float64, size)
	b.cfg.Residual.Evaluate(inputs, lower, rLower)
	b.cfg.Residual.Evaluate(inputs, upper, rUpper)
	increasing := b.increasing(rLower, rUpper)
	if b.cfg.Strict {
		for elem := range size {
			lo, hi := rLower[elem], rUpper[elem]
			if !increasing[elem] {
				lo, hi = -lo, -hi
			}
			if !(lo <= 0 && hi >= 0) {
				return errors.Wrapf(ErrNotBracketed, "%s: element %d has residuals %g at %g and %g at %g (%s)",
					b.name, elem, rLower[elem], b.cfg.Lower, rUpper[elem], b.cfg.Upper, b.cfg.Monotonicity)
			}
		}
	}

	sawPositive := make([]bool, size)
	sawNegative := make([]bool, size)
	for range b.cfg.MaxIter {
		for elem := range size {
			x[elem] = 0.5*lower[elem] + 0.5*upper[elem]
		}
		b.cfg.Residual.Evaluate(inputs, x, r)
		for elem, rElem := range r {
			nonNegative := rElem >= 0
			if nonNegative {
				sawPositive[elem] = true
			} else {
				sawNegative[elem] = true
			}
			if nonNegative == increasing[elem] {
				upper[elem] = x[elem]
			} else {
				lower[elem] = x[elem]
			}
		}
	}

	out := outputs[b.cfg.OutName].Flat()
	stats := SolveStats{Iterations: b.cfg.MaxIter}
	for elem := range size {
		switch {
		case rLower[elem] == 0:
			out[elem] = b.cfg.Lower
		case rUpper[elem] == 0:
			out[elem] = b.cfg.Upper
		default:
			out[elem] = 0.5*lower[elem] + 0.5*upper[elem]
			stats.MaxWidth = max(stats.MaxWidth, upper[elem]-lower[elem])
			if !sawPositive[elem] || !sawNegative[elem] {
				stats.Unchanged++
			}
		}
	}
	b.lastSolve = stats
	if stats.Unchanged > 0 {
		klog.Warningf("blocks: %s: residual never changed sign for %d of %d elements, the bracket [%g, %g] may not contain a root",
			b.name, stats.Unchanged, size, b.cfg.Lower, b.cfg.Upper)
	}
	klog.V(2).Infof("blocks: %s solved with %d bisection iterations, max bracket width %g",
		b.name, stats.Iterations, stats.MaxWidth)
	return nil
}

// Linearize implements Implicit: it stores the diagonal partials of the residual with respect to the inputs
// and to the output, and caches the latter for SolveLinear.
func (b *Bracketed) Linearize(inputs, outputs Values, jac Jacobian) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	dInputs := make(map[string][]float64, len(b.cfg.InNames))
	for _, name := range b.cfg.InNames {
		values, err := b.partialValues(jac, b.cfg.OutName, name)
		if err != nil {
			return err
		}
		dInputs[name] = values
	}
	dOut, err := b.partialValues(jac, b.cfg.OutName, b.cfg.OutName)
	if err != nil {
		return err
	}
	b.cfg.Residual.Derivatives(inputs, outputs[b.cfg.OutName].Flat(), dInputs, dOut)
	b.dResidualDOut = slices.Clone(dOut)
	return nil
}

// SolveLinear implements Implicit. The linear system is diagonal: in ModeForward dOutputs accumulates
// dResiduals divided by ∂r/∂out, and in ModeReverse dResiduals accumulates dOutputs divided by ∂r/∂out.
//
// It returns ErrNotLinearized if Linearize was never called.
func (b *Bracketed) SolveLinear(dOutputs, dResiduals Values, mode Mode) error {
	if b.dResidualDOut == nil {
		return errors.Wrapf(ErrNotLinearized, "%s: SolveLinear called before Linearize", b.name)
	}
	if err := b.checkValues("output derivative", b.outputs, dOutputs); err != nil {
		return err
	}
	if err := b.checkValues("residual derivative", b.outputs, dResiduals); err != nil {
		return err
	}
	dOut := dOutputs[b.cfg.OutName].Flat()
	dRes := dResiduals[b.cfg.OutName].Flat()
	switch mode {
	case ModeForward:
		for elem, diag := range b.dResidualDOut {
			dOut[elem] += dRes[elem] / diag
		}
	case ModeReverse:
		for elem, diag := range b.dResidualDOut {
			dRes[elem] += dOut[elem] / diag
		}
	default:
		return errors.Errorf("%s: unknown linear solve mode %s", b.name, mode)
	}
	return nil
}
