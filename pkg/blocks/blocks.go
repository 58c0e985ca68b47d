// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package blocks implements differentiable tensor operation blocks: named units with input and output
// ports of fixed shapes, a forward evaluation and a declared sparse Jacobian.
//
// A block is created (and set up) from a typed configuration, e.g. NewElementwiseMin(MinConfig{...}).
// The constructor validates the configuration, registers the ports and fixes the sparsity pattern of
// every partial derivative. Afterwards only numeric values change: Compute fills the outputs, and
// ComputePartials refreshes the values of the non-constant partials.
//
// The host framework owns the storage: Values maps port names to tensors, and Jacobian maps each
// declared partial to a sparse.Matrix, created with NewValues and NewJacobian.
//
// Blocks are not safe for concurrent use: calls to one block instance must be serialized.
package blocks

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/core/tensors"
	"github.com/gomlx/tensorblocks/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrInvalidConfig is wrapped by all errors returned by block constructors.
	ErrInvalidConfig = errors.New("invalid block configuration")

	// ErrPortMismatch is wrapped by errors reporting missing values or values of the wrong shape.
	ErrPortMismatch = errors.New("port mismatch")

	// ErrNotLinearized is returned by Implicit.SolveLinear if Linearize was never called.
	ErrNotLinearized = errors.New("block was not linearized")

	// ErrNotBracketed is returned by a strict Bracketed block if the residual doesn't change sign over the bracket.
	ErrNotBracketed = errors.New("root not bracketed")
)

// Block is the structure shared by all blocks: ports and declared partials are fixed at construction.
type Block interface {
	// Name of the block, for logging and reports.
	Name() string

	// Inputs ports, in declaration order.
	Inputs() []Port

	// Outputs ports, in declaration order.
	Outputs() []Port

	// Partials declared by the block: one per (output, input) pair with non-zero derivatives.
	Partials() []*PartialDecl
}

// Explicit blocks compute their outputs directly from their inputs.
type Explicit interface {
	Block

	// Compute evaluates the outputs from the inputs.
	Compute(inputs, outputs Values) error

	// ComputePartials refreshes the values of the non-constant partials in jac. The sparsity is never changed.
	ComputePartials(inputs Values, jac Jacobian) error
}

// Implicit blocks define their outputs as the root of a residual function.
type Implicit interface {
	Block

	// ApplyNonlinear evaluates the residuals given inputs and (tentative) outputs.
	ApplyNonlinear(inputs, outputs, residuals Values) error

	// SolveNonlinear sets the outputs to the root of the residuals for the given inputs.
	SolveNonlinear(inputs, outputs Values) error

	// Linearize refreshes the partials of the residuals (keyed by output name) with respect to the inputs,
	// and caches whatever SolveLinear needs.
	Linearize(inputs, outputs Values, jac Jacobian) error

	// SolveLinear solves the linearized system: in ModeForward it updates dOutputs from dResiduals, in
	// ModeReverse it updates dResiduals from dOutputs.
	SolveLinear(dOutputs, dResiduals Values, mode Mode) error
}

// Port is a named input or output of a block, with a fixed shape.
type Port struct {
	Name  string
	Shape shapes.Shape
}

// String implements fmt.Stringer.
func (p Port) String() string { return p.Name + p.Shape.String() }

// PartialKey identifies the partial derivative of output Of with respect to input Wrt.
type PartialKey struct {
	Of, Wrt string
}

// String implements fmt.Stringer.
func (k PartialKey) String() string { return fmt.Sprintf("d%s/d%s", k.Of, k.Wrt) }

// PartialDecl declares the fixed sparsity of a partial derivative: rows index the flattened output,
// columns the flattened input.
type PartialDecl struct {
	PartialKey
	sparse.Pattern

	// Values of a constant partial, fixed at construction. It is nil for partials refreshed by
	// ComputePartials (or Linearize).
	Values []float64
}

// IsConstant returns whether the partial values are fixed at construction.
func (d *PartialDecl) IsConstant() bool { return d.Values != nil }

// Values maps port names to their values.
type Values map[string]*tensors.Tensor[float64]

// NewValues allocates zero-valued tensors for the given ports.
func NewValues(ports []Port) Values {
	v := make(Values, len(ports))
	for _, p := range ports {
		v[p.Name] = tensors.FromShape[float64](p.Shape)
	}
	return v
}

// Jacobian maps each declared partial to its sparse matrix.
type Jacobian map[PartialKey]*sparse.Matrix

// NewJacobian allocates the matrices for the partials declared by b, with the values of the
// constant partials already set.
func NewJacobian(b Block) Jacobian {
	jac := make(Jacobian, len(b.Partials()))
	for _, decl := range b.Partials() {
		m := sparse.NewMatrix(decl.Pattern)
		if decl.IsConstant() {
			m.SetValues(decl.Values)
		}
		jac[decl.PartialKey] = m
	}
	return jac
}

// base holds the ports and partials shared by all blocks.
type base struct {
	name            string
	inputs, outputs []Port
	partials        []*PartialDecl
	names           sets.Set[string]
	partialsByKey   map[PartialKey]*PartialDecl
}

func newBase(kind, outName string) *base {
	return &base{
		name:          fmt.Sprintf("%s(%s)", kind, outName),
		names:         sets.Make[string](),
		partialsByKey: make(map[PartialKey]*PartialDecl),
	}
}

// Name implements Block.
func (b *base) Name() string { return b.name }

// Inputs implements Block.
func (b *base) Inputs() []Port { return b.inputs }

// Outputs implements Block.
func (b *base) Outputs() []Port { return b.outputs }

// Partials implements Block.
func (b *base) Partials() []*PartialDecl { return b.partials }

// String implements fmt.Stringer.
func (b *base) String() string {
	var sb strings.Builder
	sb.WriteString(b.name)
	sb.WriteString(": ")
	for ii, p := range b.inputs {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(" -> ")
	for ii, p := range b.outputs {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	return sb.String()
}

func configErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

func (b *base) addPort(ports *[]Port, kind, name string, shape shapes.Shape) error {
	if name == "" {
		return configErrorf("%s: empty %s name", b.name, kind)
	}
	if err := shape.Check(); err != nil {
		return configErrorf("%s: %s %q: %v", b.name, kind, name, err)
	}
	if !b.names.InsertNew(name) {
		return configErrorf("%s: port name %q used more than once", b.name, name)
	}
	*ports = append(*ports, Port{Name: name, Shape: shape.Clone()})
	return nil
}

func (b *base) addInput(name string, shape shapes.Shape) error {
	return b.addPort(&b.inputs, "input", name, shape)
}

func (b *base) addOutput(name string, shape shapes.Shape) error {
	return b.addPort(&b.outputs, "output", name, shape)
}

func findPort(ports []Port, name string) (Port, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// declarePartials registers the sparsity of ∂of/∂wrt. values is nil for non-constant partials.
func (b *base) declarePartials(of, wrt string, pattern sparse.Pattern, values []float64) error {
	ofPort, found := findPort(b.outputs, of)
	if !found {
		return configErrorf("%s: partials of unknown output %q", b.name, of)
	}
	wrtPort, found := findPort(b.inputs, wrt)
	if !found {
		// Implicit blocks also declare the partials of residuals with respect to their outputs.
		wrtPort, found = findPort(b.outputs, wrt)
	}
	if !found {
		return configErrorf("%s: partials with respect to unknown port %q", b.name, wrt)
	}
	if pattern.NumRows != ofPort.Shape.Size() || pattern.NumCols != wrtPort.Shape.Size() {
		return configErrorf("%s: pattern %s for d%s/d%s doesn't match ports %s and %s",
			b.name, pattern, of, wrt, ofPort, wrtPort)
	}
	if err := pattern.Validate(); err != nil {
		return configErrorf("%s: d%s/d%s: %v", b.name, of, wrt, err)
	}
	if values != nil && len(values) != pattern.NNZ() {
		return configErrorf("%s: d%s/d%s has %d constant values for %d entries", b.name, of, wrt, len(values), pattern.NNZ())
	}
	key := PartialKey{Of: of, Wrt: wrt}
	if _, found := b.partialsByKey[key]; found {
		return configErrorf("%s: %s declared more than once", b.name, key)
	}
	decl := &PartialDecl{PartialKey: key, Pattern: pattern, Values: values}
	b.partials = append(b.partials, decl)
	b.partialsByKey[key] = decl
	return nil
}

// logSetup reports the block structure once its construction is complete.
func (b *base) logSetup() {
	if !klog.V(1).Enabled() {
		return
	}
	var nnz int
	for _, decl := range b.partials {
		nnz += decl.NNZ()
	}
	klog.V(1).Infof("blocks: set up %s (%d partials, nnz=%d)", b, len(b.partials), nnz)
}

// checkValues verifies that values holds a tensor with the right shape for each of the ports.
func (b *base) checkValues(kind string, ports []Port, values Values) error {
	for _, p := range ports {
		t, found := values[p.Name]
		if !found || t == nil {
			return errors.Wrapf(ErrPortMismatch, "%s: missing %s %q", b.name, kind, p.Name)
		}
		if !t.Shape().Equal(p.Shape) {
			return errors.Wrapf(ErrPortMismatch, "%s: %s %q has shape %s, expected %s", b.name, kind, p.Name, t.Shape(), p.Shape)
		}
	}
	return nil
}

// flatValues returns the flat values of the given ports, in order. Values must have been checked already.
func flatValues(ports []Port, values Values) [][]float64 {
	flat := make([][]float64, len(ports))
	for ii, p := range ports {
		flat[ii] = values[p.Name].Flat()
	}
	return flat
}

func (b *base) checkInputsOutputs(inputs, outputs Values) error {
	if err := b.checkValues("input", b.inputs, inputs); err != nil {
		return err
	}
	return b.checkValues("output", b.outputs, outputs)
}

// partialValues returns the values slice of the partial of/wrt in jac, after checking it matches the declaration.
func (b *base) partialValues(jac Jacobian, of, wrt string) ([]float64, error) {
	key := PartialKey{Of: of, Wrt: wrt}
	m, found := jac[key]
	if !found || m == nil {
		return nil, errors.Wrapf(ErrPortMismatch, "%s: Jacobian missing %s", b.name, key)
	}
	if decl := b.partialsByKey[key]; decl == nil || len(m.Values) != decl.NNZ() {
		return nil, errors.Wrapf(ErrPortMismatch, "%s: Jacobian %s has %d values, expected a matrix created by NewJacobian",
			b.name, key, len(m.Values))
	}
	return m.Values, nil
}

// construct runs the block builder, converting panics raised by programmer errors in the core
// packages into configuration errors.
func construct[B Block](kind string, build func() (B, error)) (block B, err error) {
	var buildErr error
	exc := exceptions.TryCatch[error](func() { block, buildErr = build() })
	if exc != nil {
		var zero B
		return zero, errors.Wrapf(ErrInvalidConfig, "%s: %v", kind, exc)
	}
	if buildErr != nil {
		var zero B
		return zero, buildErr
	}
	return block, nil
}

// checkNames verifies the list of input names is not empty.
func checkNames(kind string, names []string) error {
	if len(names) == 0 {
		return configErrorf("%s: at least one input name is required", kind)
	}
	return nil
}

// checkShape wraps an invalid shape as a configuration error.
func checkShape(kind, field string, shape shapes.Shape) error {
	if err := shape.Check(); err != nil {
		return configErrorf("%s: %s: %v", kind, field, err)
	}
	return nil
}
