// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package subscripts implements the index algebra behind the sparse Jacobians of tensor blocks.
//
// Every reshape-like operation (contraction, expansion, reordering, cross-product) is described by a
// Mapping: one einsum-style label per axis, partitioned in the labels of the input, of an auxiliary
// all-ones operand and of the output. Evaluating the same equation on MultiIndex tensors (whose
// elements are their own flat indices) yields the rows and columns of the Jacobian, without ever
// materializing it densely.
//
// Labels are assigned left to right from Alphabet, so the subscript strings are reproducible.
package subscripts

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/tensors"
	"github.com/gomlx/tensorblocks/pkg/support/sets"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidAxes is wrapped by errors reporting out-of-range or repeated axes.
	ErrInvalidAxes = errors.New("invalid axes")

	// ErrShapeMismatch is wrapped by errors reporting shapes that don't match their mapping.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidEquation is wrapped by errors parsing Einsum equations or subscript strings.
	ErrInvalidEquation = errors.New("invalid einsum equation")
)

// Alphabet used to label axes, in order. It limits the rank of the shapes handled to len(Alphabet).
const Alphabet = "abcdefghijklmnopqrstuvwxyz"

// MaxRank is the largest rank that can be labeled.
const MaxRank = len(Alphabet)

// MultiIndex returns a tensor with the given shape where each element holds its own row-major flat index.
// That is, the equivalent of `arange(size).reshape(shape)`.
func MultiIndex(shape shapes.Shape) *tensors.Tensor[int] {
	t, err := tensors.FromFlatData(shape, xslices.Iota(0, shape.Size()))
	if err != nil {
		panic(err)
	}
	return t
}

// Mapping describes an operation between an input tensor and an output tensor, with an auxiliary
// all-ones operand carrying the axes that are broadcast into or summed out of the input.
//
// The einsum equation `Input,Auxiliary->Output` evaluated over the input and `Ones(AuxiliaryShape)`
// computes the operation. The order of the labels in each string matches the axis order of the
// corresponding shape.
type Mapping struct {
	Input, Auxiliary, Output                string
	InputShape, AuxiliaryShape, OutputShape shapes.Shape
}

// Equation returns the einsum equation of the mapping, in the form `"in,aux->out"`.
// Aux is empty (a scalar operand) if there are no special axes.
func (m Mapping) Equation() string {
	return fmt.Sprintf("%s,%s->%s", m.Input, m.Auxiliary, m.Output)
}

// Transpose returns the mapping of the "opposite" operation, swapping input and output: the
// transpose of an expansion is a contraction, and vice-versa.
func (m Mapping) Transpose() Mapping {
	return Mapping{
		Input: m.Output, Auxiliary: m.Auxiliary, Output: m.Input,
		InputShape: m.OutputShape, AuxiliaryShape: m.AuxiliaryShape, OutputShape: m.InputShape,
	}
}

// String implements fmt.Stringer.
func (m Mapping) String() string {
	return fmt.Sprintf("%s (in=%s, aux=%s, out=%s)", m.Equation(), m.InputShape, m.AuxiliaryShape, m.OutputShape)
}

// Ones returns the all-ones auxiliary operand of the mapping, of the given type.
func Ones[T tensors.Number](m Mapping) *tensors.Tensor[T] {
	ones := tensors.FromShape[T](m.AuxiliaryShape)
	ones.Fill(1)
	return ones
}

// Apply evaluates the mapping on x, which must be shaped as InputShape.
func Apply[T tensors.Number](m Mapping, x *tensors.Tensor[T]) (*tensors.Tensor[T], error) {
	if !x.Shape().Equal(m.InputShape) {
		return nil, errors.Wrapf(ErrShapeMismatch, "mapping %s applied to tensor shaped %s", m, x.Shape())
	}
	return Einsum(m.Equation(), x, Ones[T](m))
}

// Compose assigns one label per axis of shape and partitions the axes into "kept" axes and the
// given "special" axes.
//
// The returned mapping broadcasts the kept axes (Input) along the special axes (Auxiliary) into the
// full shape (Output), that is, an expansion. Use Transpose (or Contraction) for the summation
// seen from the other side.
//
// With no special axes it degenerates to the identity mapping. It returns an error wrapping
// ErrInvalidAxes if any special axis is outside `[0, rank)` or repeated, or if the rank is larger
// than MaxRank.
func Compose(shape shapes.Shape, specialAxes []int) (Mapping, error) {
	if err := shape.Check(); err != nil {
		return Mapping{}, err
	}
	rank := shape.Rank()
	if rank > MaxRank {
		return Mapping{}, errors.Wrapf(ErrInvalidAxes, "shape %s has rank %d, at most %d axes can be labeled", shape, rank, MaxRank)
	}
	for _, axis := range specialAxes {
		if axis < 0 || axis >= rank {
			return Mapping{}, errors.Wrapf(ErrInvalidAxes, "axis %d out of range [0, %d) for shape %s", axis, rank, shape)
		}
	}
	if axis, found := sets.FirstRepeated(specialAxes); found {
		return Mapping{}, errors.Wrapf(ErrInvalidAxes, "axis %d given more than once in %v", axis, specialAxes)
	}
	special := sets.MakeWith(specialAxes...)

	var kept, aux, full strings.Builder
	var keptDims, auxDims []int
	for axis, dim := range shape.Dimensions {
		label := Alphabet[axis]
		full.WriteByte(label)
		if special.Has(axis) {
			aux.WriteByte(label)
			auxDims = append(auxDims, dim)
		} else {
			kept.WriteByte(label)
			keptDims = append(keptDims, dim)
		}
	}
	return Mapping{
		Input: kept.String(), Auxiliary: aux.String(), Output: full.String(),
		InputShape:     shapes.Shape{Dimensions: keptDims},
		AuxiliaryShape: shapes.Shape{Dimensions: auxDims},
		OutputShape:    shape.Clone(),
	}, nil
}

// Expansion returns the mapping that broadcasts a tensor along the axes expandAxes of shape.
// The input is shaped as shape without expandAxes, the output is shaped as shape.
func Expansion(shape shapes.Shape, expandAxes []int) (Mapping, error) {
	return Compose(shape, expandAxes)
}

// Contraction returns the mapping that sums a tensor shaped as shape over the axes contractAxes.
// The output is shaped as shape without contractAxes.
func Contraction(shape shapes.Shape, contractAxes []int) (Mapping, error) {
	m, err := Compose(shape, contractAxes)
	if err != nil {
		return Mapping{}, err
	}
	return m.Transpose(), nil
}

// Identity returns the mapping with no special axes between inShape and outShape, which must be equal.
// Otherwise, it returns an error wrapping ErrShapeMismatch.
func Identity(inShape, outShape shapes.Shape) (Mapping, error) {
	if !inShape.Equal(outShape) {
		return Mapping{}, errors.Wrapf(ErrShapeMismatch, "identity mapping requires equal shapes, got %s and %s", inShape, outShape)
	}
	return Compose(inShape, nil)
}

// Permutation returns the mapping that reorders the axes of a tensor shaped inShape, labeled by
// inSubscripts, into the order of outSubscripts. E.g.: `Permutation("abc", "cab", shape)`.
//
// Both subscript strings must hold one distinct letter per axis of inShape, and the same set of letters.
func Permutation(inSubscripts, outSubscripts string, inShape shapes.Shape) (Mapping, error) {
	if err := inShape.Check(); err != nil {
		return Mapping{}, err
	}
	inDesc, err := newOperandDesc(inSubscripts)
	if err != nil {
		return Mapping{}, err
	}
	outDesc, err := newOperandDesc(outSubscripts)
	if err != nil {
		return Mapping{}, err
	}
	if len(inDesc) != inShape.Rank() {
		return Mapping{}, errors.Wrapf(ErrShapeMismatch, "input subscripts %q don't match the rank of shape %s", inSubscripts, inShape)
	}
	if !sets.MakeWith(inDesc...).Equal(sets.MakeWith(outDesc...)) {
		return Mapping{}, errors.Wrapf(ErrInvalidAxes, "output subscripts %q must be a permutation of input subscripts %q",
			outSubscripts, inSubscripts)
	}
	outDims := make([]int, len(outDesc))
	for ii, label := range outDesc {
		outDims[ii] = inShape.Dimensions[slices.Index(inDesc, label)]
	}
	return Mapping{
		Input: inSubscripts, Output: outSubscripts,
		InputShape: inShape.Clone(), OutputShape: shapes.Shape{Dimensions: outDims},
	}, nil
}

// Permutation returns, for a mapping created with Permutation (or any mapping whose output labels
// all appear in the input), the input axis of each output axis.
func (m Mapping) Permutation() []int {
	in := []rune(m.Input)
	out := []rune(m.Output)
	perm := make([]int, len(out))
	for ii, label := range out {
		perm[ii] = slices.Index(in, label)
	}
	return perm
}

// InverseSubscripts returns, for a permutation given as "output axis ii comes from input axis perm[ii]",
// a pair of subscript strings for the reorder and the permutation inverting it.
func InverseSubscripts(perm []int) (in, out string) {
	inverse := make([]byte, len(perm))
	for ii, p := range perm {
		inverse[p] = Alphabet[ii]
	}
	return Alphabet[:len(perm)], string(inverse)
}

// CrossProduct returns the mapping for a tensor whose shape is shapeNo3 with a length-3 "vector" axis
// inserted at position vectorAxis. The kept labels (Input) are those of shapeNo3, the special label
// (Auxiliary) is the vector axis, and Output is the full shape.
//
// vectorAxis must be in `[0, rank(shapeNo3)]`, otherwise it returns an error wrapping ErrInvalidAxes.
func CrossProduct(shapeNo3 shapes.Shape, vectorAxis int) (Mapping, error) {
	if vectorAxis < 0 || vectorAxis > shapeNo3.Rank() {
		return Mapping{}, errors.Wrapf(ErrInvalidAxes, "vector axis %d out of range [0, %d] for shape %s",
			vectorAxis, shapeNo3.Rank(), shapeNo3)
	}
	full, err := shapeNo3.InsertAxis(vectorAxis, 3)
	if err != nil {
		return Mapping{}, err
	}
	return Compose(full, []int{vectorAxis})
}

// GroupedIndices returns the flat indices of the elements of a tensor shaped OutputShape, reordered so the
// kept axes (Input labels) are major and the special axes (Auxiliary labels) are minor.
//
// For a CrossProduct mapping, element `3*p + i` is the flat index of vector component i at the kept position p,
// regardless of where the vector axis sits in the tensor.
func (m Mapping) GroupedIndices() ([]int, error) {
	grouped, err := Einsum(m.Output+"->"+m.Input+m.Auxiliary, MultiIndex(m.OutputShape))
	if err != nil {
		return nil, err
	}
	return grouped.Flat(), nil
}
