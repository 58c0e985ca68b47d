// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sparse

import (
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/subscripts"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
	"github.com/pkg/errors"
)

// broadcastIndices evaluates the expansion mapping m on the MultiIndex of its input: the result holds, for
// every element of the (larger) output, the flat index of the input element it comes from.
func broadcastIndices(m subscripts.Mapping) ([]int, error) {
	broadcast, err := subscripts.Apply(m, subscripts.MultiIndex(m.InputShape))
	if err != nil {
		return nil, err
	}
	return broadcast.Flat(), nil
}

// Contraction returns the pattern of `∂out/∂in` for a sum over axes, described by the contraction mapping m
// (see subscripts.Contraction): one entry per input element, with the rows repeating once per
// combination of the contracted axes (fan-in).
func Contraction(m subscripts.Mapping) (Pattern, error) {
	rows, err := broadcastIndices(m.Transpose())
	if err != nil {
		return Pattern{}, errors.WithMessagef(err, "building contraction pattern for %s", m)
	}
	return Pattern{
		NumRows: m.OutputShape.Size(), NumCols: m.InputShape.Size(),
		Rows: rows, Cols: subscripts.MultiIndex(m.InputShape).Flat(),
	}, nil
}

// Expansion returns the pattern of `∂out/∂in` for a broadcast along new axes, described by the expansion
// mapping m (see subscripts.Expansion): one entry per output element, with the columns repeating
// once per combination of the expanded axes (fan-out).
func Expansion(m subscripts.Mapping) (Pattern, error) {
	cols, err := broadcastIndices(m)
	if err != nil {
		return Pattern{}, errors.WithMessagef(err, "building expansion pattern for %s", m)
	}
	return Pattern{
		NumRows: m.OutputShape.Size(), NumCols: m.InputShape.Size(),
		Rows: subscripts.MultiIndex(m.OutputShape).Flat(), Cols: cols,
	}, nil
}

// Permutation returns the pattern of `∂out/∂in` for an axis reordering described by m
// (see subscripts.Permutation): a permutation matrix, one entry per row and per column.
func Permutation(m subscripts.Mapping) (Pattern, error) {
	cols, err := broadcastIndices(m)
	if err != nil {
		return Pattern{}, errors.WithMessagef(err, "building permutation pattern for %s", m)
	}
	size := m.OutputShape.Size()
	return Pattern{NumRows: size, NumCols: size, Rows: xslices.Iota(0, size), Cols: cols}, nil
}

// Diagonal returns the pattern of an element-wise operation over n elements.
func Diagonal(n int) Pattern {
	arange := xslices.Iota(0, n)
	return Pattern{NumRows: n, NumCols: n, Rows: arange, Cols: arange}
}

// ScalarContraction returns the pattern of the sum of n elements into a scalar: all rows are 0.
func ScalarContraction(n int) Pattern {
	return Pattern{NumRows: 1, NumCols: n, Rows: make([]int, n), Cols: xslices.Iota(0, n)}
}

// ScalarExpansion returns the pattern of the broadcast of a scalar into n elements: all columns are 0.
func ScalarExpansion(n int) Pattern {
	return Pattern{NumRows: n, NumCols: 1, Rows: xslices.Iota(0, n), Cols: make([]int, n)}
}

// FromBasis returns the pattern and values of the non-zero entries of a dense matrix given as
// basis[row][col]. Entries whose absolute value is <= threshold are dropped.
func FromBasis(basis [][]float64, numCols int, threshold float64) *Matrix {
	p := Pattern{NumRows: len(basis), NumCols: numCols}
	var values []float64
	for row, rowValues := range basis {
		for col, v := range rowValues {
			if v > threshold || v < -threshold {
				p.Rows = append(p.Rows, row)
				p.Cols = append(p.Cols, col)
				values = append(values, v)
			}
		}
	}
	return &Matrix{Pattern: p, Values: values}
}

// CrossOperand identifies which operand of `a × b` a cross-product Jacobian is taken with respect to.
type CrossOperand int

const (
	// CrossFirst is the left operand a of `a × b`.
	CrossFirst CrossOperand = iota

	// CrossSecond is the right operand b of `a × b`.
	CrossSecond
)

// CrossProduct returns the pattern of `∂(a × b)/∂wrt`, where out and wrt are the cross-product mappings
// (see subscripts.CrossProduct) of the output and of the differentiated operand: they share the same kept
// shape but may place their length-3 vector axis at different positions.
//
// Since the diagonal of a skew-symmetric matrix is zero, each output element gets exactly two entries:
// for the output component i, the columns of components (i+1)%3 and (i+2)%3 of the operand, in that order.
func CrossProduct(out, wrt subscripts.Mapping) (Pattern, error) {
	if !out.InputShape.Equal(wrt.InputShape) || out.AuxiliaryShape.Size() != 3 || wrt.AuxiliaryShape.Size() != 3 {
		return Pattern{}, errors.Wrapf(subscripts.ErrShapeMismatch,
			"cross-product pattern between output %s and operand %s: kept shapes must match and the vector axis must have length 3",
			out, wrt)
	}
	outGrouped, err := out.GroupedIndices()
	if err != nil {
		return Pattern{}, err
	}
	wrtGrouped, err := wrt.GroupedIndices()
	if err != nil {
		return Pattern{}, err
	}
	numKept := out.InputShape.Size()
	p := Pattern{
		NumRows: out.OutputShape.Size(), NumCols: wrt.OutputShape.Size(),
		Rows: make([]int, 0, 6*numKept), Cols: make([]int, 0, 6*numKept),
	}
	for kept := range numKept {
		for i := range 3 {
			row := outGrouped[3*kept+i]
			p.Rows = append(p.Rows, row, row)
			p.Cols = append(p.Cols, wrtGrouped[3*kept+(i+1)%3], wrtGrouped[3*kept+(i+2)%3])
		}
	}
	return p, nil
}

// CrossProductValues fills values, ordered as the pattern returned by CrossProduct, with `∂(a × b)/∂wrt`.
//
// other holds the flat values of the operand that is not differentiated, and otherGrouped are the
// grouped indices of its cross-product mapping (see subscripts.Mapping.GroupedIndices), usually
// computed once at setup. With `out_i = a_{i+1} b_{i+2} - a_{i+2} b_{i+1}`:
//
//   - CrossFirst: `∂(a × b)/∂a = -[b]×`, the entries are `(b_{i+2}, -b_{i+1})`.
//   - CrossSecond: `∂(a × b)/∂b = [a]×`, the entries are `(-a_{i+2}, a_{i+1})`.
func CrossProductValues(wrt CrossOperand, other []float64, otherGrouped []int, values []float64) error {
	numKept := len(otherGrouped) / 3
	if len(otherGrouped)%3 != 0 || len(values) != 6*numKept || len(other) != len(otherGrouped) {
		return errors.Wrapf(ErrInvalidPattern, "cross-product values: got %d values, %d operand elements and %d grouped indices",
			len(values), len(other), len(otherGrouped))
	}
	for kept := range numKept {
		group := otherGrouped[3*kept : 3*kept+3]
		for i := range 3 {
			next := other[group[(i+1)%3]]
			nextNext := other[group[(i+2)%3]]
			k := 6*kept + 2*i
			if wrt == CrossFirst {
				values[k], values[k+1] = nextNext, -next
			} else {
				values[k], values[k+1] = -nextNext, next
			}
		}
	}
	return nil
}

// Identity returns the pattern of `∂out/∂in` for an identity mapping between two equal shapes.
func Identity(inShape, outShape shapes.Shape) (Pattern, error) {
	if _, err := subscripts.Identity(inShape, outShape); err != nil {
		return Pattern{}, err
	}
	return Diagonal(inShape.Size()), nil
}
