// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sparse holds the coordinate-format (COO) sparse matrices used to declare Jacobians.
//
// A Pattern is the fixed set of (row, col) positions where a partial derivative may be non-zero,
// in flattened (row-major) output and input coordinates. A Matrix adds the values. Patterns are built
// once, when a block is set up, and are never reordered or resized afterwards: only the values of a
// Matrix are refreshed.
//
// Repeated (row, col) pairs are additive contributions, matching the usual sparse-matrix
// accumulation semantics.
package sparse

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrInvalidPattern is wrapped by errors reporting malformed patterns.
var ErrInvalidPattern = errors.New("invalid sparse pattern")

// Pattern is the sparsity structure of a NumRows x NumCols matrix: entry k is at (Rows[k], Cols[k]).
type Pattern struct {
	NumRows, NumCols int
	Rows, Cols       []int
}

// NNZ returns the number of declared entries (including repeated positions).
func (p Pattern) NNZ() int { return len(p.Rows) }

// Validate checks that rows and cols have the same length and are within the matrix dimensions.
func (p Pattern) Validate() error {
	if p.NumRows < 0 || p.NumCols < 0 {
		return errors.Wrapf(ErrInvalidPattern, "negative dimensions %dx%d", p.NumRows, p.NumCols)
	}
	if len(p.Rows) != len(p.Cols) {
		return errors.Wrapf(ErrInvalidPattern, "len(rows)=%d != len(cols)=%d", len(p.Rows), len(p.Cols))
	}
	for k, row := range p.Rows {
		col := p.Cols[k]
		if row < 0 || row >= p.NumRows || col < 0 || col >= p.NumCols {
			return errors.Wrapf(ErrInvalidPattern, "entry %d at (%d, %d) is out of bounds for a %dx%d matrix",
				k, row, col, p.NumRows, p.NumCols)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (p Pattern) String() string {
	return fmt.Sprintf("Pattern(%dx%d, nnz=%d)", p.NumRows, p.NumCols, p.NNZ())
}

// Has returns whether (row, col) is one of the declared positions.
func (p Pattern) Has(row, col int) bool {
	for k, r := range p.Rows {
		if r == row && p.Cols[k] == col {
			return true
		}
	}
	return false
}

// Matrix is a sparse matrix in coordinate format: Values[k] is the (additive) value at (Rows[k], Cols[k]).
type Matrix struct {
	Pattern
	Values []float64
}

// NewMatrix returns a zero-valued matrix with the given pattern.
func NewMatrix(p Pattern) *Matrix {
	return &Matrix{Pattern: p, Values: make([]float64, p.NNZ())}
}

// NewConstant returns a matrix with the given pattern and all values set to value.
func NewConstant(p Pattern, value float64) *Matrix {
	m := NewMatrix(p)
	for k := range m.Values {
		m.Values[k] = value
	}
	return m
}

// SetValues copies values into the matrix. It panics if the length doesn't match the pattern.
func (m *Matrix) SetValues(values []float64) {
	if len(values) != len(m.Values) {
		exceptions.Panicf("sparse.Matrix.SetValues: got %d values for a pattern with %d entries", len(values), len(m.Values))
	}
	copy(m.Values, values)
}

// Dense returns the matrix as a dense [NumRows][NumCols] slice, accumulating repeated positions.
func (m *Matrix) Dense() [][]float64 {
	dense := make([][]float64, m.NumRows)
	for row := range dense {
		dense[row] = make([]float64, m.NumCols)
	}
	for k, row := range m.Rows {
		dense[row][m.Cols[k]] += m.Values[k]
	}
	return dense
}

// MulVec returns `M * x`. It panics if len(x) != NumCols.
func (m *Matrix) MulVec(x []float64) []float64 {
	if len(x) != m.NumCols {
		exceptions.Panicf("sparse.Matrix.MulVec: len(x)=%d, but matrix has %d columns", len(x), m.NumCols)
	}
	y := make([]float64, m.NumRows)
	for k, row := range m.Rows {
		y[row] += m.Values[k] * x[m.Cols[k]]
	}
	return y
}

// MulVecTransposed returns `Mᵀ * y`, as used when propagating adjoints. It panics if len(y) != NumRows.
func (m *Matrix) MulVecTransposed(y []float64) []float64 {
	if len(y) != m.NumRows {
		exceptions.Panicf("sparse.Matrix.MulVecTransposed: len(y)=%d, but matrix has %d rows", len(y), m.NumRows)
	}
	x := make([]float64, m.NumCols)
	for k, row := range m.Rows {
		x[m.Cols[k]] += m.Values[k] * y[row]
	}
	return x
}
