// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sparse

import (
	"testing"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/subscripts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternValidate(t *testing.T) {
	p := Pattern{NumRows: 2, NumCols: 3, Rows: []int{0, 1, 1}, Cols: []int{2, 0, 0}}
	require.NoError(t, p.Validate())
	assert.Equal(t, 3, p.NNZ())
	assert.True(t, p.Has(1, 0))
	assert.False(t, p.Has(0, 0))

	p.Cols[0] = 3
	require.ErrorIs(t, p.Validate(), ErrInvalidPattern)
	p.Cols = p.Cols[:2]
	require.ErrorIs(t, p.Validate(), ErrInvalidPattern)
}

func TestMatrixAccumulates(t *testing.T) {
	m := NewMatrix(Pattern{NumRows: 2, NumCols: 2, Rows: []int{0, 0, 1}, Cols: []int{1, 1, 0}})
	m.SetValues([]float64{1, 2, 5})
	assert.Equal(t, [][]float64{{0, 3}, {5, 0}}, m.Dense())
	assert.Equal(t, []float64{6, 5}, m.MulVec([]float64{1, 2}))
	assert.Equal(t, []float64{10, 3}, m.MulVecTransposed([]float64{1, 2}))
	require.Panics(t, func() { m.SetValues([]float64{1}) })
	require.Panics(t, func() { m.MulVec([]float64{1}) })
}

func TestContractionPattern(t *testing.T) {
	// Sum over axis 0 of a [2, 3] tensor: out[j] = in[0, j] + in[1, j].
	c, err := subscripts.Contraction(shapes.Make(2, 3), []int{0})
	require.NoError(t, err)
	p, err := Contraction(c)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, 3, p.NumRows)
	assert.Equal(t, 6, p.NumCols)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, p.Rows)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, p.Cols)

	// Sum over axis 1: out[i] = sum_j in[i, j].
	c, err = subscripts.Contraction(shapes.Make(2, 3), []int{1})
	require.NoError(t, err)
	p, err = Contraction(c)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, p.Rows)
}

func TestExpansionPattern(t *testing.T) {
	e, err := subscripts.Expansion(shapes.Make(3, 1, 4), []int{0, 1})
	require.NoError(t, err)
	p, err := Expansion(e)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, 12, p.NumRows)
	assert.Equal(t, 4, p.NumCols)
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3}, p.Cols)

	// Expansion is the transpose of the contraction over the same axes.
	c, err := Contraction(e.Transpose())
	require.NoError(t, err)
	assert.Equal(t, p.Rows, c.Cols)
	assert.Equal(t, p.Cols, c.Rows)
}

func TestPermutationPattern(t *testing.T) {
	m, err := subscripts.Permutation("ab", "ba", shapes.Make(2, 3))
	require.NoError(t, err)
	p, err := Permutation(m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, p.Rows)
	assert.Equal(t, []int{0, 3, 1, 4, 2, 5}, p.Cols)

	// A permutation matrix: each column exactly once.
	seen := make(map[int]bool)
	for _, col := range p.Cols {
		assert.False(t, seen[col])
		seen[col] = true
	}
}

func TestScalarPatterns(t *testing.T) {
	p := ScalarContraction(4)
	require.NoError(t, p.Validate())
	assert.Equal(t, [][]float64{{1, 1, 1, 1}}, NewConstant(p, 1).Dense())
	p = ScalarExpansion(3)
	require.NoError(t, p.Validate())
	assert.Equal(t, [][]float64{{1}, {1}, {1}}, NewConstant(p, 1).Dense())
	p = Diagonal(2)
	assert.Equal(t, [][]float64{{2, 0}, {0, 2}}, NewConstant(p, 2).Dense())

	_, err := Identity(shapes.Make(2), shapes.Make(3))
	require.ErrorIs(t, err, subscripts.ErrShapeMismatch)
}

func TestFromBasis(t *testing.T) {
	m := FromBasis([][]float64{{1, 0, 0}, {0.5, 0.5, 0}}, 3, 0)
	assert.Equal(t, []int{0, 1, 1}, m.Rows)
	assert.Equal(t, []int{0, 0, 1}, m.Cols)
	assert.Equal(t, []float64{1, 0.5, 0.5}, m.Values)
}

func TestCrossProduct(t *testing.T) {
	// Single vectors: out = a × b, with a = (1, 2, 3), b = (4, 5, 6).
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	m, err := subscripts.CrossProduct(shapes.Scalar(), 0)
	require.NoError(t, err)
	p, err := CrossProduct(m, m)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2}, p.Rows)
	assert.Equal(t, []int{1, 2, 2, 0, 0, 1}, p.Cols)

	grouped, err := m.GroupedIndices()
	require.NoError(t, err)
	da := NewMatrix(p)
	require.NoError(t, CrossProductValues(CrossFirst, b, grouped, da.Values))
	// -[b]x = [[0, b3, -b2], [-b3, 0, b1], [b2, -b1, 0]]
	assert.Equal(t, [][]float64{{0, 6, -5}, {-6, 0, 4}, {5, -4, 0}}, da.Dense())

	db := NewMatrix(p)
	require.NoError(t, CrossProductValues(CrossSecond, a, grouped, db.Values))
	// [a]x = [[0, -a3, a2], [a3, 0, -a1], [-a2, a1, 0]]
	assert.Equal(t, [][]float64{{0, -3, 2}, {3, 0, -1}, {-2, 1, 0}}, db.Dense())

	// a × b = (2*6-3*5, 3*4-1*6, 1*5-2*4) = (-3, 6, -3), which is also [a]x b.
	assert.Equal(t, []float64{-3, 6, -3}, db.MulVec(b))

	// Mismatched kept shapes.
	m2, err := subscripts.CrossProduct(shapes.Make(2), 0)
	require.NoError(t, err)
	_, err = CrossProduct(m, m2)
	require.ErrorIs(t, err, subscripts.ErrShapeMismatch)
	grouped2, err := m2.GroupedIndices()
	require.NoError(t, err)
	require.ErrorIs(t, CrossProductValues(CrossFirst, b, grouped2, da.Values), ErrInvalidPattern)
}

func TestCrossProductDifferentAxes(t *testing.T) {
	// Output with the vector axis last, operand with the vector axis first: shapeNo3 = [2].
	out, err := subscripts.CrossProduct(shapes.Make(2), 1)
	require.NoError(t, err)
	wrt, err := subscripts.CrossProduct(shapes.Make(2), 0)
	require.NoError(t, err)
	p, err := CrossProduct(out, wrt)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	// Operand element (component c, position k) has flat index 2*c + k.
	// Output row (k=1, i=0) is flat 3; it depends on components 1 and 2 at k=1: flat 3 and 5.
	assert.Equal(t, 3, p.Rows[6])
	assert.Equal(t, []int{3, 5}, p.Cols[6:8])
}
