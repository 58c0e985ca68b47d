// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package subscripts

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiIndex(t *testing.T) {
	idx := MultiIndex(shapes.Make(2, 3))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, idx.Flat())
	assert.Equal(t, 5, idx.At(1, 2))
	assert.Equal(t, []int{0}, MultiIndex(shapes.Scalar()).Flat())
}

func TestCompose(t *testing.T) {
	m, err := Compose(shapes.Make(3, 2, 4), []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, "c", m.Input)
	assert.Equal(t, "ab", m.Auxiliary)
	assert.Equal(t, "abc", m.Output)
	assert.Equal(t, []int{4}, m.InputShape.Dimensions)
	assert.Equal(t, []int{3, 2}, m.AuxiliaryShape.Dimensions)
	assert.Equal(t, "c,ab->abc", m.Equation())

	c, err := Contraction(shapes.Make(3, 2, 4), []int{1})
	require.NoError(t, err)
	assert.Equal(t, "abc,b->ac", c.Equation())
	assert.Equal(t, []int{3, 4}, c.OutputShape.Dimensions)

	// Zero special axes: identity.
	m, err = Compose(shapes.Make(2, 5), nil)
	require.NoError(t, err)
	assert.Equal(t, "ab,->ab", m.Equation())
	assert.True(t, m.InputShape.Equal(m.OutputShape))
	assert.True(t, m.AuxiliaryShape.IsScalar())

	_, err = Compose(shapes.Make(2, 5), []int{2})
	require.ErrorIs(t, err, ErrInvalidAxes)
	_, err = Compose(shapes.Make(2, 5), []int{-1})
	require.ErrorIs(t, err, ErrInvalidAxes)
	_, err = Compose(shapes.Make(2, 5), []int{0, 1, 1})
	require.ErrorIs(t, err, ErrInvalidAxes)
	assert.ErrorContains(t, err, "axis 1 given more than once")
	_, err = Compose(shapes.Shape{Dimensions: []int{2, 0}}, nil)
	require.ErrorIs(t, err, shapes.ErrInvalidShape)
	_, err = Compose(shapes.Make(make27Ones()...), nil)
	require.ErrorIs(t, err, ErrInvalidAxes)
}

func make27Ones() []int {
	dims := make([]int, MaxRank+1)
	for ii := range dims {
		dims[ii] = 1
	}
	return dims
}

func TestIdentity(t *testing.T) {
	m, err := Identity(shapes.Make(2, 3), shapes.Make(2, 3))
	require.NoError(t, err)
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	y, err := Apply(m, x)
	require.NoError(t, err)
	assert.Equal(t, x.Flat(), y.Flat())

	_, err = Identity(shapes.Make(2, 3), shapes.Make(3, 2))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestApplyContractionExpansion(t *testing.T) {
	shape := shapes.Make(3, 2, 4)
	x := tensors.FromShape[float64](shape)
	for ii := range x.Flat() {
		x.Flat()[ii] = float64(ii)
	}
	c, err := Contraction(shape, []int{0, 1})
	require.NoError(t, err)
	sum, err := Apply(c, x)
	require.NoError(t, err)
	// Sum over axes 0 and 1 of arange(24).reshape(3,2,4): for column k, sum_{j<6} (4j + k) = 60 + 6k.
	assert.Equal(t, []float64{60, 66, 72, 78}, sum.Flat())

	e, err := Expansion(shape, []int{0, 1})
	require.NoError(t, err)
	back, err := Apply(e, sum)
	require.NoError(t, err)
	require.Equal(t, shape.Dimensions, back.Shape().Dimensions)
	for flatIdx, indices := range shape.Iter() {
		assert.Equal(t, sum.At(indices[2]), back.Flat()[flatIdx])
	}

	_, err = Apply(e, x)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestPermutation(t *testing.T) {
	inShape := shapes.Make(2, 3, 4)
	m, err := Permutation("abc", "cab", inShape)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3}, m.OutputShape.Dimensions)
	assert.Equal(t, []int{2, 0, 1}, m.Permutation())

	rng := rand.New(rand.NewPCG(42, 7))
	x := tensors.FromShape[float64](inShape)
	for ii := range x.Flat() {
		x.Flat()[ii] = rng.Float64()
	}
	y, err := Apply(m, x)
	require.NoError(t, err)
	assert.Equal(t, x.At(1, 2, 3), y.At(3, 1, 2))

	// Applying the inverse permutation recovers x exactly.
	inSub, outSub := InverseSubscripts(m.Permutation())
	assert.Equal(t, "abc", inSub)
	assert.Equal(t, "bca", outSub)
	inv, err := Permutation(inSub, outSub, m.OutputShape)
	require.NoError(t, err)
	z, err := Apply(inv, y)
	require.NoError(t, err)
	assert.Equal(t, x.Flat(), z.Flat())
	assert.Equal(t, inShape.Dimensions, z.Shape().Dimensions)

	_, err = Permutation("abc", "abd", inShape)
	require.ErrorIs(t, err, ErrInvalidAxes)
	_, err = Permutation("ab", "ba", inShape)
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Permutation("aab", "aba", inShape)
	require.ErrorIs(t, err, ErrInvalidEquation)
	_, err = Permutation("a1c", "ca1", inShape)
	require.ErrorIs(t, err, ErrInvalidEquation)
}

func TestCrossProductMapping(t *testing.T) {
	m, err := CrossProduct(shapes.Make(2, 4, 5), 1)
	require.NoError(t, err)
	assert.Equal(t, "acd", m.Input)
	assert.Equal(t, "b", m.Auxiliary)
	assert.Equal(t, "abcd", m.Output)
	assert.Equal(t, []int{2, 3, 4, 5}, m.OutputShape.Dimensions)

	m, err = CrossProduct(shapes.Make(2, 4, 5), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 5, 3}, m.OutputShape.Dimensions)

	_, err = CrossProduct(shapes.Make(2, 4, 5), 4)
	require.ErrorIs(t, err, ErrInvalidAxes)
}

func TestGroupedIndices(t *testing.T) {
	// Shape [3, 2]: vector axis first, one kept axis of dimension 2.
	m, err := CrossProduct(shapes.Make(2), 0)
	require.NoError(t, err)
	grouped, err := m.GroupedIndices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4, 1, 3, 5}, grouped)

	// Vector axis last: grouping is the identity.
	m, err = CrossProduct(shapes.Make(2), 1)
	require.NoError(t, err)
	grouped, err = m.GroupedIndices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, grouped)
}
