// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package subscripts

import (
	"testing"

	"github.com/gomlx/tensorblocks/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEinsum(t *testing.T) {
	a := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := tensors.FromFlatDataAndDimensions([]float64{1, 0, 0, 1, 1, 1}, 3, 2)

	got, err := Einsum("ij,jk->ik", a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 10, 11}, got.Flat())

	got, err = Einsum("ij->ji", a)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, got.Shape().Dimensions)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, got.Flat())

	got, err = Einsum("ij->", a)
	require.NoError(t, err)
	assert.Equal(t, 21.0, got.Flat()[0])

	v := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3}, 3)
	got, err = Einsum("j,j->", v, v)
	require.NoError(t, err)
	assert.Equal(t, 14.0, got.Flat()[0])

	got, err = Einsum("i,j->ij", v, v)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 2, 4, 6, 3, 6, 9}, got.Flat())

	// Three operands.
	got, err = Einsum("i,i,i->i", v, v, v)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 8, 27}, got.Flat())

	// Scalar operand.
	got, err = Einsum("i,->i", v, tensors.FromScalar(2.0))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, got.Flat())
}

func TestEinsumOnIndices(t *testing.T) {
	// Broadcasting an index tensor, as done to build Jacobian rows.
	idx := tensors.FromFlatDataAndDimensions([]int{0, 1}, 2)
	ones := tensors.FromScalarAndDimensions(1, 3)
	got, err := Einsum("b,a->ab", idx, ones)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1}, got.Flat())
}

func TestEinsumErrors(t *testing.T) {
	a := tensors.FromScalarAndDimensions(1.0, 2, 3)
	_, err := Einsum("ij", a)
	require.ErrorIs(t, err, ErrInvalidEquation)
	_, err = Einsum("ij->i->j", a)
	require.ErrorIs(t, err, ErrInvalidEquation)
	_, err = Einsum("ii->i", a)
	require.ErrorIs(t, err, ErrInvalidEquation)
	assert.ErrorContains(t, err, "axis 'i' appearing more than once")
	_, err = Einsum("ijk->i", a)
	require.ErrorIs(t, err, ErrInvalidEquation)
	_, err = Einsum("ij->k", a)
	require.ErrorIs(t, err, ErrInvalidEquation)
	_, err = Einsum("ij,jk->ik", a, a)
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Einsum("ij,jk->ik", a)
	require.ErrorIs(t, err, ErrInvalidEquation)
}
