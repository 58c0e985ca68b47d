// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"testing"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFlatData(t *testing.T) {
	x, err := FromFlatData(shapes.Make(2, 3), []float64{0, 1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, x.At(1, 2))
	assert.Equal(t, 3.0, x.At(1, 0))
	x.Set(-1, 0, 1)
	assert.Equal(t, []float64{0, -1, 2, 3, 4, 5}, x.Flat())
	assert.Equal(t, "[2 3]{{0, -1, 2}, {3, 4, 5}}", x.String())

	_, err = FromFlatData(shapes.Make(2, 3), []float64{1, 2})
	require.Error(t, err)
	_, err = FromFlatData(shapes.Shape{Dimensions: []int{2, 0}}, []float64{})
	require.ErrorIs(t, err, shapes.ErrInvalidShape)
}

func TestScalarAndClone(t *testing.T) {
	s := FromScalar(3.5)
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, []float64{3.5}, s.Flat())
	assert.Equal(t, "[](3.5)", s.String())

	x := FromScalarAndDimensions(2, 2, 2)
	y := x.Clone()
	y.Set(7, 1, 1)
	assert.Equal(t, []int{2, 2, 2, 2}, x.Flat())
	assert.Equal(t, []int{2, 2, 2, 7}, y.Flat())
}
