// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the ordered tuple of positive dimensions that describes the index space
// of a tensor, and the tools to walk it in row-major order.
//
// ## Glossary
//
//   - Rank: number of axes of a tensor.
//   - Axis: the index of a dimension. We refer to the position as "axis" (plural axes), and its size
//     as its dimension.
//   - Dimension: the size of a tensor in one of its axes.
//   - Scalar: a shape with no axes, holding exactly one value.
//   - Flat index: the position of an element in the row-major flattening of a tensor, the layout used
//     everywhere in this module, including the rows and columns of sparse Jacobians.
//
// Example: the multi-dimensional array `[][]float64{{0, 1, 2}, {3, 4, 5}}` has shape `[2 3]`: rank 2,
// axis 0 has dimension 2 and axis 1 has dimension 3. It can be created with `shapes.Make(2, 3)`.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrInvalidShape is wrapped by every error reporting a malformed shape.
var ErrInvalidShape = errors.New("invalid shape")

// Shape represents the shape of a tensor: its dimensions, in row-major order.
//
// Use Make or FromDims to create a new shape.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions. It panics if any dimension is not positive.
// See FromDims for a version that returns an error.
func Make(dimensions ...int) Shape {
	s, err := FromDims(dimensions)
	if err != nil {
		exceptions.Panicf("shapes.Make(%v): %v", dimensions, err)
	}
	return s
}

// FromDims returns a Shape with a copy of the given dimensions, or an error wrapping ErrInvalidShape
// if any of them is not positive.
func FromDims(dimensions []int) (Shape, error) {
	for axis, dim := range dimensions {
		if dim <= 0 {
			return Shape{}, errors.Wrapf(ErrInvalidShape, "dimension %d of axis %d in %v must be > 0", dim, axis, dimensions)
		}
	}
	return Shape{Dimensions: slices.Clone(dimensions)}, nil
}

// Scalar returns the shape of a scalar: rank 0, size 1.
func Scalar() Shape { return Shape{} }

// Check returns an error wrapping ErrInvalidShape if any dimension is not positive.
// Shapes built with Make or FromDims are always valid, but shapes given as struct literals may not be.
func (s Shape) Check() error {
	_, err := FromDims(s.Dimensions)
	return err
}

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no axes (rank==0).
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return "[]"
	}
	return fmt.Sprintf("%v", s.Dimensions)
}

// Size returns the number of elements of a tensor of this shape. It's the product of all dimensions,
// and 1 for a scalar.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Equal compares the dimensions of two shapes.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// InsertAxis returns a new shape with a new axis of the given dimension inserted at position axis,
// so that the returned shape has `Dim(axis) == dim`. axis must be in `[0, rank]`.
func (s Shape) InsertAxis(axis, dim int) (Shape, error) {
	if axis < 0 || axis > s.Rank() {
		return Shape{}, errors.Wrapf(ErrInvalidShape, "cannot insert axis at position %d of shape %s, it must be in [0, %d]",
			axis, s, s.Rank())
	}
	dims := make([]int, 0, s.Rank()+1)
	dims = append(dims, s.Dimensions[:axis]...)
	dims = append(dims, dim)
	dims = append(dims, s.Dimensions[axis:]...)
	return FromDims(dims)
}

// SelectAxes returns the shape formed by the given axes, in the order given.
// It panics if any axis is out-of-range.
func (s Shape) SelectAxes(axes ...int) Shape {
	dims := make([]int, 0, len(axes))
	for _, axis := range axes {
		if axis < 0 || axis >= s.Rank() {
			exceptions.Panicf("Shape.SelectAxes(%v): axis %d out-of-bounds for shape %s", axes, axis, s)
		}
		dims = append(dims, s.Dimensions[axis])
	}
	return Shape{Dimensions: dims}
}

// FlatIndex returns the row-major flat index of the element at the given indices.
// It panics if the number of indices doesn't match the rank or if any index is out-of-bounds.
func (s Shape) FlatIndex(indices ...int) int {
	if len(indices) != s.Rank() {
		exceptions.Panicf("Shape.FlatIndex(%v): shape %s requires %d indices", indices, s, s.Rank())
	}
	flat := 0
	for axis, idx := range indices {
		dim := s.Dimensions[axis]
		if idx < 0 || idx >= dim {
			exceptions.Panicf("Shape.FlatIndex(%v): index %d out-of-bounds for axis %d of shape %s", indices, idx, axis, s)
		}
		flat = flat*dim + idx
	}
	return flat
}
