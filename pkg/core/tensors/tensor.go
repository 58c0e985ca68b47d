// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements Tensor, a multidimensional array stored flat in row-major order.
//
// Tensors are the backing storage of the ports of a block: the host framework owns them and
// feeds/reads them on every call. Index tensors (Tensor[int]) are used as bookkeeping devices to
// derive the rows and columns of sparse Jacobians.
package tensors

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Number is the set of element types a Tensor can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// Tensor is a multidimensional array of a fixed shape, stored flat in row-major order.
type Tensor[T Number] struct {
	shape shapes.Shape
	flat  []T
}

// FromShape returns a zero-initialized tensor with the given shape.
func FromShape[T Number](shape shapes.Shape) *Tensor[T] {
	return &Tensor[T]{shape: shape.Clone(), flat: make([]T, shape.Size())}
}

// FromScalar returns a scalar tensor (rank 0) holding value.
func FromScalar[T Number](value T) *Tensor[T] {
	return &Tensor[T]{shape: shapes.Scalar(), flat: []T{value}}
}

// FromScalarAndDimensions returns a tensor with the given dimensions, all elements set to value.
// It panics if the dimensions are not valid.
func FromScalarAndDimensions[T Number](value T, dimensions ...int) *Tensor[T] {
	t := FromShape[T](shapes.Make(dimensions...))
	t.Fill(value)
	return t
}

// FromFlatData returns a tensor with the given shape that takes ownership of data.
// It returns an error if len(data) doesn't match the shape's size.
func FromFlatData[T Number](shape shapes.Shape, data []T) (*Tensor[T], error) {
	if err := shape.Check(); err != nil {
		return nil, err
	}
	if len(data) != shape.Size() {
		return nil, errors.Errorf("tensors.FromFlatData: shape %s has size %d, but %d values were given",
			shape, shape.Size(), len(data))
	}
	return &Tensor[T]{shape: shape.Clone(), flat: data}, nil
}

// FromFlatDataAndDimensions is like FromFlatData, but it panics on error. Convenient for tests.
func FromFlatDataAndDimensions[T Number](data []T, dimensions ...int) *Tensor[T] {
	t, err := FromFlatData(shapes.Make(dimensions...), data)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape of the tensor.
func (t *Tensor[T]) Shape() shapes.Shape { return t.shape }

// Rank of the tensor.
func (t *Tensor[T]) Rank() int { return t.shape.Rank() }

// Size is the number of elements of the tensor.
func (t *Tensor[T]) Size() int { return len(t.flat) }

// Flat returns the underlying row-major data. It is not a copy: changes to it change the tensor.
func (t *Tensor[T]) Flat() []T { return t.flat }

// At returns the element at the given indices, one per axis.
func (t *Tensor[T]) At(indices ...int) T {
	return t.flat[t.shape.FlatIndex(indices...)]
}

// Set the element at the given indices, one per axis.
func (t *Tensor[T]) Set(value T, indices ...int) {
	t.flat[t.shape.FlatIndex(indices...)] = value
}

// Fill sets all elements to value.
func (t *Tensor[T]) Fill(value T) {
	for ii := range t.flat {
		t.flat[ii] = value
	}
}

// Clone returns a deep copy of the tensor.
func (t *Tensor[T]) Clone() *Tensor[T] {
	return &Tensor[T]{shape: t.shape.Clone(), flat: slices.Clone(t.flat)}
}

// String implements fmt.Stringer, with the values laid out as nested lists.
func (t *Tensor[T]) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s", t.shape)
	if t.Rank() == 0 {
		_, _ = fmt.Fprintf(&sb, "(%v)", t.flat[0])
		return sb.String()
	}
	var pos int
	var rec func(axis int)
	rec = func(axis int) {
		sb.WriteByte('{')
		for ii := range t.shape.Dimensions[axis] {
			if ii > 0 {
				sb.WriteString(", ")
			}
			if axis == t.Rank()-1 {
				_, _ = fmt.Fprintf(&sb, "%v", t.flat[pos])
				pos++
			} else {
				rec(axis + 1)
			}
		}
		sb.WriteByte('}')
	}
	rec(0)
	return sb.String()
}
