// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package subscripts

import (
	"slices"
	"strings"
	"unicode"

	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/tensors"
	"github.com/gomlx/tensorblocks/pkg/support/sets"
	"github.com/pkg/errors"
)

// Einsum evaluates the "Einstein summation" described by equation over any number of operands.
//
// The equation describes the axes of each operand, separated by ",", and the axes of the result after
// the "->". Labels missing from the output are reduce-summed, labels shared by several operands are
// matched (multiplied element-wise), and labels kept in the output are laid out in the order given.
// An operand may be a scalar, described by an empty string.
//
// Examples:
//
//   - `Einsum("abc->ac", x)` sums over axis 1.
//   - `Einsum("c,ab->abc", x, ones)` broadcasts x along the new leading axes a and b.
//   - `Einsum("abc->cab", x)` transposes x.
//   - `Einsum("ij,jk->ik", a, b)` performs the usual matrix multiplication.
//
// It works for any Number type, and it is used both on float64 values and on int index tensors, to
// derive Jacobian rows and columns with the exact same label algebra used to compute the values.
func Einsum[T tensors.Number](equation string, operands ...*tensors.Tensor[T]) (*tensors.Tensor[T], error) {
	eq, err := parseEquation(equation)
	if err != nil {
		return nil, err
	}
	if len(eq.operands) != len(operands) {
		return nil, errors.Wrapf(ErrInvalidEquation, "Einsum(%q) describes %d operands, but %d were given",
			equation, len(eq.operands), len(operands))
	}

	// Collect dimensions per label and check they are consistent across operands.
	labelDims := make(map[rune]int)
	for opIdx, desc := range eq.operands {
		shape := operands[opIdx].Shape()
		if len(desc) != shape.Rank() {
			return nil, errors.Wrapf(ErrInvalidEquation, "Einsum(%q) operand %d is described with %d axes (%q), but it has shape %s",
				equation, opIdx, len(desc), string(desc), shape)
		}
		for axis, label := range desc {
			dim := shape.Dimensions[axis]
			if prev, found := labelDims[label]; found && prev != dim {
				return nil, errors.Wrapf(ErrShapeMismatch, "Einsum(%q) label %q has dimension %d in operand %d, but %d elsewhere",
					equation, label, dim, opIdx, prev)
			}
			labelDims[label] = dim
		}
	}
	for _, label := range eq.output {
		if _, found := labelDims[label]; !found {
			return nil, errors.Wrapf(ErrInvalidEquation, "Einsum(%q) output label %q doesn't appear in any operand", equation, label)
		}
	}

	// The iteration space is the output labels followed by the summed labels, in order of first appearance.
	// Since the output labels are the leading axes, the output flat index is the iteration flat index divided
	// by the number of summed combinations.
	loopLabels := slices.Clone(eq.output)
	for _, desc := range eq.operands {
		for _, label := range desc {
			if !slices.Contains(loopLabels, label) {
				loopLabels = append(loopLabels, label)
			}
		}
	}
	loopDims := make([]int, len(loopLabels))
	for ii, label := range loopLabels {
		loopDims[ii] = labelDims[label]
	}
	outDims := loopDims[:len(eq.output)]
	outShape, err := shapes.FromDims(outDims)
	if err != nil {
		return nil, err
	}
	sumSize := shapes.Shape{Dimensions: loopDims[len(eq.output):]}.Size()

	// Operand strides expressed over the loop axes.
	opStrides := make([][]int, len(operands))
	for opIdx, desc := range eq.operands {
		strides := operands[opIdx].Shape().Strides()
		opStrides[opIdx] = make([]int, len(loopLabels))
		for axis, label := range desc {
			// Labels don't repeat within an operand, so this is a 1:1 assignment.
			opStrides[opIdx][slices.Index(loopLabels, label)] = strides[axis]
		}
	}

	output := tensors.FromShape[T](outShape)
	outFlat := output.Flat()
	loopShape := shapes.Shape{Dimensions: loopDims}
	for loopIdx, indices := range loopShape.Iter() {
		term := T(1)
		for opIdx, op := range operands {
			pos := 0
			for axis, idx := range indices {
				pos += idx * opStrides[opIdx][axis]
			}
			term *= op.Flat()[pos]
		}
		outFlat[loopIdx/sumSize] += term
	}
	return output, nil
}

// equation is a parsed Einsum equation.
type equation struct {
	operands []operandDesc
	output   operandDesc
}

// operandDesc lists the axis labels of one operand (or the output), in axis order.
type operandDesc []rune

func newOperandDesc(str string) (operandDesc, error) {
	e := make(operandDesc, 0, len(str))
	for _, r := range str {
		if !unicode.IsLetter(r) {
			return nil, errors.Wrapf(ErrInvalidEquation, "operand description %q has invalid axis label %q, only letters are accepted", str, r)
		}
		e = append(e, r)
	}
	if r, found := sets.FirstRepeated([]rune(e)); found {
		return nil, errors.Wrapf(ErrInvalidEquation, "operand description %q has axis %q appearing more than once", str, r)
	}
	return e, nil
}

func parseEquation(eqStr string) (eq equation, err error) {
	inOutParts := strings.Split(eqStr, "->")
	if len(inOutParts) != 2 {
		err = errors.Wrapf(ErrInvalidEquation, "Einsum(%q) missing or too many \"->\" separating inputs from output, there must be only one", eqStr)
		return
	}
	eq.output, err = newOperandDesc(inOutParts[1])
	if err != nil {
		err = errors.WithMessagef(err, "when parsing output of %q", eqStr)
		return
	}
	for ii, str := range strings.Split(inOutParts[0], ",") {
		var desc operandDesc
		desc, err = newOperandDesc(str)
		if err != nil {
			err = errors.WithMessagef(err, "when parsing operand %d of %q", ii, eqStr)
			return
		}
		eq.operands = append(eq.operands, desc)
	}
	return
}
