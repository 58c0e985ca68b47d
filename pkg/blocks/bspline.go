// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

import (
	"github.com/gomlx/bsplines"
	"github.com/gomlx/tensorblocks/pkg/core/shapes"
	"github.com/gomlx/tensorblocks/pkg/core/sparse"
	"github.com/gomlx/tensorblocks/pkg/support/xslices"
)

// DefaultBSplineOrder is the order (degree + 1) of the B-spline used if BSplineConfig.Order is 0: cubic.
const DefaultBSplineOrder = 4

// BSplineConfig configures a BSpline block.
type BSplineConfig struct {
	// NumControlPoints is the size of the input, at least 2.
	NumControlPoints int

	// NumPoints is the size of the output, at least 2: the curve is sampled at NumPoints evenly spaced
	// parameters over [0, 1], both ends included.
	NumPoints int

	// Order of the B-spline (degree + 1), at least 1. It is capped to NumControlPoints.
	// If 0, DefaultBSplineOrder is used.
	Order int

	InName, OutName string
}

// BSpline maps control points to points sampled along a clamped B-spline curve with uniformly spaced knots.
//
// It is a linear map, so its Jacobian is the constant matrix of basis weights, with only its non-zero
// entries declared.
type BSpline struct {
	*base
	inName, outName string
	basis           *sparse.Matrix
}

var _ Explicit = (*BSpline)(nil)

// NewBSpline validates the configuration and sets up the block.
func NewBSpline(cfg BSplineConfig) (*BSpline, error) {
	const kind = "bspline"
	return construct(kind, func() (*BSpline, error) {
		if cfg.NumControlPoints < 2 || cfg.NumPoints < 2 {
			return nil, configErrorf("%s: NumControlPoints (%d) and NumPoints (%d) must be at least 2",
				kind, cfg.NumControlPoints, cfg.NumPoints)
		}
		if cfg.Order == 0 {
			cfg.Order = DefaultBSplineOrder
		}
		if cfg.Order < 1 {
			return nil, configErrorf("%s: Order must be >= 1, got %d", kind, cfg.Order)
		}
		b := &BSpline{
			base:    newBase(kind, cfg.OutName),
			inName:  cfg.InName,
			outName: cfg.OutName,
			basis:   BSplineBasis(cfg.NumControlPoints, cfg.NumPoints, cfg.Order),
		}
		if err := b.addInput(cfg.InName, shapes.Make(cfg.NumControlPoints)); err != nil {
			return nil, err
		}
		if err := b.addOutput(cfg.OutName, shapes.Make(cfg.NumPoints)); err != nil {
			return nil, err
		}
		if err := b.declarePartials(cfg.OutName, cfg.InName, b.basis.Pattern, b.basis.Values); err != nil {
			return nil, err
		}
		b.logSetup()
		return b, nil
	})
}

// BSplineBasis returns the [numPoints, numControlPoints] sparse matrix of the basis weights of a clamped
// B-spline of the given order with uniform knots over [0, 1], sampled at numPoints evenly spaced parameters.
//
// Each row sums to 1, and the first and last points coincide with the first and last control points.
func BSplineBasis(numControlPoints, numPoints, order int) *sparse.Matrix {
	order = min(order, numControlPoints)
	degree := order - 1
	knots := xslices.Linspace(0, 1, numControlPoints-degree+1)
	spline := bsplines.New(degree, knots).WithExtrapolation(bsplines.ExtrapolateConstant)

	params := xslices.Linspace(0, 1, numPoints)
	basis := make([][]float64, numPoints)
	for pt := range basis {
		basis[pt] = make([]float64, numControlPoints)
	}
	unit := make([]float64, numControlPoints)
	for cp := range numControlPoints {
		unit[cp] = 1
		spline.WithControlPoints(unit)
		for pt, t := range params[:numPoints-1] {
			basis[pt][cp] = spline.Evaluate(t)
		}
		unit[cp] = 0
	}
	// The end of the parameter range closes the last knot span: the clamped curve ends at the last control point.
	basis[numPoints-1][numControlPoints-1] = 1
	return sparse.FromBasis(basis, numControlPoints, 0)
}

// Basis returns the constant sparse matrix applied by the block.
func (b *BSpline) Basis() *sparse.Matrix { return b.basis }

// Compute implements Explicit.
func (b *BSpline) Compute(inputs, outputs Values) error {
	if err := b.checkInputsOutputs(inputs, outputs); err != nil {
		return err
	}
	copy(outputs[b.outName].Flat(), b.basis.MulVec(inputs[b.inName].Flat()))
	return nil
}

// ComputePartials implements Explicit. The partials are constant.
func (b *BSpline) ComputePartials(inputs Values, _ Jacobian) error {
	return b.checkValues("input", b.inputs, inputs)
}
