// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocks

// Mode of a linear solve of an Implicit block.
type Mode int

//go:generate go tool enumer -type=Mode -trimprefix=Mode -transform=snake -values -text mode.go

const (
	// ModeForward propagates tangents: derivatives of outputs from derivatives of residuals.
	ModeForward Mode = iota

	// ModeReverse propagates adjoints: derivatives of residuals from derivatives of outputs.
	ModeReverse
)
