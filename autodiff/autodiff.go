// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// A Backend wraps any compute backend and records operations on a
// gradient tape while recording is on. Backward replays the tape to
// produce gradients keyed by each input's RawTensor.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	y := x.Mul(x).Sum()
//	grads := autodiff.Backward(y, backend)
package autodiff

import (
	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// BackwardCapable is implemented by backends that own a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients of t with respect to every recorded input.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

// NoGrad runs fn with recording suspended on backend's tape.
func NoGrad(backend BackwardCapable, fn func()) {
	autodiff.NoGrad(backend, fn)
}
