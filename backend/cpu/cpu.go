// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/parallel"
	"github.com/born-ml/vae/tensor"
)

// Backend represents the CPU backend implementation.
//
// Matrix products go through gonum BLAS. Element loops and per-sample
// convolution work are split across goroutines.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend using all available cores.
//
// Example:
//
//	import (
//	    "github.com/born-ml/vae/backend/cpu"
//	    "github.com/born-ml/vae/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithWorkers creates a CPU backend that runs kernels on at most n
// goroutines. n <= 0 means one per CPU; n == 1 runs everything inline.
func NewWithWorkers(n int) *Backend {
	return internalcpu.NewWithConfig(parallel.WithWorkers(n))
}
