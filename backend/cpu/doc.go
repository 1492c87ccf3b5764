// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU backend for the VAE engine.
//
// The CPU backend is the only storage and compute target of this module.
// It supports float32 and float64 tensors, NumPy-style broadcasting,
// 2D convolution and transposed convolution.
//
// # Usage
//
//	import (
//	    "github.com/born-ml/vae/autodiff"
//	    "github.com/born-ml/vae/backend/cpu"
//	    "github.com/born-ml/vae/vae"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    model, err := vae.NewModel(vae.DefaultConfig(16), autodiff.New(backend))
//	    ...
//	}
//
// # Thread Safety
//
// Kernels do not share mutable state, so one backend may serve several
// goroutines. A model and its optimizer are not safe for concurrent use.
package cpu
