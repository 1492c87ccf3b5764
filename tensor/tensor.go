// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API used to feed images and
// conditions into the VAE models.
//
// The package re-exports the core types of the engine:
//   - Tensor[T, B]: generic tensor parameterized by element type and backend
//   - RawTensor: untyped row-major buffer with shape metadata
//   - Backend: interface implemented by compute backends
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/tensor"
)

// DType is a constraint for tensor element types (float32, float64).
type DType = tensor.DType

// DataType represents the runtime element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	Vulkan Device = tensor.Vulkan
	Metal  Device = tensor.Metal
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{8, 1, 158, 158} is a batch of eight single-channel images.
type Shape = tensor.Shape

// RawTensor is the low-level tensor buffer.
type RawTensor = tensor.RawTensor

// Backend is the interface implemented by compute backends.
type Backend = tensor.Backend

// Tensor is a generic type-safe tensor.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// NewRaw creates a zero-filled RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// New wraps an existing RawTensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// FromSlice creates a tensor from a flat slice in row-major order.
//
// Example:
//
//	data := []float32{1, 2, 3, 4, 5, 6}
//	x, err := tensor.FromSlice(data, tensor.Shape{2, 3}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor of standard normal samples.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, b)
}

// RandnFrom creates a tensor of standard normal samples drawn from src.
func RandnFrom[T DType, B Backend](shape Shape, src rand.Source, b B) *Tensor[T, B] {
	return tensor.RandnFrom[T](shape, src, b)
}

// Uniform creates a tensor of samples from U(lo, hi) drawn from src.
func Uniform[T DType, B Backend](shape Shape, lo, hi float64, src rand.Source, b B) *Tensor[T, B] {
	return tensor.Uniform[T](shape, lo, hi, src, b)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat(tensors, dim)
}
