// Package cpu implements the CPU backend with gonum BLAS integration.
package cpu

import (
	"fmt"

	"github.com/born-ml/vae/internal/parallel"
	"github.com/born-ml/vae/internal/tensor"
)

// float is the set of element types the CPU kernels are instantiated for.
type float interface {
	float32 | float64
}

// CPUBackend implements tensor operations on CPU.
// GEMM goes through gonum BLAS; element loops and per-sample convolution
// work are split across goroutines according to the parallel config.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend using all available cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallelism config.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Parallel returns the parallelism config used by the kernels.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return out
}

func checkSameDType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
}

func unsupported(op string, dtype tensor.DataType) string {
	return fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", op, dtype)
}

// view returns the typed slice of r. T must match r's dtype.
func view[T float](r *tensor.RawTensor) []T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(r.AsFloat32()).([]T)
	default:
		return any(r.AsFloat64()).([]T)
	}
}
