package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vae/internal/parallel"
	"github.com/born-ml/vae/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float64) float64 { return x / y })
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("mulscalar", x, func(v float64) float64 { return v * scalar })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("addscalar", x, func(v float64) float64 { return v + scalar })
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, math.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, math.Log)
}

// Sqrt computes the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sqrt", x, math.Sqrt)
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("rsqrt", x, func(v float64) float64 { return 1 / math.Sqrt(v) })
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float64) float64 { return math.Max(v, 0) })
}

// LeakyReLU computes x for x > 0 and slope*x otherwise.
func (cpu *CPUBackend) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	return cpu.unary("leakyrelu", x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return slope * v
	})
}

// Sigmoid computes 1/(1+e^-x) element-wise.
// Large negative inputs are evaluated as e^x/(1+e^x) to avoid overflow.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, func(v float64) float64 {
		if v >= 0 {
			return 1 / (1 + math.Exp(-v))
		}
		e := math.Exp(v)
		return e / (1 + e)
	})
}

func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	out := cpu.alloc(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		mapSlice(out.AsFloat32(), x.AsFloat32(), f, cpu.par)
	case tensor.Float64:
		mapSlice(out.AsFloat64(), x.AsFloat64(), f, cpu.par)
	default:
		panic(unsupported(op, x.DType()))
	}
	return out
}

func mapSlice[T float](dst, src []T, f func(float64) float64, cfg parallel.Config) {
	parallel.Range(len(src), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = T(f(float64(src[i])))
		}
	}, cfg)
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	checkSameDType(op, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	out := cpu.alloc(op, outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		binaryKernel(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, needsBroadcast, f, cpu.par)
	case tensor.Float64:
		binaryKernel(out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, needsBroadcast, f, cpu.par)
	default:
		panic(unsupported(op, a.DType()))
	}
	return out
}

func binaryKernel[T float](dst, a, b []T, aShape, bShape, outShape tensor.Shape, broadcast bool, f func(x, y float64) float64, cfg parallel.Config) {
	if !broadcast {
		parallel.Range(len(dst), func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = T(f(float64(a[i]), float64(b[i])))
			}
		}, cfg)
		return
	}

	sa := tensor.BroadcastStrides(aShape, outShape)
	sb := tensor.BroadcastStrides(bShape, outShape)
	walk(outShape, sa, sb, func(i, offA, offB int) {
		dst[i] = T(f(float64(a[offA]), float64(b[offB])))
	})
}

// walk visits every element of shape in row-major order, passing the flat
// output index and the offsets into two strided sources.
func walk(shape tensor.Shape, sa, sb []int, visit func(i, offA, offB int)) {
	n := shape.NumElements()
	nd := len(shape)
	idx := make([]int, nd)
	offA, offB := 0, 0
	for i := 0; i < n; i++ {
		visit(i, offA, offB)
		for d := nd - 1; d >= 0; d-- {
			idx[d]++
			offA += sa[d]
			offB += sb[d]
			if idx[d] < shape[d] {
				break
			}
			offA -= sa[d] * shape[d]
			offB -= sb[d] * shape[d]
			idx[d] = 0
		}
	}
}
