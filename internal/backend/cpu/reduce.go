package cpu

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// Sum reduces all elements to a scalar (shape []).
// Accumulation happens in float64.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.alloc("sum", tensor.Shape{}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = float32(sumSlice(x.AsFloat32()))
	case tensor.Float64:
		result.AsFloat64()[0] = sumSlice(x.AsFloat64())
	default:
		panic(unsupported("sum", x.DType()))
	}
	return result
}

func sumSlice[T float](data []T) float64 {
	var s float64
	for _, v := range data {
		s += float64(v)
	}
	return s
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	y := backend.SumDim(x, -1, true)   // [2, 3, 4] -> [2, 3, 1]
//	z := backend.SumDim(x, -1, false)  // [2, 3, 4] -> [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumdim", x, dim, keepDim, false)
}

// MeanDim averages tensor elements along the specified dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("meandim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(op string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) == 0 {
		panic(fmt.Sprintf("%s: cannot reduce a scalar", op))
	}
	dim = shape.NormalizeDim(dim)

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, len(shape)-1)
		outShape = append(outShape, shape[:dim]...)
		outShape = append(outShape, shape[dim+1:]...)
	}

	outer := tensor.Shape(shape[:dim]).NumElements()
	size := shape[dim]
	inner := tensor.Shape(shape[dim+1:]).NumElements()

	result := cpu.alloc(op, outShape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		reduceDimKernel(result.AsFloat32(), x.AsFloat32(), outer, size, inner, mean)
	case tensor.Float64:
		reduceDimKernel(result.AsFloat64(), x.AsFloat64(), outer, size, inner, mean)
	default:
		panic(unsupported(op, x.DType()))
	}
	return result
}

// reduceDimKernel views src as [outer, size, inner] and reduces the middle axis.
func reduceDimKernel[T float](dst, src []T, outer, size, inner int, mean bool) {
	acc := make([]float64, inner)
	for o := 0; o < outer; o++ {
		clear(acc)
		base := o * size * inner
		for s := 0; s < size; s++ {
			row := src[base+s*inner : base+(s+1)*inner]
			for i, v := range row {
				acc[i] += float64(v)
			}
		}
		for i, v := range acc {
			if mean {
				v /= float64(size)
			}
			dst[o*inner+i] = T(v)
		}
	}
}
