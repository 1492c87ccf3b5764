package cpu

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// Reshape returns a copy of the tensor with a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	return t.WithShape(newShape)
}

// Transpose transposes the tensor by permuting its dimensions.
// With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	srcStrides := t.Strides()
	newShape := make(tensor.Shape, ndim)
	strides := make([]int, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
		strides[i] = srcStrides[ax]
	}

	result := cpu.alloc("transpose", newShape, t.DType())
	gatherStrided(result, t, newShape, strides)
	return result
}

// Expand broadcasts the tensor to a new shape.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()
	if len(newShape) < len(xShape) {
		panic(fmt.Sprintf("expand: new shape %v has fewer dimensions than input shape %v", newShape, xShape))
	}

	offset := len(newShape) - len(xShape)
	for i, xDim := range xShape {
		if newDim := newShape[offset+i]; xDim != 1 && xDim != newDim {
			panic(fmt.Sprintf("expand: cannot expand dimension %d from %d to %d", i, xDim, newDim))
		}
	}

	result := cpu.alloc("expand", newShape, x.DType())
	gatherStrided(result, x, newShape, tensor.BroadcastStrides(xShape, newShape))
	return result
}

func gatherStrided(dst, src *tensor.RawTensor, shape tensor.Shape, strides []int) {
	switch src.DType() {
	case tensor.Float32:
		gatherKernel(dst.AsFloat32(), src.AsFloat32(), shape, strides)
	case tensor.Float64:
		gatherKernel(dst.AsFloat64(), src.AsFloat64(), shape, strides)
	default:
		panic(unsupported("gather", src.DType()))
	}
}

func gatherKernel[T float](dst, src []T, shape tensor.Shape, strides []int) {
	walk(shape, strides, strides, func(i, off, _ int) {
		dst[i] = src[off]
	})
}

// Cat concatenates tensors along dim. All other dimensions must match.
//
// Example:
//
//	a: [4, 1, 3], b: [4, 1, 3] -> Cat([a, b], 1) -> [4, 2, 3]
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}

	first := tensors[0].Shape()
	dim = first.NormalizeDim(dim)

	outShape := first.Clone()
	outShape[dim] = 0
	for i, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: tensor %d has rank %d, expected %d", i, len(s), len(first)))
		}
		checkSameDType("cat", tensors[0], t)
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: tensor %d shape %v incompatible with %v along dim %d", i, s, first, d))
			}
		}
		outShape[dim] += s[dim]
	}

	result := cpu.alloc("cat", outShape, tensors[0].DType())
	outer := tensor.Shape(first[:dim]).NumElements()
	inner := tensor.Shape(first[dim+1:]).NumElements()

	elem := result.DType().Size()
	dst := result.Data()
	rowBytes := outShape[dim] * inner * elem
	offset := 0
	for _, t := range tensors {
		chunk := t.Shape()[dim] * inner * elem
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowBytes+offset:o*rowBytes+offset+chunk], src[o*chunk:(o+1)*chunk])
		}
		offset += chunk
	}
	return result
}
