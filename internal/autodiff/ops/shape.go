package ops

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// ReshapeOp represents a reshape. The gradient is reshaped back to the
// input shape.
type ReshapeOp struct{ unaryOp }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unaryOp{input: input, output: output}}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// TransposeOp represents a dimension permutation. The gradient is permuted
// with the inverse permutation.
type TransposeOp struct {
	unaryOp
	axes []int
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{unaryOp: unaryOp{input: input, output: output}, axes: append([]int(nil), axes...)}
}

// Backward applies the inverse permutation to the gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

// ExpandOp represents a broadcast to a larger shape. The gradient is summed
// over the broadcast dimensions.
type ExpandOp struct{ unaryOp }

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(input, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{unaryOp{input: input, output: output}}
}

// Backward reduces the gradient to the input shape.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{reduceBroadcast(outputGrad, op.input.Shape(), backend)}
}

// CatOp represents concatenation along a dimension. Each input receives
// its slice of the output gradient.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a new CatOp.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{
		inputs: append([]*tensor.RawTensor(nil), inputs...),
		output: output,
		dim:    output.Shape().NormalizeDim(dim),
	}
}

// Inputs returns the concatenated tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the concatenated result.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward splits the gradient along the concatenation dimension.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	start := 0
	for i, in := range op.inputs {
		length := in.Shape()[op.dim]
		grads[i] = narrow(outputGrad, op.dim, start, length, backend.Device())
		start += length
	}
	return grads
}

// narrow copies x[..., start:start+length, ...] along dim.
func narrow(x *tensor.RawTensor, dim, start, length int, device tensor.Device) *tensor.RawTensor {
	shape := x.Shape()
	if start < 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim %d of %v", start, start+length, dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	out, err := tensor.NewRaw(outShape, x.DType(), device)
	if err != nil {
		panic(fmt.Sprintf("narrow: %v", err))
	}

	elem := x.DType().Size()
	outer := tensor.Shape(shape[:dim]).NumElements()
	inner := tensor.Shape(shape[dim+1:]).NumElements() * elem
	src, dst := x.Data(), out.Data()
	srcRow := shape[dim] * inner
	dstRow := length * inner
	for o := 0; o < outer; o++ {
		copy(dst[o*dstRow:(o+1)*dstRow], src[o*srcRow+start*inner:o*srcRow+(start+length)*inner])
	}
	return out
}
