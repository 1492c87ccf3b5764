package ops

import "github.com/born-ml/vae/internal/tensor"

// SumOp represents a full reduction: output = Σx (scalar).
//
// Backward pass: grad_x = broadcast(outputGrad, x.shape).
type SumOp struct{ unaryOp }

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{unaryOp{input: input, output: output}}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Expand(outputGrad, op.input.Shape())}
}

// SumDimOp represents a reduction sum along a dimension: output = sum(x, dim).
//
// Backward pass:
//
//	grad_x = broadcast(grad_y, x.shape)
//
// If keepDim=false, the gradient is unsqueezed first to match broadcasting requirements.
type SumDimOp struct {
	unaryOp
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{
		unaryOp: unaryOp{input: input, output: output},
		dim:     input.Shape().NormalizeDim(dim),
		keepDim: keepDim,
	}
}

// Backward broadcasts the gradient back along the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandReduced(outputGrad, op.input.Shape(), op.dim, op.keepDim, backend)}
}

// MeanDimOp represents a reduction mean operation along a dimension: output = mean(x, dim).
//
// Forward:
//
//	y = mean(x, dim, keepDim) = sum(x, dim, keepDim) / size[dim]
//
// Backward:
//
//	grad_x = broadcast(grad_y, x.shape) / size[dim]
type MeanDimOp struct {
	unaryOp
	dim     int
	keepDim bool
}

// NewMeanDimOp creates a new MeanDimOp.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	return &MeanDimOp{
		unaryOp: unaryOp{input: input, output: output},
		dim:     input.Shape().NormalizeDim(dim),
		keepDim: keepDim,
	}
}

// Backward computes input gradients for mean reduction.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	grad := expandReduced(outputGrad, shape, op.dim, op.keepDim, backend)
	return []*tensor.RawTensor{backend.MulScalar(grad, 1/float64(shape[op.dim]))}
}

// expandReduced broadcasts the gradient of a dim reduction back to shape.
func expandReduced(grad *tensor.RawTensor, shape tensor.Shape, dim int, keepDim bool, backend tensor.Backend) *tensor.RawTensor {
	if !keepDim {
		kept := shape.Clone()
		kept[dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	return backend.Expand(grad, shape)
}
