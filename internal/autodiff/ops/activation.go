package ops

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// ReLUOp represents a ReLU (Rectified Linear Unit) activation: output = max(0, x).
//
// Backward pass:
//   - d(ReLU(x))/dx = 1 if x > 0, else 0
//
// The gradient is computed by creating a mask where input > 0, then
// multiplying the output gradient by this mask.
type ReLUOp struct{ unaryOp }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unaryOp{input: input, output: output}}
}

// Backward computes input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := slopeMask(op.input, 0, backend)
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// LeakyReLUOp represents a leaky ReLU: output = x if x > 0, else slope * x.
//
// Backward pass:
//   - d/dx = 1 if x > 0, else slope
type LeakyReLUOp struct {
	unaryOp
	slope float64
}

// NewLeakyReLUOp creates a new LeakyReLUOp.
func NewLeakyReLUOp(input, output *tensor.RawTensor, slope float64) *LeakyReLUOp {
	return &LeakyReLUOp{unaryOp: unaryOp{input: input, output: output}, slope: slope}
}

// Backward computes input gradient for LeakyReLU.
func (op *LeakyReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := slopeMask(op.input, op.slope, backend)
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// slopeMask returns 1 where input > 0 and negSlope elsewhere.
func slopeMask(input *tensor.RawTensor, negSlope float64, backend tensor.Backend) *tensor.RawTensor {
	mask, err := tensor.NewRaw(input.Shape(), input.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create mask: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		fillMask(mask.AsFloat32(), input.AsFloat32(), float32(negSlope))
	case tensor.Float64:
		fillMask(mask.AsFloat64(), input.AsFloat64(), negSlope)
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s (only float32/float64 supported)", input.DType()))
	}
	return mask
}

func fillMask[T float32 | float64](mask, input []T, negSlope T) {
	for i, v := range input {
		if v > 0 {
			mask[i] = 1
		} else {
			mask[i] = negSlope
		}
	}
}

// SigmoidOp represents the sigmoid activation operation: σ(x) = 1 / (1 + exp(-x)).
//
// Backward pass uses the saved output:
//
//	grad_input = grad_output * σ(x) * (1 - σ(x))
type SigmoidOp struct{ unaryOp }

// NewSigmoidOp creates a new sigmoid operation.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{unaryOp{input: input, output: output}}
}

// Backward computes the gradient for sigmoid.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// 1 - σ(x)
	oneMinus := backend.AddScalar(backend.MulScalar(op.output, -1), 1)
	derivative := backend.Mul(op.output, oneMinus)
	return []*tensor.RawTensor{backend.Mul(outputGrad, derivative)}
}
