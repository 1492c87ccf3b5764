package ops

import "github.com/born-ml/vae/internal/tensor"

// Conv2DOp records a 2D convolution operation for autodiff.
//
// Forward: output = Conv2D(input, kernel, stride, padding)
//
// Backward (gradients):
//   - d_input:  transposed convolution of d_output with kernel
//   - d_kernel: correlation of input with d_output
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
type Conv2DOp struct {
	binaryOp
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2D operation.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		binaryOp: binaryOp{a: input, b: kernel, output: output},
		stride:   stride,
		padding:  padding,
	}
}

// Backward computes gradients for Conv2D by delegating to the backend.
//
// Given:
//   - outputGrad: ∂L/∂output [N, C_out, H_out, W_out]
//
// Compute:
//   - inputGrad:  ∂L/∂input  [N, C_in, H, W]
//   - kernelGrad: ∂L/∂kernel [C_out, C_in, K_h, K_w]
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2DInputBackward(op.a, op.b, outputGrad, op.stride, op.padding)
	kernelGrad := backend.Conv2DKernelBackward(op.a, op.b, outputGrad, op.stride, op.padding)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

// ConvTranspose2DOp records a 2D transposed convolution for autodiff.
//
// The output padding used in the forward pass is recovered by the backend
// from the gradient shape.
type ConvTranspose2DOp struct {
	binaryOp
	stride  int
	padding int
}

// NewConvTranspose2DOp creates a new ConvTranspose2D operation.
func NewConvTranspose2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *ConvTranspose2DOp {
	return &ConvTranspose2DOp{
		binaryOp: binaryOp{a: input, b: kernel, output: output},
		stride:   stride,
		padding:  padding,
	}
}

// Backward computes gradients for ConvTranspose2D:
//   - inputGrad:  ∂L/∂input  [N, C_in, H, W] (a forward convolution of outputGrad)
//   - kernelGrad: ∂L/∂kernel [C_in, C_out, K_h, K_w]
func (op *ConvTranspose2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.ConvTranspose2DInputBackward(op.a, op.b, outputGrad, op.stride, op.padding)
	kernelGrad := backend.ConvTranspose2DKernelBackward(op.a, op.b, outputGrad, op.stride, op.padding)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
