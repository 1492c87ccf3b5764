// Package autodiff implements reverse-mode automatic differentiation using
// the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient
// tracking through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op implements its backward pass
//   - Reverse-mode AD: Computes gradients efficiently using chain rule
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	x, _ := tensor.FromSlice([]float32{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x) // y = x²
//
//	grads := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()]) // dy/dx = 2x = 4.0
package autodiff

import (
	"github.com/born-ml/vae/internal/autodiff/ops"
	"github.com/born-ml/vae/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
// Useful for:
//   - Starting/stopping recording
//   - Clearing tape between iterations
//   - Inspecting recorded operations
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.tape.Record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.tape.Record(ops.NewMulOp(a, c, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.tape.Record(ops.NewDivOp(a, c, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.tape.Record(ops.NewMatMulOp(a, c, result))
	return result
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	b.tape.Record(ops.NewMulScalarOp(x, result, scalar))
	return result
}

// AddScalar adds a constant and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	b.tape.Record(ops.NewAddScalarOp(x, result))
	return result
}

// Exp computes e^x and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Exp(x)
	b.tape.Record(ops.NewExpOp(x, result))
	return result
}

// Log computes ln(x) and records the operation.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Log(x)
	b.tape.Record(ops.NewLogOp(x, result))
	return result
}

// Sqrt computes sqrt(x) and records the operation.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sqrt(x)
	b.tape.Record(ops.NewSqrtOp(x, result))
	return result
}

// Rsqrt computes 1/sqrt(x) and records the operation.
// Used by batch normalization.
func (b *AutodiffBackend[B]) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Rsqrt(x)
	b.tape.Record(ops.NewRsqrtOp(x, result))
	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, result))
	return result
}

// LeakyReLU applies the leaky rectifier and records the operation.
func (b *AutodiffBackend[B]) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	result := b.inner.LeakyReLU(x, slope)
	b.tape.Record(ops.NewLeakyReLUOp(x, result, slope))
	return result
}

// Sigmoid applies the logistic function and records the operation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sigmoid(x)
	b.tape.Record(ops.NewSigmoidOp(x, result))
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding))
	return result
}

// Conv2DInputBackward delegates to the wrapped backend. Not recorded:
// backward kernels run with the tape stopped.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// ConvTranspose2D performs a transposed convolution and records the operation.
func (b *AutodiffBackend[B]) ConvTranspose2D(input, kernel *tensor.RawTensor, stride, padding, outputPadding int) *tensor.RawTensor {
	result := b.inner.ConvTranspose2D(input, kernel, stride, padding, outputPadding)
	b.tape.Record(ops.NewConvTranspose2DOp(input, kernel, result, stride, padding))
	return result
}

// ConvTranspose2DInputBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) ConvTranspose2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.ConvTranspose2DInputBackward(input, kernel, grad, stride, padding)
}

// ConvTranspose2DKernelBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) ConvTranspose2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.ConvTranspose2DKernelBackward(input, kernel, grad, stride, padding)
}

// Sum reduces all elements and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.tape.Record(ops.NewSumOp(x, result))
	return result
}

// SumDim sums along a dimension and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	b.tape.Record(ops.NewSumDimOp(x, result, dim, keepDim))
	return result
}

// MeanDim averages along a dimension and records the operation.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.MeanDim(x, dim, keepDim)
	b.tape.Record(ops.NewMeanDimOp(x, result, dim, keepDim))
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape returns a new tensor, so it must be recorded for gradients to
// reach the original. Example: a Linear bias of shape [out] broadcast as
// [1, out] only receives a gradient through the ReshapeOp.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose transposes a tensor and records the operation.
//
// The backend copies data, so without recording the gradient computed for
// the transposed copy would never reach the original parameter.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	ndim := len(t.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	result := b.inner.Transpose(t, axes...)
	b.tape.Record(ops.NewTransposeOp(t, result, axes))
	return result
}

// Expand broadcasts a tensor and records the operation.
func (b *AutodiffBackend[B]) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Expand(x, shape)
	b.tape.Record(ops.NewExpandOp(x, result))
	return result
}

// Cat concatenates tensors and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Cat(tensors, dim)
	b.tape.Record(ops.NewCatOp(tensors, result, dim))
	return result
}
