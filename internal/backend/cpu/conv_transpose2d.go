package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/vae/internal/parallel"
	"github.com/born-ml/vae/internal/tensor"
)

// ConvTranspose2D performs a 2D transposed convolution (fractionally strided
// convolution), the adjoint of Conv2D.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [in_channels, out_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w] where
//
//	out_h = (height-1)*stride - 2*padding + kernel_h + outputPadding
//
// Per sample: cols = kernel^T [C_out*K_h*K_w, C_in] @ x[n] [C_in, H*W],
// then col2im onto the output image.
func (cpu *CPUBackend) ConvTranspose2D(input, kernel *tensor.RawTensor, stride, padding, outputPadding int) *tensor.RawTensor {
	n, cIn, g := convTranspose2dGeometry("conv_transpose2d", input.Shape(), kernel.Shape(), stride, padding, outputPadding)
	checkSameDType("conv_transpose2d", input, kernel)

	output := cpu.alloc("conv_transpose2d", tensor.Shape{n, g.C, g.H, g.W}, input.DType())
	switch input.DType() {
	case tensor.Float32:
		convTranspose2dForward(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), n, cIn, g, cpu.par)
	case tensor.Float64:
		convTranspose2dForward(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), n, cIn, g, cpu.par)
	default:
		panic(unsupported("conv_transpose2d", input.DType()))
	}
	return output
}

// ConvTranspose2DInputBackward computes the gradient w.r.t. the input,
// which is an ordinary convolution of grad with the kernel.
func (cpu *CPUBackend) ConvTranspose2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cIn, g := convTranspose2dGradGeometry("conv_transpose2d input backward", input, kernel, grad, stride, padding)

	inputGrad := cpu.alloc("conv_transpose2d input backward", input.Shape(), grad.DType())
	switch grad.DType() {
	case tensor.Float32:
		convTranspose2dInputBackward(inputGrad.AsFloat32(), kernel.AsFloat32(), grad.AsFloat32(), n, cIn, g, cpu.par)
	case tensor.Float64:
		convTranspose2dInputBackward(inputGrad.AsFloat64(), kernel.AsFloat64(), grad.AsFloat64(), n, cIn, g, cpu.par)
	default:
		panic(unsupported("conv_transpose2d input backward", grad.DType()))
	}
	return inputGrad
}

// ConvTranspose2DKernelBackward computes the gradient w.r.t. the kernel:
// dkernel = Σ_n x[n] @ im2col(grad[n])^T.
func (cpu *CPUBackend) ConvTranspose2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cIn, g := convTranspose2dGradGeometry("conv_transpose2d kernel backward", input, kernel, grad, stride, padding)

	kernelGrad := cpu.alloc("conv_transpose2d kernel backward", kernel.Shape(), grad.DType())
	switch grad.DType() {
	case tensor.Float32:
		convTranspose2dKernelBackward(kernelGrad.AsFloat32(), input.AsFloat32(), grad.AsFloat32(), n, cIn, g)
	case tensor.Float64:
		convTranspose2dKernelBackward(kernelGrad.AsFloat64(), input.AsFloat64(), grad.AsFloat64(), n, cIn, g)
	default:
		panic(unsupported("conv_transpose2d kernel backward", grad.DType()))
	}
	return kernelGrad
}

// convTranspose2dGeometry returns the geometry of the equivalent forward
// convolution, which reads the C_out×H_out×W_out output image onto the
// H×W input grid.
func convTranspose2dGeometry(op string, inputShape, kernelShape tensor.Shape, stride, padding, outputPadding int) (n, cIn int, g convGeom) {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_in,C_out,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d or padding %d", op, stride, padding))
	}
	if outputPadding < 0 || outputPadding >= stride {
		panic(fmt.Sprintf("%s: output padding %d must be in [0, stride=%d)", op, outputPadding, stride))
	}
	if inputShape[1] != kernelShape[0] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, inputShape[1], kernelShape[0]))
	}

	h, w := inputShape[2], inputShape[3]
	g = convGeom{
		C:  kernelShape[1],
		KH: kernelShape[2], KW: kernelShape[3],
		HOut: h, WOut: w,
		stride: stride, padding: padding,
	}
	g.H = (h-1)*stride - 2*padding + g.KH + outputPadding
	g.W = (w-1)*stride - 2*padding + g.KW + outputPadding
	if g.H <= 0 || g.W <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.H, g.W))
	}
	return inputShape[0], inputShape[1], g
}

// convTranspose2dGradGeometry derives the geometry from the gradient shape,
// so any output padding used in the forward pass is recovered.
func convTranspose2dGradGeometry(op string, input, kernel, grad *tensor.RawTensor, stride, padding int) (n, cIn int, g convGeom) {
	gs := grad.Shape()
	if len(gs) != 4 {
		panic(fmt.Sprintf("%s: gradient must be 4D, got %dD", op, len(gs)))
	}
	ks := kernel.Shape()
	outputPadding := gs[2] - ((input.Shape()[2]-1)*stride - 2*padding + ks[2])
	n, cIn, g = convTranspose2dGeometry(op, input.Shape(), ks, stride, padding, outputPadding)
	checkGradShape(op, grad, tensor.Shape{n, g.C, g.H, g.W})
	return n, cIn, g
}

func convTranspose2dForward[T float](out, x, w []T, n, cIn int, g convGeom, cfg parallel.Config) {
	rows, cols := g.colRows(), g.colCols()
	parallel.For(n, func(i int) {
		buf := make([]T, rows*cols)
		gemm(blas.Trans, blas.NoTrans, rows, cols, cIn, 1, w, rows, x[i*cIn*cols:(i+1)*cIn*cols], cols, 0, buf, cols)
		col2im(out[i*g.imgSize():(i+1)*g.imgSize()], buf, g)
	}, cfg.Coarse())
}

func convTranspose2dInputBackward[T float](dx, w, dy []T, n, cIn int, g convGeom, cfg parallel.Config) {
	rows, cols := g.colRows(), g.colCols()
	parallel.For(n, func(i int) {
		buf := make([]T, rows*cols)
		im2col(buf, dy[i*g.imgSize():(i+1)*g.imgSize()], g)
		gemm(blas.NoTrans, blas.NoTrans, cIn, cols, rows, 1, w, rows, buf, cols, 0, dx[i*cIn*cols:(i+1)*cIn*cols], cols)
	}, cfg.Coarse())
}

func convTranspose2dKernelBackward[T float](dw, x, dy []T, n, cIn int, g convGeom) {
	rows, cols := g.colRows(), g.colCols()
	buf := make([]T, rows*cols)
	for i := 0; i < n; i++ {
		im2col(buf, dy[i*g.imgSize():(i+1)*g.imgSize()], g)
		gemm(blas.NoTrans, blas.Trans, cIn, rows, cols, 1, x[i*cIn*cols:(i+1)*cIn*cols], cols, buf, cols, 1, dw, rows)
	}
}
