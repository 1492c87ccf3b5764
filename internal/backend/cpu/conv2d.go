package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/vae/internal/parallel"
	"github.com/born-ml/vae/internal/tensor"
)

// convGeom describes one sample of a strided 2D convolution: an image of
// C×H×W read through a KH×KW window onto an HOut×WOut grid.
type convGeom struct {
	C, H, W    int
	KH, KW     int
	HOut, WOut int
	stride     int
	padding    int
}

func (g convGeom) colRows() int { return g.C * g.KH * g.KW }
func (g convGeom) colCols() int { return g.HOut * g.WOut }
func (g convGeom) imgSize() int { return g.C * g.H * g.W }

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// For each sample the input patches are unfolded into a column matrix
// [C_in*K_h*K_w, H_out*W_out] and the output is a single GEMM:
//
//	out[n] = kernel[C_out, C_in*K_h*K_w] @ cols
//
// Samples are processed in parallel.
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cOut, g := conv2dGeometry("conv2d", input.Shape(), kernel.Shape(), stride, padding)
	checkSameDType("conv2d", input, kernel)

	output := cpu.alloc("conv2d", tensor.Shape{n, cOut, g.HOut, g.WOut}, input.DType())
	switch input.DType() {
	case tensor.Float32:
		conv2dForward(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), n, cOut, g, cpu.par)
	case tensor.Float64:
		conv2dForward(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), n, cOut, g, cpu.par)
	default:
		panic(unsupported("conv2d", input.DType()))
	}
	return output
}

// Conv2DInputBackward computes the gradient w.r.t. the input:
// dcols = kernel^T @ grad[n], folded back onto the image with col2im.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cOut, g := conv2dGeometry("conv2d input backward", input.Shape(), kernel.Shape(), stride, padding)
	checkGradShape("conv2d input backward", grad, tensor.Shape{n, cOut, g.HOut, g.WOut})

	inputGrad := cpu.alloc("conv2d input backward", input.Shape(), grad.DType())
	switch grad.DType() {
	case tensor.Float32:
		conv2dInputBackward(inputGrad.AsFloat32(), kernel.AsFloat32(), grad.AsFloat32(), n, cOut, g, cpu.par)
	case tensor.Float64:
		conv2dInputBackward(inputGrad.AsFloat64(), kernel.AsFloat64(), grad.AsFloat64(), n, cOut, g, cpu.par)
	default:
		panic(unsupported("conv2d input backward", grad.DType()))
	}
	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the kernel:
// dkernel = Σ_n grad[n] @ cols[n]^T.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	n, cOut, g := conv2dGeometry("conv2d kernel backward", input.Shape(), kernel.Shape(), stride, padding)
	checkGradShape("conv2d kernel backward", grad, tensor.Shape{n, cOut, g.HOut, g.WOut})

	kernelGrad := cpu.alloc("conv2d kernel backward", kernel.Shape(), grad.DType())
	switch grad.DType() {
	case tensor.Float32:
		conv2dKernelBackward(kernelGrad.AsFloat32(), input.AsFloat32(), grad.AsFloat32(), n, cOut, g)
	case tensor.Float64:
		conv2dKernelBackward(kernelGrad.AsFloat64(), input.AsFloat64(), grad.AsFloat64(), n, cOut, g)
	default:
		panic(unsupported("conv2d kernel backward", grad.DType()))
	}
	return kernelGrad
}

func conv2dGeometry(op string, inputShape, kernelShape tensor.Shape, stride, padding int) (n, cOut int, g convGeom) {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d or padding %d", op, stride, padding))
	}
	if inputShape[1] != kernelShape[1] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, inputShape[1], kernelShape[1]))
	}

	g = convGeom{
		C: inputShape[1], H: inputShape[2], W: inputShape[3],
		KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	return inputShape[0], kernelShape[0], g
}

func checkGradShape(op string, grad *tensor.RawTensor, want tensor.Shape) {
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: gradient shape %v, expected %v", op, grad.Shape(), want))
	}
}

func conv2dForward[T float](out, x, w []T, n, cOut int, g convGeom, cfg parallel.Config) {
	rows, cols := g.colRows(), g.colCols()
	parallel.For(n, func(i int) {
		buf := make([]T, rows*cols)
		im2col(buf, x[i*g.imgSize():(i+1)*g.imgSize()], g)
		gemm(blas.NoTrans, blas.NoTrans, cOut, cols, rows, 1, w, rows, buf, cols, 0, out[i*cOut*cols:(i+1)*cOut*cols], cols)
	}, cfg.Coarse())
}

func conv2dInputBackward[T float](dx, w, dy []T, n, cOut int, g convGeom, cfg parallel.Config) {
	rows, cols := g.colRows(), g.colCols()
	parallel.For(n, func(i int) {
		buf := make([]T, rows*cols)
		gemm(blas.Trans, blas.NoTrans, rows, cols, cOut, 1, w, rows, dy[i*cOut*cols:(i+1)*cOut*cols], cols, 0, buf, cols)
		col2im(dx[i*g.imgSize():(i+1)*g.imgSize()], buf, g)
	}, cfg.Coarse())
}

func conv2dKernelBackward[T float](dw, x, dy []T, n, cOut int, g convGeom) {
	rows, cols := g.colRows(), g.colCols()
	buf := make([]T, rows*cols)
	for i := 0; i < n; i++ {
		im2col(buf, x[i*g.imgSize():(i+1)*g.imgSize()], g)
		gemm(blas.NoTrans, blas.Trans, cOut, rows, cols, 1, dy[i*cOut*cols:(i+1)*cOut*cols], cols, buf, cols, 1, dw, rows)
	}
}

// im2col unfolds one C×H×W image into cols [C*KH*KW, HOut*WOut].
// Row (c, kh, kw) holds the input value under that kernel tap for every
// output position; taps falling into the zero padding read 0.
func im2col[T float](cols, img []T, g convGeom) {
	hw := g.colCols()
	for c := 0; c < g.C; c++ {
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := cols[((c*g.KH+kh)*g.KW+kw)*hw:]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						var v T
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							v = img[(c*g.H+h)*g.W+w]
						}
						row[oh*g.WOut+ow] = v
					}
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatters cols back onto the image,
// accumulating overlapping taps. Padding taps are dropped.
func col2im[T float](img, cols []T, g convGeom) {
	hw := g.colCols()
	for c := 0; c < g.C; c++ {
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := cols[((c*g.KH+kh)*g.KW+kw)*hw:]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					if h < 0 || h >= g.H {
						continue
					}
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if w < 0 || w >= g.W {
							continue
						}
						img[(c*g.H+h)*g.W+w] += row[oh*g.WOut+ow]
					}
				}
			}
		}
	}
}
