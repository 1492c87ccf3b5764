package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/tensor"
)

// ConvTranspose2D implements a 2D transposed convolution (fractionally
// strided convolution) with a square kernel.
//
// Input shape: [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height - 1)*stride - 2*padding + kernel + output_padding
//
// The kernel is stored as [in_channels, out_channels, kernel, kernel],
// matching the layout of the Conv2D it is the adjoint of.
//
// Example:
//
//	// 64 -> 1 channels, k=4, s=2, p=1: 79x79 -> 158x158
//	deconv := nn.NewConvTranspose2D(64, 1, 4, 2, 1, 0, false, src, backend)
type ConvTranspose2D[B tensor.Backend] struct {
	inChannels    int
	outChannels   int
	kernelSize    int
	stride        int
	padding       int
	outputPadding int

	weight *Parameter[B] // [in_channels, out_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConvTranspose2D creates a new transposed convolution layer.
//
// Weights and bias use KaimingUniform with fan_in computed from the
// second kernel axis (out_channels*kernel*kernel), as PyTorch does.
func NewConvTranspose2D[B tensor.Backend](
	inChannels, outChannels int,
	kernel, stride, padding, outputPadding int,
	useBias bool,
	src rand.Source,
	backend B,
) *ConvTranspose2D[B] {
	validateConvArgs("conv_transpose2d", inChannels, outChannels, kernel, stride, padding)
	if outputPadding < 0 || outputPadding >= stride {
		panic(fmt.Sprintf("conv_transpose2d: output padding %d must be in [0, stride=%d)", outputPadding, stride))
	}

	fanIn := outChannels * kernel * kernel
	c := &ConvTranspose2D[B]{
		inChannels:    inChannels,
		outChannels:   outChannels,
		kernelSize:    kernel,
		stride:        stride,
		padding:       padding,
		outputPadding: outputPadding,
		backend:       backend,
	}
	c.weight = NewParameter("weight", KaimingUniform(fanIn, tensor.Shape{inChannels, outChannels, kernel, kernel}, src, backend))
	if useBias {
		c.bias = NewParameter("bias", KaimingUniform(fanIn, tensor.Shape{outChannels}, src, backend))
	}
	return c
}

// Forward performs the forward pass.
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv_transpose2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv_transpose2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	output := input.ConvTranspose2D(c.weight.Tensor(), c.stride, c.padding, c.outputPadding)
	if c.bias != nil {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return output
}

// Parameters returns all trainable parameters.
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// String returns a string representation of the layer.
func (c *ConvTranspose2D[B]) String() string {
	return fmt.Sprintf("ConvTranspose2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, output_padding=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.outputPadding, c.bias != nil)
}

// Weight returns the kernel parameter.
func (c *ConvTranspose2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *ConvTranspose2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// InChannels returns the number of input channels.
func (c *ConvTranspose2D[B]) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *ConvTranspose2D[B]) OutChannels() int {
	return c.outChannels
}

// ComputeOutputSize computes the output side length for a given input side.
func (c *ConvTranspose2D[B]) ComputeOutputSize(input int) int {
	return (input-1)*c.stride - 2*c.padding + c.kernelSize + c.outputPadding
}
