package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/tensor"
)

// Conv2D implements a 2D convolutional layer with a square kernel.
//
// Input shape: [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel) / stride + 1
//	out_w = (width + 2*padding - kernel) / stride + 1
//
// Example:
//
//	// 1 -> 64 channels, k=4, s=2, p=1: 158x158 -> 79x79
//	conv := nn.NewConv2D(1, 64, 4, 2, 1, false, src, backend)
//	output := conv.Forward(input)
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B] // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a new 2D convolutional layer.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (number of filters)
//   - kernel: Kernel height and width
//   - stride: Stride for convolution
//   - padding: Zero padding applied to each spatial border
//   - useBias: Whether to include bias term
//   - src: Random source for initialization (nil uses the global source)
//   - backend: Backend for computation
//
// Weights and bias use KaimingUniform with fan_in = in_channels*kernel*kernel.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernel, stride, padding int,
	useBias bool,
	src rand.Source,
	backend B,
) *Conv2D[B] {
	validateConvArgs("conv2d", inChannels, outChannels, kernel, stride, padding)

	fanIn := inChannels * kernel * kernel
	c := &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernel,
		stride:      stride,
		padding:     padding,
		backend:     backend,
	}
	c.weight = NewParameter("weight", KaimingUniform(fanIn, tensor.Shape{outChannels, inChannels, kernel, kernel}, src, backend))
	if useBias {
		c.bias = NewParameter("bias", KaimingUniform(fanIn, tensor.Shape{outChannels}, src, backend))
	}
	return c
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	output := input.Conv2D(c.weight.Tensor(), c.stride, c.padding)
	if c.bias != nil {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return output
}

// Parameters returns all trainable parameters.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.bias != nil)
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// KernelSize returns the kernel size.
func (c *Conv2D[B]) KernelSize() int {
	return c.kernelSize
}

// ComputeOutputSize computes the output side length for a given input side.
func (c *Conv2D[B]) ComputeOutputSize(input int) int {
	return (input+2*c.padding-c.kernelSize)/c.stride + 1
}

func validateConvArgs(name string, in, out, kernel, stride, padding int) {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("%s: invalid channels in=%d, out=%d", name, in, out))
	}
	if kernel <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d", name, kernel))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", name, stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("%s: invalid padding %d", name, padding))
	}
}
