// Package nn implements the neural network modules used by the VAE models.
//
// This package provides building blocks for constructing convolutional
// encoders and decoders:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear, Conv2D, ConvTranspose2D: Parameterized layers
//   - BatchNorm2D: Per-channel batch normalization with running statistics
//   - Activations: ReLU, LeakyReLU, Sigmoid
//   - Loss functions: MSE with sum or mean reduction
//   - Sequential: Container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/vae/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewConv2D(1, 8, 4, 2, 1, false, src, backend),
//	    nn.NewLeakyReLU[Backend](0.2),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Conv2D expects [batch, channels, height, width].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter[B]
}

// Trainable is implemented by modules whose forward pass differs between
// training and evaluation, such as BatchNorm2D.
type Trainable interface {
	SetTraining(training bool)
	Training() bool
}

// SetTraining switches every Trainable module in mods to training or
// evaluation mode. Other modules are left untouched.
func SetTraining[B tensor.Backend](training bool, mods ...Module[B]) {
	for _, m := range mods {
		if tm, ok := m.(Trainable); ok {
			tm.SetTraining(training)
		}
	}
}

// CollectParameters concatenates the parameters of mods in order.
func CollectParameters[B tensor.Backend](mods ...Module[B]) []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range mods {
		params = append(params, m.Parameters()...)
	}
	return params
}
