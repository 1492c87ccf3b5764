package nn

import (
	"github.com/born-ml/vae/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are float32 tensors that receive gradients during training.
// The optimizer updates the underlying tensor in place, so the RawTensor
// pointer of a parameter stays stable for its whole lifetime and serves as
// the key into the gradient map returned by Backward.
//
// Example:
//
//	weight := nn.NewParameter("encoder.conv1.weight", weightTensor)
//	grads := backend.Tape().Backward(loss.Raw(), seed, backend)
//	g := grads[weight.Tensor().Raw()]
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	grad   *tensor.Tensor[float32, B] // Gradient tensor (computed during backward pass)
}

// NewParameter creates a new trainable parameter.
//
// The tensor must already be initialized. The gradient stays nil until
// the first backward pass.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been computed yet (before backward pass).
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
//
// Optimizers call this when they look up the gradient for a step.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// NumElements returns the number of scalar values in the parameter.
func (p *Parameter[B]) NumElements() int {
	return p.tensor.NumElements()
}

// CountParameters returns the total number of scalar values in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.NumElements()
	}
	return n
}
