package nn

import (
	"github.com/born-ml/vae/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
//	output := relu.Forward(input)  // All negative values become 0
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// LeakyReLU is a leaky rectifier: f(x) = x for x > 0, slope*x otherwise.
//
// Example:
//
//	act := nn.NewLeakyReLU[Backend](0.2)
type LeakyReLU[B tensor.Backend] struct {
	slope float64
}

// NewLeakyReLU creates a LeakyReLU with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return &LeakyReLU[B]{slope: slope}
}

// Forward applies the leaky rectifier.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.LeakyReLU(l.slope)
}

// Parameters returns an empty slice.
func (l *LeakyReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// NegativeSlope returns the slope applied to negative inputs.
func (l *LeakyReLU[B]) NegativeSlope() float64 {
	return l.slope
}

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
//
// Sigmoid squashes values to the range (0, 1), which makes it the output
// activation for images with pixel values in [0, 1].
//
// Example:
//
//	sigmoid := nn.NewSigmoid[Backend]()
//	output := sigmoid.Forward(input)  // Values in range (0, 1)
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation: σ(x) = 1 / (1 + exp(-x)).
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sigmoid()
}

// Parameters returns an empty slice (Sigmoid has no trainable parameters).
func (s *Sigmoid[B]) Parameters() []*Parameter[B] {
	return nil
}
