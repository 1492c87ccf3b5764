package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor [..., in_features]
//   - W is the weight matrix [out_features, in_features]
//   - b is the bias vector [out_features]
//   - y is the output tensor [..., out_features]
//
// Inputs of rank greater than two are treated as a batch of rows, so a
// latent of shape [N, C, z] maps to [N, C, out_features].
//
// Weights and bias are initialized with KaimingUniform (PyTorch default).
//
// Example:
//
//	layer := nn.NewLinear(25, 16, true, src, backend)
//	output := layer.Forward(input) // [N, 1, 25] -> [N, 1, 16]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B] // nil when useBias is false
	backend     B
}

// NewLinear creates a new Linear layer.
//
// Parameters:
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - useBias: Whether to add a learnable bias
//   - src: Random source for initialization (nil uses the global source)
//   - backend: Backend to use for tensor operations
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, useBias bool, src rand.Source, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("Linear: features must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}

	l := &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		backend:     backend,
	}
	l.weight = NewParameter("weight", KaimingUniform(inFeatures, tensor.Shape{outFeatures, inFeatures}, src, backend))
	if useBias {
		l.bias = NewParameter("bias", KaimingUniform(inFeatures, tensor.Shape{outFeatures}, src, backend))
	}
	return l
}

// Forward computes the linear transformation along the last axis.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("Linear: input must be at least 2D, got %v", shape))
	}
	if shape[len(shape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear: expected last dimension %d, got %v", l.inFeatures, shape))
	}

	x := input
	if len(shape) > 2 {
		x = input.Reshape(-1, l.inFeatures)
	}

	output := x.MatMul(l.weight.Tensor().T())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}

	if len(shape) > 2 {
		outShape := append(shape[:len(shape)-1:len(shape)-1], l.outFeatures)
		output = output.Reshape(outShape...)
	}
	return output
}

// Parameters returns the weight and, when present, the bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias == nil {
		return []*Parameter[B]{l.weight}
	}
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter, or nil for a layer without bias.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
