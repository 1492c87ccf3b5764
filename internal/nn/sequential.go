package nn

import (
	"github.com/born-ml/vae/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	block := nn.NewSequential[Backend](
//	    nn.NewConv2D(64, 128, 3, 2, 1, false, src, backend),
//	    nn.NewBatchNorm2D(128, backend),
//	    nn.NewLeakyReLU[Backend](0.2),
//	)
//
//	output := block.Forward(input)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	return CollectParameters(s.modules...)
}

// SetTraining propagates the mode to every Trainable child, including
// nested containers.
func (s *Sequential[B]) SetTraining(training bool) {
	SetTraining(training, s.modules...)
}

// Training reports whether the first Trainable child is in training mode.
// A container without Trainable children reports true.
func (s *Sequential[B]) Training() bool {
	for _, m := range s.modules {
		if tm, ok := m.(Trainable); ok {
			return tm.Training()
		}
	}
	return true
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}
