package optim

import (
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]][]float32
	backend    B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer. A zero LR defaults to 0.01.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]][]float32),
		backend:    backend,
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads, s.backend)
		if grad == nil {
			continue
		}

		data := param.Tensor().Data()
		if s.momentum == 0 {
			for i, g := range grad {
				data[i] -= s.lr * g
			}
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = make([]float32, len(data))
			s.velocities[param] = velocity
		}
		for i, g := range grad {
			velocity[i] = s.momentum*velocity[i] + g
			data[i] -= s.lr * velocity[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
