// Package optim implements the optimization algorithms used to train the
// VAE models.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - Kind and New: selecting an optimizer from configuration
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3}, backend)
//
//	for _, batch := range batches {
//	    optimizer.ZeroGrad()
//	    backend.Tape().StartRecording()
//	    loss := computeLoss(model, batch)
//	    grads := autodiff.Backward(loss, backend)
//	    backend.Tape().StopRecording()
//	    optimizer.Step(grads)
//	    backend.Tape().Clear()
//	}
package optim

import (
	"fmt"
	"strings"

	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters in place based on computed gradients
// to minimize the loss function during training.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes the gradient map from Backward, keyed by each parameter's
	// RawTensor. Parameters without an entry are left unchanged.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Kind names an optimization algorithm.
type Kind int

// Supported optimizers.
const (
	KindAdam Kind = iota
	KindSGD
)

// String returns the lowercase optimizer name.
func (k Kind) String() string {
	switch k {
	case KindAdam:
		return "adam"
	case KindSGD:
		return "sgd"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses an optimizer name ("adam" or "sgd"), ignoring case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "adam":
		return KindAdam, nil
	case "sgd":
		return KindSGD, nil
	default:
		return 0, fmt.Errorf("unknown optimizer %q (want adam or sgd)", s)
	}
}

// Config is the optimizer-independent configuration used by New.
type Config struct {
	LR       float32 // Learning rate
	Momentum float32 // SGD momentum (ignored by Adam)
}

// New creates the optimizer selected by kind over params.
//
// Adam keeps its default betas and epsilon; SGD uses cfg.Momentum.
func New[B tensor.Backend](kind Kind, params []*nn.Parameter[B], cfg Config, backend B) (Optimizer, error) {
	switch kind {
	case KindAdam:
		return NewAdam(params, AdamConfig{LR: cfg.LR}, backend), nil
	case KindSGD:
		return NewSGD(params, SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}, backend), nil
	default:
		return nil, fmt.Errorf("unsupported optimizer kind %v", kind)
	}
}

// getGradient looks up the gradient for a parameter and records it on the
// parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, backend B) []float32 {
	if param == nil {
		return nil
	}
	grad, ok := grads[param.Tensor().Raw()]
	if !ok || grad == nil {
		return nil
	}
	if !grad.Shape().Equal(param.Tensor().Shape()) {
		panic(fmt.Sprintf("optim: gradient shape %v does not match parameter %q shape %v",
			grad.Shape(), param.Name(), param.Tensor().Shape()))
	}
	param.SetGrad(tensor.New[float32, B](grad, backend))
	return grad.AsFloat32()
}
