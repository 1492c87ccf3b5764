package nn

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// Reduction selects how a per-element loss is collapsed to a scalar.
type Reduction int

// Supported reductions.
const (
	// ReductionSum adds the per-element losses.
	ReductionSum Reduction = iota
	// ReductionMean averages the per-element losses.
	ReductionMean
)

// String returns the reduction name.
func (r Reduction) String() string {
	switch r {
	case ReductionSum:
		return "sum"
	case ReductionMean:
		return "mean"
	default:
		return fmt.Sprintf("Reduction(%d)", int(r))
	}
}

// ParseReduction parses "sum" or "mean".
func ParseReduction(s string) (Reduction, error) {
	switch s {
	case "sum":
		return ReductionSum, nil
	case "mean":
		return ReductionMean, nil
	default:
		return 0, fmt.Errorf("unknown reduction %q (want sum or mean)", s)
	}
}

// MSELoss computes the squared error between predictions and targets.
//
//	sum:  Loss = Σ (predictions - targets)²
//	mean: Loss = mean((predictions - targets)²)
//
// The loss is built from tensor operations, so on an autodiff backend it
// is differentiable with respect to the predictions.
//
// Example:
//
//	mse := nn.NewMSELoss[Backend](nn.ReductionSum)
//	loss := mse.Forward(reconstruction, images)
type MSELoss[B tensor.Backend] struct {
	reduction Reduction
}

// NewMSELoss creates a new MSE loss function with the given reduction.
func NewMSELoss[B tensor.Backend](reduction Reduction) *MSELoss[B] {
	return &MSELoss[B]{reduction: reduction}
}

// Forward computes the MSE loss as a scalar tensor (shape []).
//
// Panics if the shapes differ.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSELoss: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape()))
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)

	switch m.reduction {
	case ReductionSum:
		return squared.Sum()
	case ReductionMean:
		return squared.Mean()
	default:
		panic(fmt.Sprintf("MSELoss: unsupported reduction %v", m.reduction))
	}
}

// Reduction returns the configured reduction.
func (m *MSELoss[B]) Reduction() Reduction {
	return m.reduction
}

// Parameters returns an empty slice (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
