package vae

import (
	"github.com/born-ml/vae/internal/tensor"
)

// concatChannel stacks x with a channel holding each sample's condition.
//
// x has shape (N, C, ...) and condition (N,). The condition is broadcast
// to (N, 1, ...) and appended along dim 1, giving (N, C+1, ...).
func concatChannel[B tensor.Backend](x, condition *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	view := make([]int, len(shape))
	view[0] = shape[0]
	for i := 1; i < len(view); i++ {
		view[i] = 1
	}

	target := shape.Clone()
	target[1] = 1
	channel := condition.Reshape(view...).Expand(target)
	return tensor.Cat([]*tensor.Tensor[float32, B]{x, channel}, 1)
}
