package vae

import (
	"fmt"
	"iter"
	"slices"

	"github.com/born-ml/vae/internal/tensor"
)

// Batch is one step's worth of training or validation data.
//
// Images has shape (N, 1, 158, 158) or (N, 158, 158). Condition holds one
// value per sample, shape (N,), and must be nil for an unconditional model.
type Batch[B tensor.Backend] struct {
	Images    *tensor.Tensor[float32, B]
	Condition *tensor.Tensor[float32, B]
}

// Size returns the number of samples in the batch.
func (b Batch[B]) Size() int {
	if b.Images == nil || len(b.Images.Shape()) == 0 {
		return 0
	}
	return b.Images.Shape()[0]
}

// Batches returns a sequence over the given batches, in order. The
// sequence can be ranged over any number of times, once per epoch.
func Batches[B tensor.Backend](batches ...Batch[B]) iter.Seq[Batch[B]] {
	return slices.Values(batches)
}

// canonicalImages validates images and returns them in the layout the
// model variant works with: (N, 1, 158, 158) unconditional, (N, 158, 158)
// conditional.
func canonicalImages[B tensor.Backend](images *tensor.Tensor[float32, B], conditional bool) (*tensor.Tensor[float32, B], error) {
	if images == nil {
		return nil, fmt.Errorf("%w: missing images", ErrShapeMismatch)
	}

	shape := images.Shape()
	switch {
	case len(shape) == 3 && shape[1] == ImageSize && shape[2] == ImageSize:
		if conditional {
			return images, nil
		}
		return images.Unsqueeze(1), nil
	case len(shape) == 4 && shape[1] == 1 && shape[2] == ImageSize && shape[3] == ImageSize:
		if conditional {
			return images.Squeeze(1), nil
		}
		return images, nil
	default:
		return nil, fmt.Errorf("%w: images must be (N, 1, %d, %d) or (N, %d, %d), got %v",
			ErrShapeMismatch, ImageSize, ImageSize, ImageSize, ImageSize, shape)
	}
}

// checkCondition validates the condition against the model variant and the
// batch size n.
func checkCondition[B tensor.Backend](condition *tensor.Tensor[float32, B], n int, conditional bool) error {
	if !conditional {
		if condition != nil {
			return fmt.Errorf("%w: unconditional model got a condition", ErrShapeMismatch)
		}
		return nil
	}
	if condition == nil {
		return fmt.Errorf("%w: conditional model needs a condition", ErrShapeMismatch)
	}
	if shape := condition.Shape(); len(shape) != 1 || shape[0] != n {
		return fmt.Errorf("%w: condition must be (%d,), got %v", ErrShapeMismatch, n, shape)
	}
	return nil
}

// placeBatch moves the batch tensors onto backend when they live on a
// different device or backend instance.
func placeBatch[B tensor.Backend](batch Batch[B], backend B) Batch[B] {
	return Batch[B]{
		Images:    place(batch.Images, backend),
		Condition: place(batch.Condition, backend),
	}
}

func place[B tensor.Backend](t *tensor.Tensor[float32, B], backend B) *tensor.Tensor[float32, B] {
	if t == nil {
		return nil
	}
	if t.Device() == backend.Device() && any(t.Backend()) == any(backend) {
		return t
	}
	return t.To(backend)
}
