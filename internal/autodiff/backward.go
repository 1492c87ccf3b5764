package autodiff

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t using the backend's tape, seeding t's
// gradient with ones.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float32](Shape{2}, backend)
//	y := x.Mul(x).Sum() // y = Σx²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // 2x
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()

	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	outputGrad, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		data := outputGrad.AsFloat32()
		for i := range data {
			data[i] = 1.0
		}
	case tensor.Float64:
		data := outputGrad.AsFloat64()
		for i := range data {
			data[i] = 1.0
		}
	default:
		panic(fmt.Sprintf("backward: unsupported dtype %s (only float32/float64 supported)", t.DType()))
	}

	return tape.Backward(t.Raw(), outputGrad, backend)
}

// NoGrad runs fn with the backend's tape stopped, restoring the previous
// recording state afterwards. Used for evaluation passes.
//
// Example:
//
//	autodiff.NoGrad(backend, func() {
//	    out = model.Forward(x)
//	})
func NoGrad(backend BackwardCapable, fn func()) {
	backend.GetTape().NoGrad(fn)
}
