package nn

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/tensor"
)

// KaimingUniform initializes a weight or bias tensor the way PyTorch's
// default layer initialization does.
//
// Values are drawn from U(-1/sqrt(fanIn), 1/sqrt(fanIn)). For weights this
// equals kaiming_uniform with a=sqrt(5); for biases it is the documented
// PyTorch bias rule.
//
// Parameters:
//   - fanIn: Number of inputs feeding one output unit
//   - shape: Shape of the tensor
//   - src: Random source (nil uses the global source)
//   - backend: Backend to use for tensor creation
//
// Returns the initialized tensor.
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	if fanIn <= 0 {
		panic("KaimingUniform: fanIn must be positive")
	}
	bound := 1 / math.Sqrt(float64(fanIn))
	return tensor.Uniform[float32](shape, -bound, bound, src, backend)
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Uniform[float32](shape, -bound, bound, src, backend)
}

// Zeros creates a float32 tensor filled with zeros.
//
// This is commonly used for BatchNorm shifts and running means.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a float32 tensor filled with ones.
//
// This is commonly used for BatchNorm scales and running variances.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
