package nn

import (
	"fmt"

	"github.com/born-ml/vae/internal/tensor"
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] input over the
// batch and spatial axes, then applies a learned per-channel affine map.
//
// In training mode the batch statistics are used and the running
// statistics are updated with an exponential moving average:
//
//	running_mean = (1-momentum)*running_mean + momentum*batch_mean
//	running_var  = (1-momentum)*running_var  + momentum*batch_var_unbiased
//
// In evaluation mode the running statistics are used instead.
//
// The normalization is composed from differentiable tensor operations, so
// gradients reach both the input and gamma/beta through the autodiff tape.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float64
	momentum    float64
	training    bool

	gamma *Parameter[B] // [C], initialized to 1
	beta  *Parameter[B] // [C], initialized to 0

	runningMean *tensor.Tensor[float32, B] // [C]
	runningVar  *tensor.Tensor[float32, B] // [C]

	backend B
}

// Default BatchNorm2D hyperparameters (PyTorch defaults).
const (
	DefaultBatchNormEps      = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// NewBatchNorm2D creates a BatchNorm2D over numFeatures channels with
// default eps and momentum. The layer starts in training mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid number of features %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         DefaultBatchNormEps,
		momentum:    DefaultBatchNormMomentum,
		training:    true,
		gamma:       NewParameter("weight", Ones(shape, backend)),
		beta:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		backend:     backend,
	}
}

// Forward normalizes the input.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %v", shape))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	c := bn.numFeatures
	var normalized *tensor.Tensor[float32, B]
	if bn.training {
		mean := channelMean(input)
		centered := input.Sub(mean)
		variance := channelMean(centered.Mul(centered))
		bn.updateRunningStats(mean, variance, shape[0]*shape[2]*shape[3])
		normalized = centered.Mul(variance.AddScalar(bn.eps).Rsqrt())
	} else {
		mean := bn.runningMean.Reshape(1, c, 1, 1)
		invStd := bn.runningVar.Reshape(1, c, 1, 1).AddScalar(bn.eps).Rsqrt()
		normalized = input.Sub(mean).Mul(invStd)
	}

	scale := bn.gamma.Tensor().Reshape(1, c, 1, 1)
	shift := bn.beta.Tensor().Reshape(1, c, 1, 1)
	return normalized.Mul(scale).Add(shift)
}

// channelMean averages over the batch and spatial axes keeping [1, C, 1, 1].
func channelMean[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance *tensor.Tensor[float32, B], count int) {
	correction := 1.0
	if count > 1 {
		correction = float64(count) / float64(count-1)
	}
	m := float32(bn.momentum)
	rm := bn.runningMean.Data()
	rv := bn.runningVar.Data()
	bm := mean.Data()
	bv := variance.Data()
	for i := range rm {
		rm[i] = (1-m)*rm[i] + m*bm[i]
		rv[i] = (1-m)*rv[i] + m*float32(float64(bv[i])*correction)
	}
}

// Parameters returns gamma and beta.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// SetTraining switches between batch statistics (true) and running
// statistics (false).
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer uses batch statistics.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// RunningMean returns the running mean [C].
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance [C].
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}
