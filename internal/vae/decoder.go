package vae

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// Decoder maps a latent back to an image.
//
// Architecture (nf = Config.Features, C = 1 or 2 latent channels):
//
//	Linear z -> 25, reshape (N, C, 5, 5)
//	convT k4 s2 p1  C   -> 8nf   5  -> 10    bias, BatchNorm, ReLU
//	convT k4 s2 p1  8nf -> 4nf   10 -> 20    BatchNorm, ReLU
//	convT k4 s2 p1  4nf -> 2nf   20 -> 40    BatchNorm, ReLU
//	convT k3 s2 p1  2nf -> nf    40 -> 79    BatchNorm, ReLU
//	convT k4 s2 p1  nf  -> 1     79 -> 158   Sigmoid
type Decoder[B tensor.Backend] struct {
	zDim        int
	channels    int
	conditional bool

	expand *nn.Linear[B]
	layers *nn.Sequential[B]
}

// NewDecoder builds a decoder for cfg, initializing weights from init.
func NewDecoder[B tensor.Backend](cfg Config, init rand.Source, backend B) (*Decoder[B], error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nf := cfg.Features
	c := cfg.channels()
	layers := nn.NewSequential[B](
		nn.NewConvTranspose2D(c, nf*8, 4, 2, 1, 0, true, init, backend),
		nn.NewBatchNorm2D(nf*8, backend),
		nn.NewReLU[B](),

		nn.NewConvTranspose2D(nf*8, nf*4, 4, 2, 1, 0, false, init, backend),
		nn.NewBatchNorm2D(nf*4, backend),
		nn.NewReLU[B](),

		nn.NewConvTranspose2D(nf*4, nf*2, 4, 2, 1, 0, false, init, backend),
		nn.NewBatchNorm2D(nf*2, backend),
		nn.NewReLU[B](),

		nn.NewConvTranspose2D(nf*2, nf, 3, 2, 1, 0, false, init, backend),
		nn.NewBatchNorm2D(nf, backend),
		nn.NewReLU[B](),

		nn.NewConvTranspose2D(nf, 1, 4, 2, 1, 0, false, init, backend),
		nn.NewSigmoid[B](),
	)

	return &Decoder[B]{
		zDim:        cfg.ZDim,
		channels:    c,
		conditional: cfg.Conditional,
		expand:      nn.NewLinear(cfg.ZDim, BottleneckFeatures, true, init, backend),
		layers:      layers,
	}, nil
}

// Forward decodes a latent of shape (N, C, z) into images.
//
// The result is (N, 1, 158, 158) for an unconditional model and
// (N, 158, 158) for a conditional one. A latent whose channel count or
// width does not match the decoder is rejected with ErrShapeMismatch.
func (d *Decoder[B]) Forward(latent *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if latent == nil {
		return nil, fmt.Errorf("%w: missing latent", ErrShapeMismatch)
	}
	shape := latent.Shape()
	if len(shape) != 3 || shape[1] != d.channels || shape[2] != d.zDim {
		return nil, fmt.Errorf("%w: latent must be (N, %d, %d), got %v", ErrShapeMismatch, d.channels, d.zDim, shape)
	}

	h := d.expand.Forward(latent).Reshape(shape[0], d.channels, BottleneckSize, BottleneckSize)
	out := d.layers.Forward(h) // (N, 1, 158, 158)
	if d.conditional {
		// Only the channel axis goes, so a batch of one keeps its batch axis.
		out = out.Squeeze(1)
	}
	return out, nil
}

// Parameters returns the expansion and transposed-convolution parameters.
func (d *Decoder[B]) Parameters() []*nn.Parameter[B] {
	return append(d.expand.Parameters(), d.layers.Parameters()...)
}

// SetTraining switches the BatchNorm layers between batch and running
// statistics.
func (d *Decoder[B]) SetTraining(training bool) {
	d.layers.SetTraining(training)
}

// Channels returns the number of latent channels the decoder expects.
func (d *Decoder[B]) Channels() int {
	return d.channels
}
