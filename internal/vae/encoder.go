package vae

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// encoderSlope is the negative slope of the encoder's leaky rectifiers.
const encoderSlope = 0.2

// Encoding is everything one encoder forward pass produces. All fields
// come from the same pass, so the KL always belongs to the sample it is
// paired with.
type Encoding[B tensor.Backend] struct {
	// Z is the decoder input: the sample, stacked with the condition
	// channel for a conditional model. Shape (N, 1, z) or (N, 2, z).
	Z *tensor.Tensor[float32, B]
	// Sample is the reparameterized draw mu + std*eps, shape (N, 1, z).
	Sample *tensor.Tensor[float32, B]
	// Mu and LogVar parameterize q(z|x), shape (N, 1, z).
	Mu     *tensor.Tensor[float32, B]
	LogVar *tensor.Tensor[float32, B]
	// Std is exp(LogVar/2), shape (N, 1, z).
	Std *tensor.Tensor[float32, B]
	// KL is the scalar 0.5 * Σ(mu² + exp(logVar) - logVar - 1) over the
	// whole batch.
	KL *tensor.Tensor[float32, B]
}

// Encoder maps images to a latent Gaussian and a reparameterized sample.
//
// Architecture (nf = Config.Features, C = 1 or 2 channels):
//
//	conv k4 s2 p1  C    -> nf    158 -> 79   LeakyReLU
//	conv k3 s2 p1  nf   -> 2nf   79  -> 40   BatchNorm, LeakyReLU
//	conv k4 s2 p1  2nf  -> 4nf   40  -> 20   BatchNorm, LeakyReLU
//	conv k4 s2 p1  4nf  -> 8nf   20  -> 10   BatchNorm, LeakyReLU
//	conv k4 s2 p1  8nf  -> 1     10  -> 5
//	flatten (N, 1, 25) -> Linear mu, Linear logVar
//
// None of the convolutions has a bias.
type Encoder[B tensor.Backend] struct {
	zDim        int
	conditional bool

	layers *nn.Sequential[B]
	mu     *nn.Linear[B]
	logVar *nn.Linear[B]

	noise   rand.Source
	backend B

	last *Encoding[B]
}

// NewEncoder builds an encoder for cfg. init seeds the weights and noise
// drives the reparameterization.
func NewEncoder[B tensor.Backend](cfg Config, init, noise rand.Source, backend B) (*Encoder[B], error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nf := cfg.Features
	layers := nn.NewSequential[B](
		nn.NewConv2D(cfg.channels(), nf, 4, 2, 1, false, init, backend),
		nn.NewLeakyReLU[B](encoderSlope),

		nn.NewConv2D(nf, nf*2, 3, 2, 1, false, init, backend),
		nn.NewBatchNorm2D(nf*2, backend),
		nn.NewLeakyReLU[B](encoderSlope),

		nn.NewConv2D(nf*2, nf*4, 4, 2, 1, false, init, backend),
		nn.NewBatchNorm2D(nf*4, backend),
		nn.NewLeakyReLU[B](encoderSlope),

		nn.NewConv2D(nf*4, nf*8, 4, 2, 1, false, init, backend),
		nn.NewBatchNorm2D(nf*8, backend),
		nn.NewLeakyReLU[B](encoderSlope),

		nn.NewConv2D(nf*8, 1, 4, 2, 1, false, init, backend),
	)

	return &Encoder[B]{
		zDim:        cfg.ZDim,
		conditional: cfg.Conditional,
		layers:      layers,
		mu:          nn.NewLinear(BottleneckFeatures, cfg.ZDim, true, init, backend),
		logVar:      nn.NewLinear(BottleneckFeatures, cfg.ZDim, true, init, backend),
		noise:       noise,
		backend:     backend,
	}, nil
}

// Forward encodes a batch.
//
// Unconditional: images (N, 1, 158, 158) or (N, 158, 158), condition nil.
// Conditional: images (N, 158, 158) or (N, 1, 158, 158), condition (N,).
func (e *Encoder[B]) Forward(images, condition *tensor.Tensor[float32, B]) (Encoding[B], error) {
	x, err := canonicalImages(images, e.conditional)
	if err != nil {
		return Encoding[B]{}, err
	}
	n := x.Shape()[0]
	if err := checkCondition(condition, n, e.conditional); err != nil {
		return Encoding[B]{}, err
	}

	if e.conditional {
		x = concatChannel(x.Unsqueeze(1), condition) // (N, 2, 158, 158)
	}

	h := e.layers.Forward(x)                // (N, 1, 5, 5)
	h = h.Reshape(n, 1, BottleneckFeatures) // (N, 1, 25)

	mu := e.mu.Forward(h)
	logVar := e.logVar.Forward(h)
	std := logVar.MulScalar(0.5).Exp()

	sample := reparameterize(mu, std, e.noise, e.backend)

	z := sample
	if e.conditional {
		z = concatChannel(sample, condition) // (N, 2, z)
	}

	enc := Encoding[B]{
		Z:      z,
		Sample: sample,
		Mu:     mu,
		LogVar: logVar,
		Std:    std,
		KL:     klDivergence(mu, logVar),
	}
	e.last = &enc
	return enc, nil
}

// reparameterize draws mu + std*eps with eps ~ N(0, 1). eps is a leaf, so
// gradients flow through mu and std only.
func reparameterize[B tensor.Backend](mu, std *tensor.Tensor[float32, B], src rand.Source, backend B) *tensor.Tensor[float32, B] {
	eps := tensor.RandnFrom[float32](mu.Shape(), src, backend)
	return mu.Add(std.Mul(eps))
}

// klDivergence is the closed-form KL(N(mu, exp(logVar)) || N(0, 1)) summed
// over every element.
func klDivergence[B tensor.Backend](mu, logVar *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return mu.Mul(mu).Add(logVar.Exp()).Sub(logVar).AddScalar(-1).Sum().MulScalar(0.5)
}

// Last returns the encoding of the most recent forward pass, or false if
// the encoder has not run yet. It is meant for inspecting mu and std of
// the latest batch.
func (e *Encoder[B]) Last() (Encoding[B], bool) {
	if e.last == nil {
		return Encoding[B]{}, false
	}
	return *e.last, true
}

// Parameters returns the convolution, BatchNorm and head parameters.
func (e *Encoder[B]) Parameters() []*nn.Parameter[B] {
	params := e.layers.Parameters()
	params = append(params, e.mu.Parameters()...)
	return append(params, e.logVar.Parameters()...)
}

// SetTraining switches the BatchNorm layers between batch and running
// statistics.
func (e *Encoder[B]) SetTraining(training bool) {
	e.layers.SetTraining(training)
}

// ZDim returns the latent dimensionality.
func (e *Encoder[B]) ZDim() int {
	return e.zDim
}

// String returns a short description of the encoder.
func (e *Encoder[B]) String() string {
	return fmt.Sprintf("Encoder(z_dim=%d, conditional=%v, layers=%d)", e.zDim, e.conditional, e.layers.Len())
}
