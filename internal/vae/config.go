// Package vae implements variational autoencoders for fixed-size 158x158
// single-channel images, in an unconditional and a class-conditional
// variant.
//
// The encoder maps an image to the parameters of a diagonal Gaussian over
// a low-dimensional latent space and draws a reparameterized sample. The
// decoder maps a latent sample back to an image. Model ties both together
// and owns the training loop, which minimizes
//
//	loss = Σ (reconstruction - image)² + beta[epoch] * KL(q(z|x) || N(0, I))
//
// In the conditional variant a scalar condition per sample is broadcast to
// a constant extra channel at the encoder input and at the latent.
package vae

import (
	"fmt"
)

// Image geometry shared by the encoder and decoder pyramids.
const (
	// ImageSize is the side of the square input images.
	ImageSize = 158
	// BottleneckSize is the side of the feature map between the pyramids.
	BottleneckSize = 5
	// BottleneckFeatures is BottleneckSize squared, the width of the flat
	// bottleneck fed to the latent heads.
	BottleneckFeatures = BottleneckSize * BottleneckSize
)

// DefaultFeatures is the width of the first convolution stage. Deeper
// stages use 2x, 4x and 8x this value.
const DefaultFeatures = 64

// Config describes the model architecture.
type Config struct {
	// ZDim is the latent dimensionality.
	ZDim int
	// Features is the base feature-map width (nf). Zero means DefaultFeatures.
	Features int
	// Conditional selects the CVAE variant with a scalar condition per sample.
	Conditional bool
	// Seed drives weight initialization and reparameterization noise.
	// Zero seeds from the clock.
	Seed uint64
}

// DefaultConfig returns an unconditional configuration with the given
// latent size and the default feature width.
func DefaultConfig(zDim int) Config {
	return Config{ZDim: zDim, Features: DefaultFeatures}
}

func (c Config) withDefaults() Config {
	if c.Features == 0 {
		c.Features = DefaultFeatures
	}
	return c
}

// Validate reports whether the configuration can build a model.
func (c Config) Validate() error {
	if c.ZDim <= 0 {
		return fmt.Errorf("%w: z dim must be positive, got %d", ErrConfig, c.ZDim)
	}
	if c.Features < 0 {
		return fmt.Errorf("%w: features must be positive, got %d", ErrConfig, c.Features)
	}
	return nil
}

// channels is the number of channels entering the encoder and the decoder:
// the image alone, or the image stacked with the condition.
func (c Config) channels() int {
	if c.Conditional {
		return 2
	}
	return 1
}
