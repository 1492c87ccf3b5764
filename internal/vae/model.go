package vae

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

// Output is the result of a full forward pass.
type Output[B tensor.Backend] struct {
	// Reconstruction has the canonical image shape of the model variant.
	Reconstruction *tensor.Tensor[float32, B]
	// Encoding is the encoder result the reconstruction was decoded from.
	Encoding Encoding[B]
}

// Model is a variational autoencoder: an Encoder and a Decoder sharing a
// latent size, plus the training loop (see Train).
//
// The backend must record operations for backpropagation, which in
// practice means an *autodiff.AutodiffBackend.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, err := vae.NewModel(vae.Config{ZDim: 8, Conditional: true, Seed: 1}, backend)
//	history, err := model.Train(trainBatches, valBatches, vae.DefaultTrainConfig())
type Model[B autodiff.BackwardCapable] struct {
	cfg      Config
	encoder  *Encoder[B]
	decoder  *Decoder[B]
	backend  B
	training bool
}

// NewModel builds the encoder and decoder for cfg on backend.
//
// Weights use PyTorch's default uniform initialization, seeded from
// cfg.Seed. The model starts in training mode.
func NewModel[B autodiff.BackwardCapable](cfg Config, backend B) (*Model[B], error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	init := rand.NewSource(seed)
	noise := rand.NewSource(seed ^ 0x9e3779b97f4a7c15)

	encoder, err := NewEncoder(cfg, init, noise, backend)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	decoder, err := NewDecoder(cfg, init, backend)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}

	return &Model[B]{
		cfg:      cfg,
		encoder:  encoder,
		decoder:  decoder,
		backend:  backend,
		training: true,
	}, nil
}

// Forward encodes and decodes a batch. condition must be nil for an
// unconditional model and (N,) for a conditional one.
func (m *Model[B]) Forward(images, condition *tensor.Tensor[float32, B]) (Output[B], error) {
	enc, err := m.encoder.Forward(images, condition)
	if err != nil {
		return Output[B]{}, err
	}
	recon, err := m.decoder.Forward(enc.Z)
	if err != nil {
		return Output[B]{}, err
	}
	return Output[B]{Reconstruction: recon, Encoding: enc}, nil
}

// Encode runs the encoder only.
func (m *Model[B]) Encode(images, condition *tensor.Tensor[float32, B]) (Encoding[B], error) {
	return m.encoder.Forward(images, condition)
}

// Decode runs the decoder only. For a conditional model the latent must
// already carry the condition channel, shape (N, 2, z).
func (m *Model[B]) Decode(latent *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return m.decoder.Forward(latent)
}

// Reconstruct is the inference path: it runs Forward in evaluation mode
// without recording gradients and restores the previous mode afterwards.
func (m *Model[B]) Reconstruct(images, condition *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	was := m.training
	m.SetTraining(false)
	defer m.SetTraining(was)

	var (
		out Output[B]
		err error
	)
	autodiff.NoGrad(m.backend, func() {
		out, err = m.Forward(images, condition)
	})
	if err != nil {
		return nil, err
	}
	return out.Reconstruction, nil
}

// SetTraining switches BatchNorm layers between batch statistics (true)
// and running statistics (false).
func (m *Model[B]) SetTraining(training bool) {
	m.training = training
	m.encoder.SetTraining(training)
	m.decoder.SetTraining(training)
}

// Training reports whether the model is in training mode.
func (m *Model[B]) Training() bool {
	return m.training
}

// Parameters returns every trainable parameter, encoder first.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return append(m.encoder.Parameters(), m.decoder.Parameters()...)
}

// NumParameters returns the number of trainable scalars.
func (m *Model[B]) NumParameters() int {
	return nn.CountParameters(m.Parameters())
}

// Config returns the configuration the model was built with, defaults
// applied.
func (m *Model[B]) Config() Config {
	return m.cfg
}

// Encoder returns the model's encoder.
func (m *Model[B]) Encoder() *Encoder[B] {
	return m.encoder
}

// Decoder returns the model's decoder.
func (m *Model[B]) Decoder() *Decoder[B] {
	return m.decoder
}

// Backend returns the backend the model's parameters live on.
func (m *Model[B]) Backend() B {
	return m.backend
}
