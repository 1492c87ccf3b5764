// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vae provides a convolutional variational autoencoder and its
// conditional variant for 158x158 single-channel images.
//
// A Model pairs an Encoder, which maps images to a diagonal Gaussian
// posterior over a latent vector, with a Decoder, which maps latent
// vectors back to images. In the conditional variant every sample also
// carries one scalar condition that both halves see as an extra channel.
//
// Example:
//
//	backend := vae.NewCPU(0)
//	model, err := vae.NewModel(vae.Config{ZDim: 16, Seed: 1}, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := vae.DefaultTrainConfig()
//	cfg.Epochs = 20
//	cfg.Beta = vae.LinearAnneal(0, 0.5)
//	history, err := model.Train(vae.Batches(train...), vae.Batches(val...), cfg)
package vae

import (
	"iter"

	"github.com/born-ml/vae/autodiff"
	"github.com/born-ml/vae/backend/cpu"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/optim"
	internalvae "github.com/born-ml/vae/internal/vae"
	"github.com/born-ml/vae/tensor"
)

// Architecture constants.
const (
	ImageSize          = internalvae.ImageSize
	BottleneckSize     = internalvae.BottleneckSize
	BottleneckFeatures = internalvae.BottleneckFeatures
	DefaultFeatures    = internalvae.DefaultFeatures
)

// Training defaults.
const (
	DefaultEpochs       = internalvae.DefaultEpochs
	DefaultLearningRate = internalvae.DefaultLearningRate
	DefaultBeta         = internalvae.DefaultBeta
)

// Errors returned by model construction, forward passes and training.
var (
	ErrShapeMismatch = internalvae.ErrShapeMismatch
	ErrBetaSchedule  = internalvae.ErrBetaSchedule
	ErrEmptyEpoch    = internalvae.ErrEmptyEpoch
	ErrConfig        = internalvae.ErrConfig
)

// Config describes the model architecture.
type Config = internalvae.Config

// Model is a variational autoencoder bound to backend B.
type Model[B autodiff.BackwardCapable] = internalvae.Model[B]

// Encoder maps images to latent samples.
type Encoder[B tensor.Backend] = internalvae.Encoder[B]

// Decoder maps latent samples to images.
type Decoder[B tensor.Backend] = internalvae.Decoder[B]

// Encoding holds the posterior parameters and sample of one forward pass.
type Encoding[B tensor.Backend] = internalvae.Encoding[B]

// Output is the result of Model.Forward.
type Output[B tensor.Backend] = internalvae.Output[B]

// Batch is one training or validation batch.
type Batch[B tensor.Backend] = internalvae.Batch[B]

// TrainConfig configures Model.Train.
type TrainConfig = internalvae.TrainConfig

// Beta is a KL weight schedule.
type Beta = internalvae.Beta

// History holds per-batch losses recorded by Model.Train.
type History = internalvae.History

// EpochSummary aggregates one epoch of a History.
type EpochSummary = internalvae.EpochSummary

// EmptyEpochPolicy decides what happens when an epoch has no training batches.
type EmptyEpochPolicy = internalvae.EmptyEpochPolicy

// Empty epoch policies.
const (
	EmptySkip = internalvae.EmptySkip
	EmptyFail = internalvae.EmptyFail
)

// OptimizerKind selects the optimizer used by Model.Train.
type OptimizerKind = optim.Kind

// Optimizers.
const (
	Adam = optim.KindAdam
	SGD  = optim.KindSGD
)

// ParseOptimizer parses "adam" or "sgd".
func ParseOptimizer(s string) (OptimizerKind, error) {
	return optim.ParseKind(s)
}

// Reduction selects how the reconstruction loss combines pixel errors.
type Reduction = nn.Reduction

// Reductions.
const (
	ReductionSum  = nn.ReductionSum
	ReductionMean = nn.ReductionMean
)

// ParseReduction parses "sum" or "mean".
func ParseReduction(s string) (Reduction, error) {
	return nn.ParseReduction(s)
}

// CPUBackend is the CPU backend with gradient recording, the backend
// models are usually trained on.
type CPUBackend = autodiff.Backend[*cpu.Backend]

// NewCPU returns a CPU training backend running kernels on at most
// workers goroutines. workers <= 0 means one per CPU.
func NewCPU(workers int) *CPUBackend {
	return autodiff.New(cpu.NewWithWorkers(workers))
}

// DefaultConfig returns an unconditional configuration with latent size zDim.
func DefaultConfig(zDim int) Config {
	return internalvae.DefaultConfig(zDim)
}

// DefaultTrainConfig returns the default training configuration.
func DefaultTrainConfig() TrainConfig {
	return internalvae.DefaultTrainConfig()
}

// NewModel builds a model for cfg on backend.
func NewModel[B autodiff.BackwardCapable](cfg Config, backend B) (*Model[B], error) {
	return internalvae.NewModel(cfg, backend)
}

// Constant returns a beta that is v for every epoch.
func Constant(v float64) Beta {
	return internalvae.Constant(v)
}

// Schedule returns a beta with one explicit value per epoch.
func Schedule(values []float64) Beta {
	return internalvae.Schedule(values)
}

// LinearAnneal returns a beta moving linearly from from to to.
func LinearAnneal(from, to float64) Beta {
	return internalvae.LinearAnneal(from, to)
}

// Batches returns a reusable sequence over batches.
func Batches[B tensor.Backend](batches ...Batch[B]) iter.Seq[Batch[B]] {
	return internalvae.Batches(batches...)
}
