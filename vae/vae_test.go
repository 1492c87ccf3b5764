// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package vae_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/tensor"
	"github.com/born-ml/vae/vae"
)

func TestPublicTrainingRoundTrip(t *testing.T) {
	backend := vae.NewCPU(1)
	model, err := vae.NewModel(vae.Config{ZDim: 3, Features: 4, Conditional: true, Seed: 7}, backend)
	require.NoError(t, err)

	images := tensor.Full[float32](tensor.Shape{2, vae.ImageSize, vae.ImageSize}, 0.5, backend)
	cond, err := tensor.FromSlice([]float32{0, 1}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	cfg := vae.DefaultTrainConfig()
	cfg.Epochs = 1
	cfg.Beta = vae.Schedule([]float64{0.2})
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	batch := vae.Batch[*vae.CPUBackend]{Images: images, Condition: cond}
	history, err := model.Train(vae.Batches(batch), vae.Batches(batch), cfg)
	require.NoError(t, err)
	assert.Len(t, history.Train, 1)
	assert.Len(t, history.Val, 1)
	assert.Len(t, history.Epochs, 1)

	recon, err := model.Reconstruct(images, cond)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, vae.ImageSize, vae.ImageSize}, recon.Shape())
}

func TestPublicParsers(t *testing.T) {
	kind, err := vae.ParseOptimizer("sgd")
	require.NoError(t, err)
	assert.Equal(t, vae.SGD, kind)

	red, err := vae.ParseReduction("mean")
	require.NoError(t, err)
	assert.Equal(t, vae.ReductionMean, red)

	_, err = vae.NewModel(vae.Config{}, vae.NewCPU(1))
	assert.ErrorIs(t, err, vae.ErrConfig)
}
