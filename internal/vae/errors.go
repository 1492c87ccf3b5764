package vae

import "errors"

var (
	// ErrShapeMismatch reports a batch, condition or latent whose shape does
	// not match what the model was built for.
	ErrShapeMismatch = errors.New("vae: shape mismatch")

	// ErrBetaSchedule reports a beta schedule that cannot be resolved
	// against the requested number of epochs.
	ErrBetaSchedule = errors.New("vae: invalid beta schedule")

	// ErrEmptyEpoch is returned under EmptyFail when the training batches
	// of an epoch yield nothing.
	ErrEmptyEpoch = errors.New("vae: epoch yielded no training batches")

	// ErrConfig reports an invalid model or training configuration.
	ErrConfig = errors.New("vae: invalid configuration")
)
