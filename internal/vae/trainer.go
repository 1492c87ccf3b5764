package vae

import (
	"fmt"
	"iter"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/optim"
	"github.com/born-ml/vae/internal/tensor"
)

// EmptyEpochPolicy decides what happens when an epoch's training batches
// yield nothing.
type EmptyEpochPolicy int

const (
	// EmptySkip logs a warning and moves on to validation.
	EmptySkip EmptyEpochPolicy = iota
	// EmptyFail aborts training with ErrEmptyEpoch.
	EmptyFail
)

// String returns the policy name.
func (p EmptyEpochPolicy) String() string {
	switch p {
	case EmptySkip:
		return "skip"
	case EmptyFail:
		return "fail"
	default:
		return fmt.Sprintf("EmptyEpochPolicy(%d)", int(p))
	}
}

// Training defaults.
const (
	DefaultEpochs       = 100
	DefaultLearningRate = 1e-3
	DefaultBeta         = 0.1
)

// TrainConfig configures Model.Train. Zero fields take the defaults.
type TrainConfig struct {
	Epochs       int     // default 100
	LearningRate float64 // default 1e-3
	Beta         Beta    // default Constant(0.1)

	Optimizer optim.Kind   // default Adam
	Momentum  float64      // SGD only
	Reduction nn.Reduction // reconstruction loss, default sum

	EmptyEpochs EmptyEpochPolicy

	// ValidationBatchStats keeps BatchNorm on batch statistics during
	// validation instead of switching to running statistics.
	ValidationBatchStats bool

	// Logger receives per-epoch Info and per-batch Debug records.
	// Nil uses slog.Default().
	Logger *slog.Logger

	// OnEpoch, when set, is called after every epoch.
	OnEpoch func(EpochSummary)
}

// DefaultTrainConfig returns the default training configuration.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       DefaultEpochs,
		LearningRate: DefaultLearningRate,
		Beta:         Constant(DefaultBeta),
		Optimizer:    optim.KindAdam,
		Reduction:    nn.ReductionSum,
	}
}

func (c TrainConfig) withDefaults() TrainConfig {
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.Beta.IsZero() {
		c.Beta = Constant(DefaultBeta)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Train fits the model on trainBatches for cfg.Epochs epochs.
//
// Each epoch runs two phases in order. TRAIN: for every batch, forward,
// loss = reconstruction + beta[epoch]*KL, backward and one optimizer step,
// then one entry each in History.Train, MSE and KL. VALIDATE: with
// gradients off and BatchNorm on running statistics, the same loss over
// valBatches, one History.Val entry per batch. Each validation loss uses
// the KL of its own forward pass. valBatches may be nil.
//
// The sequences are ranged over once per epoch. On error the history
// collected so far is returned along with it.
func (m *Model[B]) Train(trainBatches, valBatches iter.Seq[Batch[B]], cfg TrainConfig) (*History, error) {
	cfg = cfg.withDefaults()
	if cfg.Epochs < 0 {
		return nil, fmt.Errorf("%w: epochs must be positive, got %d", ErrConfig, cfg.Epochs)
	}
	if trainBatches == nil {
		return nil, fmt.Errorf("%w: no training batches", ErrConfig)
	}
	betas, err := cfg.Beta.Resolve(cfg.Epochs)
	if err != nil {
		return nil, err
	}

	opt, err := optim.New(cfg.Optimizer, m.Parameters(), optim.Config{
		LR:       float32(cfg.LearningRate),
		Momentum: float32(cfg.Momentum),
	}, m.backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	t := &trainer[B]{
		model: m,
		opt:   opt,
		loss:  nn.NewMSELoss[B](cfg.Reduction),
		cfg:   cfg,
		hist:  &History{RunID: uuid.NewString()},
	}
	t.log = cfg.Logger.With("run", t.hist.RunID)
	t.log.Info("training started",
		"epochs", cfg.Epochs,
		"optimizer", cfg.Optimizer,
		"lr", cfg.LearningRate,
		"beta", cfg.Beta,
		"reduction", cfg.Reduction,
		"conditional", m.cfg.Conditional,
		"z_dim", m.cfg.ZDim,
		"parameters", m.NumParameters())

	m.SetTraining(true)
	for epoch, beta := range betas {
		if err := t.epoch(epoch, beta, trainBatches, valBatches); err != nil {
			return t.hist, err
		}
	}
	return t.hist, nil
}

type trainer[B autodiff.BackwardCapable] struct {
	model *Model[B]
	opt   optim.Optimizer
	loss  *nn.MSELoss[B]
	cfg   TrainConfig
	hist  *History
	log   *slog.Logger
}

func (t *trainer[B]) epoch(epoch int, beta float64, trainBatches, valBatches iter.Seq[Batch[B]]) error {
	start := time.Now()
	trainFrom, valFrom := len(t.hist.Train), len(t.hist.Val)

	for batch := range trainBatches {
		if err := t.trainStep(epoch, beta, batch); err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", epoch+1, len(t.hist.Train)-trainFrom, err)
		}
	}

	if len(t.hist.Train) == trainFrom {
		if t.cfg.EmptyEpochs == EmptyFail {
			return fmt.Errorf("epoch %d: %w", epoch+1, ErrEmptyEpoch)
		}
		t.log.Warn("epoch yielded no training batches", "epoch", epoch+1)
	}

	if valBatches != nil {
		if err := t.validate(epoch, beta, valBatches); err != nil {
			return fmt.Errorf("epoch %d validation: %w", epoch+1, err)
		}
		if len(t.hist.Val) == valFrom {
			t.log.Warn("epoch yielded no validation batches", "epoch", epoch+1)
		}
	}

	summary := t.hist.summarize(epoch, beta, trainFrom, valFrom, time.Since(start))
	t.hist.Epochs = append(t.hist.Epochs, summary)
	t.log.Info("epoch complete",
		"epoch", epoch+1,
		"of", t.cfg.Epochs,
		"beta", beta,
		"train_loss", summary.TrainLoss,
		"val_loss", summary.ValLoss,
		"mse", summary.MSE,
		"kl", summary.KL,
		"duration", summary.Duration)
	if t.cfg.OnEpoch != nil {
		t.cfg.OnEpoch(summary)
	}
	return nil
}

// prepare places the batch on the model's backend and validates it,
// returning the reconstruction target in the model's output layout.
func (t *trainer[B]) prepare(batch Batch[B]) (Batch[B], *tensor.Tensor[float32, B], error) {
	batch = placeBatch(batch, t.model.backend)
	target, err := canonicalImages(batch.Images, t.model.cfg.Conditional)
	if err != nil {
		return batch, nil, err
	}
	if err := checkCondition(batch.Condition, target.Shape()[0], t.model.cfg.Conditional); err != nil {
		return batch, nil, err
	}
	return batch, target, nil
}

func (t *trainer[B]) trainStep(epoch int, beta float64, batch Batch[B]) error {
	batch, target, err := t.prepare(batch)
	if err != nil {
		return err
	}

	tape := t.model.backend.GetTape()
	tape.Clear()
	t.opt.ZeroGrad()

	tape.StartRecording()
	out, err := t.model.Forward(batch.Images, batch.Condition)
	if err != nil {
		tape.StopRecording()
		tape.Clear()
		return err
	}
	recon := t.loss.Forward(out.Reconstruction, target)
	total := recon.Add(out.Encoding.KL.MulScalar(beta))
	grads := autodiff.Backward(total, t.model.backend)
	tape.StopRecording()

	t.opt.Step(grads)
	tape.Clear()

	loss := float64(total.Item())
	t.hist.Train = append(t.hist.Train, loss)
	t.hist.MSE = append(t.hist.MSE, float64(recon.Item()))
	t.hist.KL = append(t.hist.KL, float64(out.Encoding.KL.Item()))

	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.log.Warn("non-finite training loss", "epoch", epoch+1, "loss", loss)
	}
	t.log.Debug("train batch",
		"epoch", epoch+1,
		"batch", len(t.hist.Train),
		"size", target.Shape()[0],
		"loss", loss)
	return nil
}

func (t *trainer[B]) validate(epoch int, beta float64, valBatches iter.Seq[Batch[B]]) (err error) {
	if !t.cfg.ValidationBatchStats {
		t.model.SetTraining(false)
		defer t.model.SetTraining(true)
	}

	autodiff.NoGrad(t.model.backend, func() {
		for batch := range valBatches {
			var target *tensor.Tensor[float32, B]
			batch, target, err = t.prepare(batch)
			if err != nil {
				return
			}
			var out Output[B]
			out, err = t.model.Forward(batch.Images, batch.Condition)
			if err != nil {
				return
			}
			loss := float64(t.loss.Forward(out.Reconstruction, target).Add(out.Encoding.KL.MulScalar(beta)).Item())
			t.hist.Val = append(t.hist.Val, loss)
			t.log.Debug("validation batch", "epoch", epoch+1, "batch", len(t.hist.Val), "loss", loss)
		}
	})
	return err
}
