package vae

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// History collects the losses of one training run.
//
// Train, MSE and KL get one entry per training batch; Val gets one entry
// per validation batch. Epochs holds one summary per completed epoch.
type History struct {
	RunID  string
	Train  []float64
	Val    []float64
	MSE    []float64
	KL     []float64
	Epochs []EpochSummary
}

// EpochSummary aggregates one epoch. Means over an empty phase are NaN.
type EpochSummary struct {
	Epoch        int // zero-based
	Beta         float64
	TrainBatches int
	ValBatches   int
	TrainLoss    float64
	TrainLossStd float64
	ValLoss      float64
	MSE          float64
	KL           float64
	Duration     time.Duration
}

// Losses returns the four per-batch histories in the order train,
// validation, reconstruction, KL.
func (h *History) Losses() (train, val, mse, kl []float64) {
	return h.Train, h.Val, h.MSE, h.KL
}

// Last returns the summary of the last completed epoch.
func (h *History) Last() (EpochSummary, bool) {
	if len(h.Epochs) == 0 {
		return EpochSummary{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// summarize builds the epoch summary from the entries appended since the
// given offsets.
func (h *History) summarize(epoch int, beta float64, trainFrom, valFrom int, elapsed time.Duration) EpochSummary {
	train := h.Train[trainFrom:]
	val := h.Val[valFrom:]

	s := EpochSummary{
		Epoch:        epoch,
		Beta:         beta,
		TrainBatches: len(train),
		ValBatches:   len(val),
		TrainLoss:    mean(train),
		ValLoss:      mean(val),
		MSE:          mean(h.MSE[trainFrom:]),
		KL:           mean(h.KL[trainFrom:]),
		Duration:     elapsed,
	}
	if len(train) > 1 {
		s.TrainLossStd = stat.StdDev(train, nil)
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}
