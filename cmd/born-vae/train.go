package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/envconfig"
	"github.com/born-ml/vae/vae"
)

type trainOptions struct {
	zDim        int
	features    int
	conditional bool
	epochs      int
	lr          float64
	beta        float64
	betaEnd     float64
	batchSize   int
	samples     int
	valFraction float64
	optimizer   string
	momentum    float64
	reduction   string
	seed        uint64
	failEmpty   bool
}

func newTrainCmd() *cobra.Command {
	var opts trainOptions

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a VAE or CVAE on synthetic galaxy images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return trainHandler(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.zDim, "zdim", 16, "Latent dimensionality")
	f.IntVar(&opts.features, "features", vae.DefaultFeatures, "Base feature-map width")
	f.BoolVar(&opts.conditional, "conditional", false, "Train the conditional variant")
	f.IntVar(&opts.epochs, "epochs", int(envconfig.Epochs()), "Number of epochs")
	f.Float64Var(&opts.lr, "lr", envconfig.LearningRate(), "Learning rate")
	f.Float64Var(&opts.beta, "beta", envconfig.Beta(), "KL weight, or the starting weight with --beta-end")
	f.Float64Var(&opts.betaEnd, "beta-end", 0, "Anneal beta linearly to this value over the run")
	f.IntVar(&opts.batchSize, "batch", 16, "Batch size")
	f.IntVar(&opts.samples, "samples", 256, "Number of synthetic images")
	f.Float64Var(&opts.valFraction, "val", 0.2, "Fraction of samples held out for validation")
	f.StringVar(&opts.optimizer, "optimizer", "adam", "Optimizer (adam or sgd)")
	f.Float64Var(&opts.momentum, "momentum", 0, "SGD momentum")
	f.StringVar(&opts.reduction, "reduction", "sum", "Reconstruction loss reduction (sum or mean)")
	f.Uint64Var(&opts.seed, "seed", envconfig.Seed(), "Random seed (0 = from clock)")
	f.BoolVar(&opts.failEmpty, "fail-empty", false, "Fail when an epoch has no training batches")

	return cmd
}

func trainHandler(cmd *cobra.Command, opts trainOptions) error {
	if opts.samples <= 0 || opts.batchSize <= 0 {
		return errors.New("samples and batch must be positive")
	}
	if opts.valFraction < 0 || opts.valFraction >= 1 {
		return fmt.Errorf("val must be in [0, 1), got %g", opts.valFraction)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: envconfig.LogLevel()}))

	kind, err := vae.ParseOptimizer(opts.optimizer)
	if err != nil {
		return err
	}
	reduction, err := vae.ParseReduction(opts.reduction)
	if err != nil {
		return err
	}

	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	backend := vae.NewCPU(envconfig.NumThreads())
	model, err := vae.NewModel(vae.Config{
		ZDim:        opts.zDim,
		Features:    opts.features,
		Conditional: opts.conditional,
		Seed:        seed,
	}, backend)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed + 1))
	nVal := int(float64(opts.samples) * opts.valFraction)
	train, err := syntheticBatches(opts.samples-nVal, opts.batchSize, opts.conditional, rng, backend)
	if err != nil {
		return err
	}
	var val []vae.Batch[*vae.CPUBackend]
	if nVal > 0 {
		val, err = syntheticBatches(nVal, opts.batchSize, opts.conditional, rng, backend)
		if err != nil {
			return err
		}
	}

	cfg := vae.DefaultTrainConfig()
	cfg.Epochs = opts.epochs
	cfg.LearningRate = opts.lr
	cfg.Beta = vae.Constant(opts.beta)
	if cmd.Flags().Changed("beta-end") {
		cfg.Beta = vae.LinearAnneal(opts.beta, opts.betaEnd)
	}
	cfg.Optimizer = kind
	cfg.Momentum = opts.momentum
	cfg.Reduction = reduction
	if opts.failEmpty {
		cfg.EmptyEpochs = vae.EmptyFail
	}
	cfg.Logger = logger

	history, err := model.Train(vae.Batches(train...), vae.Batches(val...), cfg)
	if history != nil {
		renderHistory(cmd.OutOrStdout(), history)
	}
	return err
}

func renderHistory(w io.Writer, h *vae.History) {
	var data [][]string
	for _, e := range h.Epochs {
		data = append(data, []string{
			strconv.Itoa(e.Epoch + 1),
			formatFloat(e.Beta),
			formatFloat(e.TrainLoss),
			formatFloat(e.ValLoss),
			formatFloat(e.MSE),
			formatFloat(e.KL),
			e.Duration.Round(time.Millisecond).String(),
		})
	}

	fmt.Fprintf(w, "run %s\n", h.RunID)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"EPOCH", "BETA", "TRAIN", "VAL", "MSE", "KL", "TIME"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 5, 64)
}
