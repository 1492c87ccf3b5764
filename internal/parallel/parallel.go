// Package parallel runs data-parallel kernel loops on a bounded set of goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Maximum number of concurrent goroutines.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults for fine-grained element loops.
func DefaultConfig() Config {
	return WithWorkers(runtime.NumCPU())
}

// WithWorkers returns the default config capped at n workers.
// n <= 0 means runtime.NumCPU().
func WithWorkers(n int) Config {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// Coarse returns a copy of cfg suited to loops whose iterations are heavy,
// such as one GEMM per batch sample.
func (cfg Config) Coarse() Config {
	cfg.MinChunkSize = 1
	return cfg
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	Range(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// Range splits [0, n) into contiguous chunks and calls f(start, end) for each.
// It returns once every chunk is done.
func Range(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		f(0, n)
		return
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			f(start, end)
			return nil
		})
	}
	_ = g.Wait() // workers never fail
}

// ForBatch optimized for batch*channels iteration pattern.
// Common in CNN operations like Conv2D.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
