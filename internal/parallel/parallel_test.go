package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForBatch(t *testing.T) {
	cfg := DefaultConfig().Coarse()

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.True(t, results[b][c], "missing result at [%d][%d]", b, c)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(100), counter)
}

func TestRangeCoversEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}

	n := 10
	seen := make([]int, n)
	var mu sync.Mutex
	Range(n, func(start, end int) {
		require.Less(t, start, end)
		mu.Lock()
		defer mu.Unlock()
		for i := start; i < end; i++ {
			seen[i]++
		}
	}, cfg)

	for i, c := range seen {
		assert.Equal(t, 1, c, "index %d", i)
	}
}

func TestRangeEmpty(t *testing.T) {
	called := false
	Range(0, func(_, _ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestWithWorkers(t *testing.T) {
	cfg := WithWorkers(1)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.NumWorkers)

	cfg = WithWorkers(4)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 4, cfg.Coarse().NumWorkers)
	assert.Equal(t, 1, cfg.Coarse().MinChunkSize)
	assert.Equal(t, 64, cfg.MinChunkSize)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}
