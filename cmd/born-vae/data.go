package main

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/tensor"
	"github.com/born-ml/vae/vae"
)

const pixels = vae.ImageSize * vae.ImageSize

// galaxy draws one elliptical Gaussian blob with mild pixel noise into dst
// and returns its condition: the blob radius scaled to [0, 1].
func galaxy(dst []float32, rng *rand.Rand) float32 {
	cond := rng.Float64()
	sigma := 4 + 20*cond
	ratio := 0.4 + 0.6*rng.Float64()
	theta := math.Pi * rng.Float64()
	cx := vae.ImageSize/2 + 10*(2*rng.Float64()-1)
	cy := vae.ImageSize/2 + 10*(2*rng.Float64()-1)

	sin, cos := math.Sincos(theta)
	for i := range vae.ImageSize {
		for j := range vae.ImageSize {
			dx, dy := float64(j)-cx, float64(i)-cy
			u := dx*cos + dy*sin
			v := (-dx*sin + dy*cos) / ratio
			p := math.Exp(-(u*u+v*v)/(2*sigma*sigma)) + 0.02*rng.NormFloat64()
			dst[i*vae.ImageSize+j] = float32(min(max(p, 0), 1))
		}
	}
	return float32(cond)
}

// syntheticBatches renders n blobs and splits them into batches of at most
// batchSize samples. Images have shape (b, 1, 158, 158) and conditions (b,).
// Conditions are attached only when conditional is set.
func syntheticBatches[B tensor.Backend](n, batchSize int, conditional bool, rng *rand.Rand, backend B) ([]vae.Batch[B], error) {
	var batches []vae.Batch[B]
	for start := 0; start < n; start += batchSize {
		size := min(batchSize, n-start)
		data := make([]float32, size*pixels)
		conds := make([]float32, size)
		for s := range size {
			conds[s] = galaxy(data[s*pixels:(s+1)*pixels], rng)
		}

		images, err := tensor.FromSlice(data, tensor.Shape{size, 1, vae.ImageSize, vae.ImageSize}, backend)
		if err != nil {
			return nil, err
		}
		batch := vae.Batch[B]{Images: images}
		if conditional {
			batch.Condition, err = tensor.FromSlice(conds, tensor.Shape{size}, backend)
			if err != nil {
				return nil, err
			}
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
