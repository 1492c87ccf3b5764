package autodiff_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type tensor64 = *tensor.Tensor[float64, adBackend]

// pattern returns a deterministic tensor with values in roughly [-scale, scale].
func pattern(backend adBackend, shape tensor.Shape, seed, scale float64) tensor64 {
	x := tensor.Zeros[float64](shape, backend)
	data := x.Data()
	for i := range data {
		data[i] = math.Sin(float64(i)*0.73+seed) * scale
	}
	return x
}

// checkGradients compares autodiff gradients of the scalar f(inputs) against
// central finite differences for every element of every input.
func checkGradients(t *testing.T, inputs []tensor64, f func(in []tensor64) tensor64) {
	t.Helper()

	backend := autodiff.New(cpu.New())
	// Rebind the inputs to the fresh backend so the tape is isolated.
	bound := make([]tensor64, len(inputs))
	for i, in := range inputs {
		bound[i] = in.To(backend)
	}

	tape := backend.Tape()
	tape.StartRecording()
	loss := f(bound)
	grads := autodiff.Backward(loss, backend)
	tape.StopRecording()

	const eps = 1e-6
	for i, in := range bound {
		grad, ok := grads[in.Raw()]
		require.True(t, ok, "no gradient for input %d", i)
		require.Equal(t, in.Shape(), grad.Shape(), "gradient shape for input %d", i)
		analytic := grad.AsFloat64()

		data := in.Data()
		for j := range data {
			orig := data[j]
			data[j] = orig + eps
			plus := f(bound).Item()
			data[j] = orig - eps
			minus := f(bound).Item()
			data[j] = orig

			numeric := (plus - minus) / (2 * eps)
			tol := 1e-5 * math.Max(1, math.Abs(numeric))
			require.InDelta(t, numeric, analytic[j], tol, "input %d element %d", i, j)
		}
	}
}

func TestGradient_Arithmetic(t *testing.T) {
	b := autodiff.New(cpu.New())
	a := pattern(b, tensor.Shape{2, 3}, 0.1, 1)
	c := pattern(b, tensor.Shape{1, 3}, 0.7, 1).AddScalar(2) // keep away from zero for Div

	checkGradients(t, []tensor64{a, c}, func(in []tensor64) tensor64 {
		x, y := in[0], in[1]
		return x.Mul(y).Add(x.Div(y)).Sub(y.MulScalar(0.5)).Sum()
	})
}

func TestGradient_MatMulBias(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pattern(b, tensor.Shape{3, 4}, 0.2, 1)
	w := pattern(b, tensor.Shape{2, 4}, 1.1, 0.5)
	bias := pattern(b, tensor.Shape{2}, 2.3, 0.5)

	checkGradients(t, []tensor64{x, w, bias}, func(in []tensor64) tensor64 {
		y := in[0].MatMul(in[1].T()).Add(in[2].Reshape(1, 2))
		return y.Mul(y).Sum()
	})
}

func TestGradient_Math(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pattern(b, tensor.Shape{5}, 0.3, 1).AddScalar(2)

	checkGradients(t, []tensor64{x}, func(in []tensor64) tensor64 {
		v := in[0]
		return v.Exp().Add(v.Log()).Add(v.Sqrt()).Add(v.Rsqrt()).Sum()
	})
}

func TestGradient_Activations(t *testing.T) {
	b := autodiff.New(cpu.New())
	// Values avoid the kink at zero.
	x, err := tensor.FromSlice([]float64{-1.3, -0.4, 0.35, 0.9, 2.1, -2.2}, tensor.Shape{2, 3}, b)
	require.NoError(t, err)

	checkGradients(t, []tensor64{x}, func(in []tensor64) tensor64 {
		v := in[0]
		y := v.ReLU().Add(v.LeakyReLU(0.2)).Add(v.Sigmoid())
		return y.Mul(y).Sum()
	})
}

func TestGradient_Reductions(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pattern(b, tensor.Shape{2, 3, 4}, 0.5, 1)

	checkGradients(t, []tensor64{x}, func(in []tensor64) tensor64 {
		v := in[0]
		s := v.SumDim(1, false)
		m := v.MeanDim(-1, true)
		return s.Mul(s).Sum().Add(m.Mul(m).Sum())
	})
}

func TestGradient_ShapeOps(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pattern(b, tensor.Shape{2, 1, 3}, 0.9, 1)
	y := pattern(b, tensor.Shape{2, 2, 3}, 1.7, 1)
	c := pattern(b, tensor.Shape{2, 1, 1}, 2.9, 1)

	checkGradients(t, []tensor64{x, y, c}, func(in []tensor64) tensor64 {
		// [2, 4, 3] -> [3, 2, 4] -> [3, 8]
		cat := tensor.Cat([]tensor64{in[0], in[1], in[2].Expand(tensor.Shape{2, 1, 3})}, 1)
		tr := cat.Transpose(2, 0, 1).Flatten(1)
		w := pattern(b, tensor.Shape{3, 8}, 0.4, 1).To(in[0].Backend())
		return tr.Mul(w).Mul(tr).Sum()
	})
}

func TestGradient_Conv2D(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pattern(b, tensor.Shape{2, 2, 7, 7}, 0.1, 1)
	w := pattern(b, tensor.Shape{3, 2, 3, 3}, 0.6, 0.5)

	checkGradients(t, []tensor64{x, w}, func(in []tensor64) tensor64 {
		y := in[0].Conv2D(in[1], 2, 1)
		return y.Mul(y).Sum()
	})
}

func TestGradient_ConvTranspose2D(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pattern(b, tensor.Shape{2, 3, 3, 3}, 0.2, 1)
	w := pattern(b, tensor.Shape{3, 2, 4, 4}, 0.8, 0.5)

	checkGradients(t, []tensor64{x, w}, func(in []tensor64) tensor64 {
		y := in[0].ConvTranspose2D(in[1], 2, 1, 0) // [2, 2, 6, 6]
		return y.Mul(y).Sum()
	})

	k3 := pattern(b, tensor.Shape{3, 2, 3, 3}, 1.3, 0.5)
	checkGradients(t, []tensor64{x, k3}, func(in []tensor64) tensor64 {
		y := in[0].ConvTranspose2D(in[1], 2, 1, 0) // [2, 2, 5, 5]
		return y.Mul(y).Sum()
	})
}

// Batch normalization composed from primitive ops, as nn.BatchNorm2D does it.
func TestGradient_BatchNormComposite(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pattern(b, tensor.Shape{3, 2, 2, 2}, 0.4, 1)
	gamma := pattern(b, tensor.Shape{2}, 1.9, 0.5).AddScalar(1)
	beta := pattern(b, tensor.Shape{2}, 2.7, 0.5)

	checkGradients(t, []tensor64{x, gamma, beta}, func(in []tensor64) tensor64 {
		v := in[0]
		mean := v.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
		centered := v.Sub(mean)
		variance := centered.Mul(centered).MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
		norm := centered.Mul(variance.AddScalar(1e-5).Rsqrt())
		y := norm.Mul(in[1].Reshape(1, 2, 1, 1)).Add(in[2].Reshape(1, 2, 1, 1))
		w := pattern(b, y.Shape(), 0.3, 1).To(v.Backend())
		return y.Mul(w).Sum()
	})
}
