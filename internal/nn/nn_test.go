package nn_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func TestParameter(t *testing.T) {
	backend := autodiff.New(cpu.New())

	data, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())
	assert.Equal(t, 3, param.NumElements())

	grad, err := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())

	param.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestKaimingUniform(t *testing.T) {
	backend := cpu.New()
	const fanIn = 16
	bound := float32(1 / math.Sqrt(fanIn))

	w := nn.KaimingUniform(fanIn, tensor.Shape{8, 16}, rand.NewSource(7), backend)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}

	again := nn.KaimingUniform(fanIn, tensor.Shape{8, 16}, rand.NewSource(7), backend)
	assert.Empty(t, cmp.Diff(w.Data(), again.Data()), "same seed must give the same weights")

	other := nn.KaimingUniform(fanIn, tensor.Shape{8, 16}, rand.NewSource(8), backend)
	assert.NotEmpty(t, cmp.Diff(w.Data(), other.Data()))

	assert.Panics(t, func() { nn.KaimingUniform(0, tensor.Shape{1}, nil, backend) })
}

func TestLinear_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(2, 2, true, rand.NewSource(1), backend)

	// W = [[1, 2], [3, 4]], b = [0.5, 1.0]
	copy(layer.Weight().Tensor().Data(), []float32{1, 2, 3, 4})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, 1.0})

	input, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	// x @ W.T = [3, 7]; + b = [3.5, 8.0]
	output := layer.Forward(input)
	assert.Equal(t, tensor.Shape{1, 2}, output.Shape())
	assert.InDeltaSlice(t, []float32{3.5, 8.0}, output.Data(), 1e-6)
	assert.Len(t, layer.Parameters(), 2)
}

func TestLinear_ForwardRank3(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(3, 4, true, rand.NewSource(1), backend)

	input := tensor.RandnFrom[float32](tensor.Shape{2, 1, 3}, rand.NewSource(2), backend)
	output := layer.Forward(input)
	assert.Equal(t, tensor.Shape{2, 1, 4}, output.Shape())

	// Rows must match the 2D computation.
	flat := layer.Forward(input.Reshape(2, 3))
	assert.InDeltaSlice(t, flat.Data(), output.Data(), 1e-6)
}

func TestLinear_NoBias(t *testing.T) {
	layer := nn.NewLinear(5, 3, false, nil, cpu.New())
	assert.Nil(t, layer.Bias())
	assert.Len(t, layer.Parameters(), 1)
	assert.Equal(t, 5, layer.InFeatures())
	assert.Equal(t, 3, layer.OutFeatures())
}

func TestLinear_Gradients(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(3, 2, true, rand.NewSource(3), backend)

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	backend.Tape().StartRecording()
	loss := layer.Forward(x).Sum()
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()

	// dL/db = batch size; dL/dW[o, i] = Σ_n x[n, i].
	gb := grads[layer.Bias().Tensor().Raw()]
	require.NotNil(t, gb)
	assert.InDeltaSlice(t, []float32{2, 2}, gb.AsFloat32(), 1e-6)

	gw := grads[layer.Weight().Tensor().Raw()]
	require.NotNil(t, gw)
	assert.Equal(t, tensor.Shape{2, 3}, gw.Shape())
	assert.InDeltaSlice(t, []float32{5, 7, 9, 5, 7, 9}, gw.AsFloat32(), 1e-5)
}

func TestConv2D_Shapes(t *testing.T) {
	backend := cpu.New()
	src := rand.NewSource(4)

	tests := []struct {
		name            string
		kernel, in, out int
	}{
		{"k4 158->79", 4, 158, 79},
		{"k3 79->40", 3, 79, 40},
		{"k4 40->20", 4, 40, 20},
		{"k4 10->5", 4, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := nn.NewConv2D(1, 2, tt.kernel, 2, 1, false, src, backend)
			assert.Equal(t, tt.out, conv.ComputeOutputSize(tt.in))

			x := tensor.Zeros[float32](tensor.Shape{1, 1, tt.in, tt.in}, backend)
			y := conv.Forward(x)
			assert.Equal(t, tensor.Shape{1, 2, tt.out, tt.out}, y.Shape())
		})
	}
}

func TestConv2D_Bias(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D(1, 2, 3, 1, 1, true, rand.NewSource(5), backend)
	require.NotNil(t, conv.Bias())
	assert.Equal(t, tensor.Shape{2, 1, 3, 3}, conv.Weight().Tensor().Shape())

	for i := range conv.Weight().Tensor().Data() {
		conv.Weight().Tensor().Data()[i] = 0
	}
	copy(conv.Bias().Tensor().Data(), []float32{1.5, -2})

	y := conv.Forward(tensor.Ones[float32](tensor.Shape{1, 1, 4, 4}, backend))
	assert.InDelta(t, 1.5, y.At(0, 0, 2, 3), 1e-6)
	assert.InDelta(t, -2, y.At(0, 1, 0, 0), 1e-6)
}

func TestConvTranspose2D_Shapes(t *testing.T) {
	backend := cpu.New()
	src := rand.NewSource(6)

	tests := []struct {
		name            string
		kernel, in, out int
	}{
		{"k4 5->10", 4, 5, 10},
		{"k4 20->40", 4, 20, 40},
		{"k3 40->79", 3, 40, 79},
		{"k4 79->158", 4, 79, 158},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deconv := nn.NewConvTranspose2D(2, 1, tt.kernel, 2, 1, 0, false, src, backend)
			assert.Equal(t, tt.out, deconv.ComputeOutputSize(tt.in))
			assert.Equal(t, tensor.Shape{2, 1, tt.kernel, tt.kernel}, deconv.Weight().Tensor().Shape())

			x := tensor.Zeros[float32](tensor.Shape{1, 2, tt.in, tt.in}, backend)
			y := deconv.Forward(x)
			assert.Equal(t, tensor.Shape{1, 1, tt.out, tt.out}, y.Shape())
		})
	}

	assert.Panics(t, func() { nn.NewConvTranspose2D(1, 1, 3, 2, 1, 2, false, src, backend) })
}

// bnInput returns a [2, 2, 2, 2] tensor holding 0..15.
func bnInput(backend adBackend) *tensor.Tensor[float32, adBackend] {
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i)
	}
	x, err := tensor.FromSlice(data, tensor.Shape{2, 2, 2, 2}, backend)
	if err != nil {
		panic(err)
	}
	return x
}

func TestBatchNorm2D_Training(t *testing.T) {
	backend := autodiff.New(cpu.New())
	bn := nn.NewBatchNorm2D(2, backend)
	require.True(t, bn.Training())

	y := bn.Forward(bnInput(backend))
	require.Equal(t, tensor.Shape{2, 2, 2, 2}, y.Shape())

	// Each channel is normalized to zero mean and unit (biased) variance.
	for c := 0; c < 2; c++ {
		var sum, sq float64
		for n := 0; n < 2; n++ {
			for h := 0; h < 2; h++ {
				for w := 0; w < 2; w++ {
					v := float64(y.At(n, c, h, w))
					sum += v
					sq += v * v
				}
			}
		}
		assert.InDelta(t, 0, sum/8, 1e-5)
		assert.InDelta(t, 1, sq/8, 1e-3)
	}

	// Channel 0 holds {0..3, 8..11}: mean 5.5, unbiased variance 138/7.
	// Channel 1 holds {4..7, 12..15}: mean 9.5, same variance.
	assert.InDeltaSlice(t, []float32{0.55, 0.95}, bn.RunningMean().Data(), 1e-5)
	wantVar := float32(0.9 + 0.1*138.0/7.0)
	assert.InDeltaSlice(t, []float32{wantVar, wantVar}, bn.RunningVar().Data(), 1e-4)
}

func TestBatchNorm2D_Eval(t *testing.T) {
	backend := autodiff.New(cpu.New())
	bn := nn.NewBatchNorm2D(2, backend)
	copy(bn.RunningMean().Data(), []float32{1, 2})
	copy(bn.RunningVar().Data(), []float32{4, 9})
	copy(bn.Parameters()[0].Tensor().Data(), []float32{2, 1})   // gamma
	copy(bn.Parameters()[1].Tensor().Data(), []float32{0, 0.5}) // beta

	bn.SetTraining(false)
	y := bn.Forward(bnInput(backend))

	// Element (1, 1, 1, 1) = 15: (15-2)/sqrt(9+eps)*1 + 0.5.
	assert.InDelta(t, 13.0/3.0+0.5, y.At(1, 1, 1, 1), 1e-4)
	// Element (0, 0, 0, 1) = 1: (1-1)/2*2 + 0.
	assert.InDelta(t, 0, y.At(0, 0, 0, 1), 1e-6)

	// Running statistics are untouched in eval mode.
	assert.InDeltaSlice(t, []float32{1, 2}, bn.RunningMean().Data(), 0)
}

func TestBatchNorm2D_GammaBetaGradients(t *testing.T) {
	backend := autodiff.New(cpu.New())
	bn := nn.NewBatchNorm2D(2, backend)

	backend.Tape().StartRecording()
	loss := bn.Forward(bnInput(backend)).Sum()
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()

	// dL/dbeta counts the elements per channel; dL/dgamma = Σ x̂ = 0.
	gBeta := grads[bn.Parameters()[1].Tensor().Raw()]
	require.NotNil(t, gBeta)
	assert.InDeltaSlice(t, []float32{8, 8}, gBeta.AsFloat32(), 1e-5)

	gGamma := grads[bn.Parameters()[0].Tensor().Raw()]
	require.NotNil(t, gGamma)
	assert.InDeltaSlice(t, []float32{0, 0}, gGamma.AsFloat32(), 1e-4)
}

func TestActivations(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-2, -0.5, 0, 1.5}, tensor.Shape{4}, backend)
	require.NoError(t, err)

	relu := nn.NewReLU[*cpu.CPUBackend]()
	assert.InDeltaSlice(t, []float32{0, 0, 0, 1.5}, relu.Forward(x).Data(), 1e-7)
	assert.Nil(t, relu.Parameters())

	leaky := nn.NewLeakyReLU[*cpu.CPUBackend](0.2)
	assert.InDeltaSlice(t, []float32{-0.4, -0.1, 0, 1.5}, leaky.Forward(x).Data(), 1e-6)
	assert.InDelta(t, 0.2, leaky.NegativeSlope(), 0)

	sig := nn.NewSigmoid[*cpu.CPUBackend]()
	out := sig.Forward(x).Data()
	for i, v := range x.Data() {
		assert.InDelta(t, 1/(1+math.Exp(-float64(v))), out[i], 1e-6)
	}
}

func TestMSELoss(t *testing.T) {
	backend := cpu.New()
	pred, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	target := tensor.Ones[float32](tensor.Shape{3}, backend)

	sum := nn.NewMSELoss[*cpu.CPUBackend](nn.ReductionSum).Forward(pred, target)
	assert.InDelta(t, 5, sum.Item(), 1e-6)

	mean := nn.NewMSELoss[*cpu.CPUBackend](nn.ReductionMean).Forward(pred, target)
	assert.InDelta(t, 5.0/3.0, mean.Item(), 1e-6)

	assert.Panics(t, func() {
		nn.NewMSELoss[*cpu.CPUBackend](nn.ReductionSum).Forward(pred, tensor.Ones[float32](tensor.Shape{2}, backend))
	})
}

func TestParseReduction(t *testing.T) {
	r, err := nn.ParseReduction("mean")
	require.NoError(t, err)
	assert.Equal(t, nn.ReductionMean, r)
	assert.Equal(t, "sum", nn.ReductionSum.String())

	_, err = nn.ParseReduction("max")
	assert.Error(t, err)
}

func TestSequential(t *testing.T) {
	backend := autodiff.New(cpu.New())
	src := rand.NewSource(9)

	bn := nn.NewBatchNorm2D(4, backend)
	seq := nn.NewSequential[adBackend](
		nn.NewConv2D(1, 4, 3, 1, 1, false, src, backend),
		bn,
		nn.NewLeakyReLU[adBackend](0.2),
	)
	seq.Add(nn.NewConv2D(4, 1, 3, 1, 1, true, src, backend))

	assert.Equal(t, 4, seq.Len())
	// conv1.weight, bn.gamma, bn.beta, conv2.weight, conv2.bias
	params := seq.Parameters()
	assert.Len(t, params, 5)
	assert.Equal(t, 4*9+4+4+4*9+1, nn.CountParameters(params))

	y := seq.Forward(tensor.RandnFrom[float32](tensor.Shape{2, 1, 6, 6}, src, backend))
	assert.Equal(t, tensor.Shape{2, 1, 6, 6}, y.Shape())

	nn.SetTraining(false, nn.Module[adBackend](seq))
	assert.False(t, bn.Training())
	assert.False(t, seq.Training())
	seq.SetTraining(true)
	assert.True(t, bn.Training())

	assert.Panics(t, func() { seq.Module(10) })
}
