package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/nn"
	"github.com/born-ml/vae/internal/optim"
	"github.com/born-ml/vae/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func scalarParam(t *testing.T, backend adBackend, name string, v float32) *nn.Parameter[adBackend] {
	t.Helper()
	x, err := tensor.FromSlice([]float32{v}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	return nn.NewParameter(name, x)
}

func gradFor(backend adBackend, p *nn.Parameter[adBackend], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	g := tensor.MustNewRaw(p.Tensor().Shape(), tensor.Float32, backend.Device())
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, "x", 2)

	opt := optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.1}, backend)
	opt.Step(gradFor(backend, param, 1))

	// x = 2 - 0.1*1
	assert.InDelta(t, 1.9, param.Tensor().Item(), 1e-6)
	require.NotNil(t, param.Grad(), "Step records the gradient on the parameter")
	assert.InDelta(t, 1, param.Grad().Item(), 0)
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, "x", 1)
	opt := optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// v1 = 1, x = 1 - 0.1 = 0.9
	opt.Step(gradFor(backend, param, 1))
	assert.InDelta(t, 0.9, param.Tensor().Item(), 1e-6)

	// v2 = 0.9*1 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	opt.Step(gradFor(backend, param, 1))
	assert.InDelta(t, 0.71, param.Tensor().Item(), 1e-6)
}

func TestSGD_SkipsMissingGradients(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := scalarParam(t, backend, "a", 1)
	b := scalarParam(t, backend, "b", 1)
	opt := optim.NewSGD([]*nn.Parameter[adBackend]{a, b}, optim.SGDConfig{LR: 0.5}, backend)

	opt.Step(gradFor(backend, a, 1))
	assert.InDelta(t, 0.5, a.Tensor().Item(), 1e-6)
	assert.InDelta(t, 1, b.Tensor().Item(), 0)
	assert.Nil(t, b.Grad())

	opt.ZeroGrad()
	assert.Nil(t, a.Grad())
}

func TestSGD_GetSetLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	opt := optim.NewSGD([]*nn.Parameter[adBackend]{}, optim.SGDConfig{}, backend)
	assert.InDelta(t, 0.01, opt.GetLR(), 1e-9)
	opt.SetLR(0.5)
	assert.InDelta(t, 0.5, opt.GetLR(), 0)
}

func TestAdam_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, "x", 1)
	opt := optim.NewAdam([]*nn.Parameter[adBackend]{param}, optim.AdamConfig{LR: 0.1}, backend)

	// After bias correction the first step moves by lr*g/(|g|+eps) ≈ lr.
	opt.Step(gradFor(backend, param, 0.5))
	assert.InDelta(t, 0.9, param.Tensor().Item(), 1e-5)
	assert.Equal(t, 1, opt.GetTimestep())
}

func TestAdam_BiasCorrection(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, backend, "x", 0)
	opt := optim.NewAdam([]*nn.Parameter[adBackend]{param}, optim.AdamConfig{LR: 0.01}, backend)

	// A constant gradient keeps m_hat/sqrt(v_hat) at 1, so every step is -lr.
	for i := 0; i < 5; i++ {
		opt.Step(gradFor(backend, param, 3))
	}
	assert.InDelta(t, -0.05, param.Tensor().Item(), 1e-5)
}

func TestAdam_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	opt := optim.NewAdam([]*nn.Parameter[adBackend]{}, optim.AdamConfig{}, backend)
	assert.InDelta(t, 0.001, opt.GetLR(), 1e-9)
}

func TestConvergence_SimpleQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	tests := []struct {
		name string
		kind optim.Kind
		cfg  optim.Config
	}{
		{"SGD", optim.KindSGD, optim.Config{LR: 0.1, Momentum: 0.9}},
		{"Adam", optim.KindAdam, optim.Config{LR: 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			param := scalarParam(t, backend, "x", 3)
			opt, err := optim.New(tt.kind, []*nn.Parameter[adBackend]{param}, tt.cfg, backend)
			require.NoError(t, err)

			// f(x) = x², df/dx = 2x
			for i := 0; i < 200; i++ {
				opt.Step(gradFor(backend, param, 2*param.Tensor().Item()))
			}
			assert.Less(t, math.Abs(float64(param.Tensor().Item())), 0.1)
		})
	}
}

func TestConvergence_AutodiffLinear(t *testing.T) {
	backend := autodiff.New(cpu.New())

	// Fit w in y = 2x with gradients from the tape.
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1}, backend)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float32{2, 4, 6, 8}, tensor.Shape{4, 1}, backend)
	require.NoError(t, err)

	layer := nn.NewLinear(1, 1, false, nil, backend)
	copy(layer.Weight().Tensor().Data(), []float32{0})
	opt := optim.NewSGD(layer.Parameters(), optim.SGDConfig{LR: 0.01}, backend)
	mse := nn.NewMSELoss[adBackend](nn.ReductionMean)

	tape := backend.Tape()
	for i := 0; i < 200; i++ {
		opt.ZeroGrad()
		tape.StartRecording()
		loss := mse.Forward(layer.Forward(x), y)
		grads := autodiff.Backward(loss, backend)
		tape.StopRecording()
		opt.Step(grads)
		tape.Clear()
	}
	assert.InDelta(t, 2, layer.Weight().Tensor().Item(), 1e-3)
}

func TestKind(t *testing.T) {
	k, err := optim.ParseKind("SGD")
	require.NoError(t, err)
	assert.Equal(t, optim.KindSGD, k)
	assert.Equal(t, "adam", optim.KindAdam.String())

	_, err = optim.ParseKind("rmsprop")
	assert.Error(t, err)

	backend := autodiff.New(cpu.New())
	_, err = optim.New(optim.Kind(42), []*nn.Parameter[adBackend]{}, optim.Config{}, backend)
	assert.Error(t, err)
}
