package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/autodiff"
	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/tensor"
)

func TestAutodiffBackend_Name(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
	assert.NotNil(t, backend.Inner())
}

func TestTape_RecordsOnlyWhenRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	x := tensor.Ones[float32](tensor.Shape{2}, backend)
	_ = x.Add(x)
	assert.Equal(t, 0, tape.NumOps())

	tape.StartRecording()
	_ = x.Add(x)
	assert.Equal(t, 1, tape.NumOps())

	autodiff.NoGrad(backend, func() {
		_ = x.Mul(x)
	})
	assert.Equal(t, 1, tape.NumOps())
	assert.True(t, tape.IsRecording(), "NoGrad must restore recording")

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording())
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	y := x.Mul(x).Sum()

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float32{4, 6}, grads[x.Raw()].AsFloat32())
	assert.False(t, backend.Tape().NumOps() == 0)
}

func TestBackward_AccumulatesReuse(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{1.5}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	// y = x*3 + x
	y := x.MulScalar(3).Add(x).Sum()

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float64{4}, grads[x.Raw()].AsFloat64())
}

func TestBackward_DetachStopsGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float64{2}, tensor.Shape{1}, backend)
	require.NoError(t, err)
	d := x.MulScalar(5).Detach()
	y := x.Mul(d).Sum()

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float64{10}, grads[x.Raw()].AsFloat64())
}

func TestBackward_WithoutRecordingPanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Ones[float32](tensor.Shape{1}, backend)
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}
