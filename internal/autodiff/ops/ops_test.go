package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vae/internal/backend/cpu"
	"github.com/born-ml/vae/internal/tensor"
)

func raw(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), values)
	return r
}

func TestReduceBroadcast(t *testing.T) {
	backend := cpu.New()
	grad := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	t.Run("SameShape", func(t *testing.T) {
		assert.Same(t, grad, reduceBroadcast(grad, tensor.Shape{2, 3}, backend))
	})

	t.Run("Column", func(t *testing.T) {
		out := reduceBroadcast(grad, tensor.Shape{2, 1}, backend)
		assert.Equal(t, tensor.Shape{2, 1}, out.Shape())
		assert.Equal(t, []float32{6, 15}, out.AsFloat32())
	})

	t.Run("LeadingDims", func(t *testing.T) {
		out := reduceBroadcast(grad, tensor.Shape{3}, backend)
		assert.Equal(t, []float32{5, 7, 9}, out.AsFloat32())
	})

	t.Run("Scalar", func(t *testing.T) {
		out := reduceBroadcast(grad, tensor.Shape{}, backend)
		assert.Equal(t, []float32{21}, out.AsFloat32())
	})

	t.Run("Channel", func(t *testing.T) {
		g := raw(t, tensor.Shape{2, 2, 1, 2}, 1, 1, 2, 2, 3, 3, 4, 4)
		out := reduceBroadcast(g, tensor.Shape{1, 2, 1, 1}, backend)
		assert.Equal(t, tensor.Shape{1, 2, 1, 1}, out.Shape())
		assert.Equal(t, []float32{8, 12}, out.AsFloat32())
	})
}

func TestNarrow(t *testing.T) {
	x := raw(t, tensor.Shape{2, 3, 1}, 1, 2, 3, 4, 5, 6)

	mid := narrow(x, 1, 1, 2, tensor.CPU)
	assert.Equal(t, tensor.Shape{2, 2, 1}, mid.Shape())
	assert.Equal(t, []float32{2, 3, 5, 6}, mid.AsFloat32())

	assert.Panics(t, func() { narrow(x, 1, 2, 2, tensor.CPU) })
}

func TestCatOpBackwardSplits(t *testing.T) {
	backend := cpu.New()
	a := raw(t, tensor.Shape{2, 1, 2})
	b := raw(t, tensor.Shape{2, 2, 2})
	out := backend.Cat([]*tensor.RawTensor{a, b}, 1)

	op := NewCatOp([]*tensor.RawTensor{a, b}, out, -2)
	grad := raw(t, out.Shape(), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	grads := op.Backward(grad, backend)
	require.Len(t, grads, 2)
	assert.Equal(t, []float32{1, 2, 7, 8}, grads[0].AsFloat32())
	assert.Equal(t, []float32{3, 4, 5, 6, 9, 10, 11, 12}, grads[1].AsFloat32())
}

func TestTransposeOpInverse(t *testing.T) {
	backend := cpu.New()
	x := raw(t, tensor.Shape{2, 3, 4})
	y := backend.Transpose(x, 1, 2, 0)
	require.Equal(t, tensor.Shape{3, 4, 2}, y.Shape())

	op := NewTransposeOp(x, y, []int{1, 2, 0})
	g := op.Backward(raw(t, y.Shape()), backend)[0]
	assert.Equal(t, x.Shape(), g.Shape())
}

func TestLeakyReLUMask(t *testing.T) {
	backend := cpu.New()
	x := raw(t, tensor.Shape{3}, -1, 0, 2)
	op := NewLeakyReLUOp(x, backend.LeakyReLU(x, 0.2), 0.2)
	g := op.Backward(raw(t, tensor.Shape{3}, 1, 1, 1), backend)[0]
	assert.Equal(t, []float32{0.2, 0.2, 1}, g.AsFloat32())
}
