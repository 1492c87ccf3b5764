package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

// hostBackend satisfies Backend for creation helpers, which only read Device.
type hostBackend struct {
	Backend
}

func (hostBackend) Device() Device { return CPU }

func TestDataTypeSize(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "float64", Float64.String())
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{8, 1, 158, 158}, 8 * 158 * 158},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.shape.NumElements(), "shape %v", tt.shape)
	}
}

func TestShapeValidate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	require.Error(t, Shape{1, 0}.Validate())
	require.Error(t, Shape{-1}.Validate())
}

func TestComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestNormalizeDim(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 2, s.NormalizeDim(-1))
	assert.Equal(t, 0, s.NormalizeDim(0))
	assert.Panics(t, func() { s.NormalizeDim(3) })
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"rank", Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"channel", Shape{1, 4, 1, 1}, Shape{2, 4, 6, 6}, Shape{2, 4, 6, 6}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestBroadcastStrides(t *testing.T) {
	assert.Equal(t, []int{0, 1, 0, 0}, BroadcastStrides(Shape{1, 4, 1, 1}, Shape{2, 4, 6, 6}))
	assert.Equal(t, []int{0, 1}, BroadcastStrides(Shape{5}, Shape{3, 5}))
}

func TestRawWithShape(t *testing.T) {
	raw := MustNewRaw(Shape{2, 3}, Float32, CPU)
	copy(raw.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})

	out := raw.WithShape(Shape{3, 2})
	assert.Equal(t, Shape{3, 2}, out.Shape())
	assert.Equal(t, []int{2, 1}, out.Strides())
	assert.Equal(t, raw.AsFloat32(), out.AsFloat32())

	out.AsFloat32()[0] = 42
	assert.Equal(t, float32(1), raw.AsFloat32()[0], "WithShape must copy")

	assert.Panics(t, func() { raw.WithShape(Shape{4}) })
}

func TestRawWrongDType(t *testing.T) {
	raw := MustNewRaw(Shape{2}, Float64, CPU)
	assert.Panics(t, func() { raw.AsFloat32() })
	assert.Equal(t, []float64{0, 0}, raw.Float64s())
}

func TestFromSlice(t *testing.T) {
	b := hostBackend{}
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))

	x.Set(9, 0, 1)
	assert.Equal(t, float32(9), x.Data()[1])

	_, err = FromSlice([]float32{1, 2}, Shape{3}, b)
	require.Error(t, err)
}

func TestFullAndOnes(t *testing.T) {
	b := hostBackend{}
	for _, v := range Ones[float64](Shape{3, 2}, b).Data() {
		assert.Equal(t, 1.0, v)
	}
	x := Full[float32](Shape{1}, 0.5, b)
	assert.Equal(t, float32(0.5), x.Item())
}

func TestRandnFromSeeded(t *testing.T) {
	b := hostBackend{}
	a := RandnFrom[float64](Shape{5000}, rand.NewSource(7), b)
	c := RandnFrom[float64](Shape{5000}, rand.NewSource(7), b)
	assert.Equal(t, a.Data(), c.Data(), "same seed must reproduce")

	mean, std := stat.MeanStdDev(a.Data(), nil)
	assert.InDelta(t, 0, mean, 0.1)
	assert.InDelta(t, 1, std, 0.1)
}

func TestUniformBounds(t *testing.T) {
	b := hostBackend{}
	x := Uniform[float32](Shape{1000}, -0.25, 0.25, rand.NewSource(1), b)
	for _, v := range x.Data() {
		assert.True(t, v >= -0.25 && v <= 0.25, "value %v out of bounds", v)
	}
}

func TestDetachCopies(t *testing.T) {
	b := hostBackend{}
	x := Ones[float32](Shape{2}, b)
	d := x.Detach()
	require.NotSame(t, x.Raw(), d.Raw())
	d.Data()[0] = 3
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestInferShape(t *testing.T) {
	assert.Equal(t, Shape{3, 4}, inferShape(Shape{3, -1}, 12))
	assert.Equal(t, Shape{2, 6}, inferShape(Shape{2, 6}, 12))
	assert.Panics(t, func() { inferShape(Shape{-1, -1}, 12) })
	assert.Panics(t, func() { inferShape(Shape{5, -1}, 12) })
}

func TestItemPanicsOnVector(t *testing.T) {
	b := hostBackend{}
	x := Zeros[float32](Shape{2}, b)
	assert.Panics(t, func() { x.Item() })
	assert.False(t, math.IsNaN(float64(x.At(1))))
}
