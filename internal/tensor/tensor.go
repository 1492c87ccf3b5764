package tensor

import "fmt"

// Tensor is a generic tensor with type T and backend B.
// It provides type-safe operations over multi-dimensional arrays.
//
// Type Parameters:
//   - T: Data type (must satisfy DType constraint)
//   - B: Computation backend (must implement Backend interface)
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
//	result := t.Add(t) // Type-safe addition
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
	grad    *Tensor[T, B]
}

// New creates a Tensor from a RawTensor and backend.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{
		raw:     raw,
		backend: b,
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		return nil, err
	}

	t := New[T, B](raw, b)
	copy(t.Data(), data)

	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[T, B]) DType() DataType {
	return t.raw.DType()
}

// Device returns the tensor's compute device.
func (t *Tensor[T, B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[T, B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
// Used by backend implementations for low-level operations.
func (t *Tensor[T, B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[T, B]) Backend() B {
	return t.backend
}

// Grad returns the gradient tensor (if computed by autodiff).
func (t *Tensor[T, B]) Grad() *Tensor[T, B] {
	return t.grad
}

// SetGrad sets the gradient tensor.
func (t *Tensor[T, B]) SetGrad(grad *Tensor[T, B]) {
	t.grad = grad
}

// Detach returns a tensor over a copy of the data that is not connected to
// any recorded operation. Gradients never flow through it.
//
// Example:
//
//	eps := tensor.RandnFrom[float32](shape, src, backend).Detach()
func (t *Tensor[T, B]) Detach() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}

// To returns a copy of the tensor bound to another backend of the same type,
// placed on that backend's device.
func (t *Tensor[T, B]) To(b B) *Tensor[T, B] {
	return New[T, B](t.raw.OnDevice(b.Device()), b)
}

// Data returns a typed slice view of the tensor's data.
// The slice directly accesses the underlying memory (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[T, B]) Data() []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case float64:
		return any(t.raw.AsFloat64()).([]T)
	default:
		panic("unsupported type")
	}
}

// Float64s returns a copy of the tensor values as float64.
func (t *Tensor[T, B]) Float64s() []float64 {
	return t.raw.Float64s()
}

// Item returns the scalar value of a single-element tensor.
// Panics if the tensor holds more than one element.
func (t *Tensor[T, B]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
//
// Example:
//
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
//	value := t.At(1, 2) // Row 1, column 2
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}

	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// Clone creates a deep copy of the tensor. The gradient is not copied.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}
