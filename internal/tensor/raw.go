package tensor

import (
	"fmt"
	"unsafe"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation: a contiguous row-major
// byte buffer plus shape, dtype and device metadata.
//
// RawTensor pointers are identities in the autodiff graph. Backends never
// return one of their inputs as a result.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// MustNewRaw is like NewRaw but panics on an invalid shape.
// Kernels use it for outputs whose shapes were already validated.
func MustNewRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Clone creates a deep copy of the RawTensor.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// WithShape returns a copy of the tensor data laid out with a new shape.
// The element count must match.
func (r *RawTensor) WithShape(shape Shape) *RawTensor {
	if shape.NumElements() != r.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)", r.shape, shape))
	}
	out := r.Clone()
	out.shape = shape.Clone()
	out.stride = shape.ComputeStrides()
	return out
}

// OnDevice returns a copy of the tensor tagged with another device.
// Host memory is the only storage this module has, so placement is a copy.
func (r *RawTensor) OnDevice(device Device) *RawTensor {
	out := r.Clone()
	out.device = device
	return out
}

// Float64s returns the tensor values widened to float64.
func (r *RawTensor) Float64s() []float64 {
	switch r.dtype {
	case Float32:
		src := r.AsFloat32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case Float64:
		return append([]float64(nil), r.AsFloat64()...)
	default:
		panic(fmt.Sprintf("unsupported dtype %s", r.dtype))
	}
}
