package tensor

import "fmt"

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{3, 1}, backend)
//	b := tensor.Ones[float32](Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5] (broadcasted)
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Div(t.raw, other.raw), t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// MulScalar multiplies every element by s.
func (t *Tensor[T, B]) MulScalar(s float64) *Tensor[T, B] {
	return New[T, B](t.backend.MulScalar(t.raw, s), t.backend)
}

// AddScalar adds s to every element.
func (t *Tensor[T, B]) AddScalar(s float64) *Tensor[T, B] {
	return New[T, B](t.backend.AddScalar(t.raw, s), t.backend)
}

// Exp computes e^x element-wise.
func (t *Tensor[T, B]) Exp() *Tensor[T, B] {
	return New[T, B](t.backend.Exp(t.raw), t.backend)
}

// Log computes the natural logarithm element-wise.
func (t *Tensor[T, B]) Log() *Tensor[T, B] {
	return New[T, B](t.backend.Log(t.raw), t.backend)
}

// Sqrt computes the square root element-wise.
func (t *Tensor[T, B]) Sqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Sqrt(t.raw), t.backend)
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (t *Tensor[T, B]) Rsqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Rsqrt(t.raw), t.backend)
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

// LeakyReLU applies x for x > 0 and slope*x otherwise.
func (t *Tensor[T, B]) LeakyReLU(slope float64) *Tensor[T, B] {
	return New[T, B](t.backend.LeakyReLU(t.raw, slope), t.backend)
}

// Sigmoid applies 1/(1+e^-x) element-wise.
func (t *Tensor[T, B]) Sigmoid() *Tensor[T, B] {
	return New[T, B](t.backend.Sigmoid(t.raw), t.backend)
}

// Sum reduces all elements to a scalar tensor.
func (t *Tensor[T, B]) Sum() *Tensor[T, B] {
	return New[T, B](t.backend.Sum(t.raw), t.backend)
}

// SumDim sums along dim. Negative dims count from the end.
func (t *Tensor[T, B]) SumDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MeanDim averages along dim. Negative dims count from the end.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}

// Mean averages all elements into a scalar tensor.
func (t *Tensor[T, B]) Mean() *Tensor[T, B] {
	return t.Sum().MulScalar(1 / float64(t.NumElements()))
}

// Reshape returns a tensor with the same data but different shape.
// The new shape must have the same number of elements. A single -1
// dimension is inferred from the others.
//
// Example:
//
//	t := tensor.Zeros[float32](Shape{12}, backend)
//	reshaped := t.Reshape(3, -1) // Shape: [3, 4]
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	shape := inferShape(Shape(newShape), t.NumElements())
	return New[T, B](t.backend.Reshape(t.raw, shape), t.backend)
}

// Flatten merges dimensions startDim..end into one.
//
// Example:
//
//	t := tensor.Zeros[float32](Shape{8, 1, 5, 5}, backend)
//	flat := t.Flatten(2) // Shape: [8, 1, 25]
func (t *Tensor[T, B]) Flatten(startDim int) *Tensor[T, B] {
	shape := t.Shape()
	startDim = shape.NormalizeDim(startDim)
	out := make([]int, 0, startDim+1)
	out = append(out, shape[:startDim]...)
	out = append(out, Shape(shape[startDim:]).NumElements())
	return t.Reshape(out...)
}

// Unsqueeze inserts a dimension of size 1 at dim.
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	if dim < 0 {
		dim += len(shape) + 1
	}
	if dim < 0 || dim > len(shape) {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for shape %v", dim, shape))
	}
	out := make([]int, 0, len(shape)+1)
	out = append(out, shape[:dim]...)
	out = append(out, 1)
	out = append(out, shape[dim:]...)
	return t.Reshape(out...)
}

// Squeeze removes dimension dim, which must have size 1.
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	dim = shape.NormalizeDim(dim)
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, expected 1", dim, shape[dim]))
	}
	out := make([]int, 0, len(shape)-1)
	out = append(out, shape[:dim]...)
	out = append(out, shape[dim+1:]...)
	return t.Reshape(out...)
}

// Transpose transposes the tensor by permuting its dimensions.
//
// If axes is empty, reverses all dimensions (for 2D, this is standard transpose).
// Otherwise, axes specifies the permutation.
//
// Example:
//
//	t := tensor.Randn[float32](Shape{2, 3, 4}, backend)
//	transposed := t.Transpose(2, 0, 1) // Shape: [4, 2, 3]
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// T is a shortcut for 2D transpose (swaps rows and columns).
// Panics if the tensor is not 2D.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// Expand broadcasts the tensor to shape.
func (t *Tensor[T, B]) Expand(shape Shape) *Tensor[T, B] {
	return New[T, B](t.backend.Expand(t.raw, shape), t.backend)
}

// Conv2D convolves the tensor [N, C_in, H, W] with kernel [C_out, C_in, K, K].
func (t *Tensor[T, B]) Conv2D(kernel *Tensor[T, B], stride, padding int) *Tensor[T, B] {
	return New[T, B](t.backend.Conv2D(t.raw, kernel.raw, stride, padding), t.backend)
}

// ConvTranspose2D applies a transposed convolution with kernel [C_in, C_out, K, K].
func (t *Tensor[T, B]) ConvTranspose2D(kernel *Tensor[T, B], stride, padding, outputPadding int) *Tensor[T, B] {
	return New[T, B](t.backend.ConvTranspose2D(t.raw, kernel.raw, stride, padding, outputPadding), t.backend)
}

// Cat concatenates tensors along dim. All tensors must share a backend.
//
// Example:
//
//	a := tensor.Zeros[float32](Shape{4, 1, 3}, backend)
//	b := tensor.Ones[float32](Shape{4, 1, 3}, backend)
//	c := tensor.Cat([]*tensor.Tensor[float32, B]{a, b}, 1) // Shape: [4, 2, 3]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	b := tensors[0].backend
	return New[T, B](b.Cat(raws, dim), b)
}

func inferShape(shape Shape, numElements int) Shape {
	out := shape.Clone()
	infer := -1
	known := 1
	for i, d := range out {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("reshape: more than one inferred dimension in %v", shape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || numElements%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension for %v from %d elements", shape, numElements))
		}
		out[infer] = numElements / known
	}
	return out
}
