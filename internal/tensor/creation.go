package tensor

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using the global
// golang.org/x/exp/rand source.
//
// Example:
//
//	t := tensor.Randn[float32](Shape{100, 100}, backend)
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return RandnFrom[T, B](shape, nil, b)
}

// RandnFrom is like Randn but draws from src, so runs are reproducible for
// a fixed seed. A nil src uses the global source.
func RandnFrom[T DType, B Backend](shape Shape, src rand.Source, b B) *Tensor[T, B] {
	return sample[T, B](shape, distuv.Normal{Mu: 0, Sigma: 1, Src: src}, b)
}

// Uniform creates a tensor with values drawn from U(lo, hi).
func Uniform[T DType, B Backend](shape Shape, lo, hi float64, src rand.Source, b B) *Tensor[T, B] {
	return sample[T, B](shape, distuv.Uniform{Min: lo, Max: hi, Src: src}, b)
}

type randomVariable interface {
	Rand() float64
}

func sample[T DType, B Backend](shape Shape, dist randomVariable, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(dist.Rand())
	}
	return t
}
