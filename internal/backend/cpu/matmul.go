package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/vae/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N), computed with BLAS GEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	checkSameDType("matmul", a, b)

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := cpu.alloc("matmul", tensor.Shape{m, n}, a.DType())
	switch a.DType() {
	case tensor.Float32:
		gemm(blas.NoTrans, blas.NoTrans, m, n, k, 1, a.AsFloat32(), k, b.AsFloat32(), n, 0, result.AsFloat32(), n)
	case tensor.Float64:
		gemm(blas.NoTrans, blas.NoTrans, m, n, k, 1, a.AsFloat64(), k, b.AsFloat64(), n, 0, result.AsFloat64(), n)
	default:
		panic(unsupported("matmul", a.DType()))
	}
	return result
}

// gemm computes C = alpha*op(A)*op(B) + beta*C on row-major buffers,
// dispatching to the single or double precision BLAS implementation.
// op(A) is m×k, op(B) is k×n and C is m×n.
func gemm[T float](tA, tB blas.Transpose, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int) {
	switch a := any(a).(type) {
	case []float32:
		blas32.Implementation().Sgemm(tA, tB, m, n, k,
			float32(alpha), a, lda, any(b).([]float32), ldb,
			float32(beta), any(c).([]float32), ldc)
	case []float64:
		blas64.Implementation().Dgemm(tA, tB, m, n, k,
			float64(alpha), a, lda, any(b).([]float64), ldb,
			float64(beta), any(c).([]float64), ldc)
	}
}
