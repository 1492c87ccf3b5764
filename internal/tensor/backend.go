package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Kernels panic on shape violations. Callers that accept external input
// validate shapes before reaching a backend.
//
// Implementations:
//   - CPU: Pure Go with gonum BLAS for GEMM (internal/backend/cpu)
//   - Autodiff: decorator recording operations on a gradient tape (internal/autodiff)
type Backend interface {
	// Element-wise binary operations (NumPy broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	AddScalar(x *RawTensor, scalar float64) *RawTensor

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor   // exponential
	Log(x *RawTensor) *RawTensor   // natural logarithm
	Sqrt(x *RawTensor) *RawTensor  // square root
	Rsqrt(x *RawTensor) *RawTensor // reciprocal square root (1/sqrt(x))

	// Activation functions
	ReLU(x *RawTensor) *RawTensor
	LeakyReLU(x *RawTensor, slope float64) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor

	// Convolution: input [N, C_in, H, W], kernel [C_out, C_in, K, K].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// Transposed convolution: input [N, C_in, H, W], kernel [C_in, C_out, K, K].
	// Output spatial size is (in-1)*stride - 2*padding + K + outputPadding.
	ConvTranspose2D(input, kernel *RawTensor, stride, padding, outputPadding int) *RawTensor
	ConvTranspose2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	ConvTranspose2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor                            // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor  // broadcast to shape
	Cat(tensors []*RawTensor, dim int) *RawTensor // concatenate along dimension

	// Metadata
	Name() string
	Device() Device
}
