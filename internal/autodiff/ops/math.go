package ops

import "github.com/born-ml/vae/internal/tensor"

// ExpOp represents the exponential: y = e^x.
//
// Backward pass: grad_x = outputGrad * y.
type ExpOp struct{ unaryOp }

// NewExpOp creates a new ExpOp.
func NewExpOp(input, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{unaryOp{input: input, output: output}}
}

// Backward computes the input gradient for exp.
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp represents the natural logarithm: y = ln(x).
//
// Backward pass: grad_x = outputGrad / x.
type LogOp struct{ unaryOp }

// NewLogOp creates a new LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{unaryOp{input: input, output: output}}
}

// Backward computes the input gradient for log.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

// SqrtOp represents the square root: y = sqrt(x).
//
// Backward pass: grad_x = outputGrad * 0.5 / y.
type SqrtOp struct{ unaryOp }

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{unaryOp{input: input, output: output}}
}

// Backward computes the input gradient for sqrt.
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(backend.Div(outputGrad, op.output), 0.5)}
}

// RsqrtOp represents the reciprocal square root operation: y = 1/sqrt(x).
//
// Backward pass:
//   - d(1/sqrt(x))/dx = -0.5 * x^(-3/2) = -0.5 * y^3
//   - grad_input = grad_output * (-0.5) * output^3
type RsqrtOp struct{ unaryOp }

// NewRsqrtOp creates a new RsqrtOp.
func NewRsqrtOp(input, output *tensor.RawTensor) *RsqrtOp {
	return &RsqrtOp{unaryOp{input: input, output: output}}
}

// Backward computes the input gradient for rsqrt.
func (op *RsqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	cubed := backend.Mul(backend.Mul(op.output, op.output), op.output)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.MulScalar(cubed, -0.5))}
}
