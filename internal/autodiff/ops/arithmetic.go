package ops

import "github.com/born-ml/vae/internal/tensor"

// AddOp represents element-wise addition: output = a + b.
//
// Backward pass:
//   - d(a+b)/da = 1, so grad_a = outputGrad
//   - d(a+b)/db = 1, so grad_b = outputGrad
//
// Broadcast inputs receive the gradient summed over the broadcast dimensions.
type AddOp struct{ binaryOp }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{binaryOp{a: a, b: b, output: output}}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.a.Shape(), backend),
		reduceBroadcast(outputGrad, op.b.Shape(), backend),
	}
}

// SubOp represents element-wise subtraction: output = a - b.
//
// Backward pass:
//   - grad_a = outputGrad
//   - grad_b = -outputGrad
type SubOp struct{ binaryOp }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{binaryOp{a: a, b: b, output: output}}
}

// Backward computes input gradients for subtraction.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.a.Shape(), backend),
		reduceBroadcast(backend.MulScalar(outputGrad, -1), op.b.Shape(), backend),
	}
}

// MulOp represents element-wise multiplication: output = a * b.
//
// Backward pass:
//   - grad_a = outputGrad * b
//   - grad_b = outputGrad * a
type MulOp struct{ binaryOp }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{binaryOp{a: a, b: b, output: output}}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, op.b), op.a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, op.a), op.b.Shape(), backend),
	}
}

// DivOp represents element-wise division: output = a / b.
//
// Backward pass:
//   - grad_a = outputGrad / b
//   - grad_b = -outputGrad * a / b² = -outputGrad * output / b
type DivOp struct{ binaryOp }

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{binaryOp{a: a, b: b, output: output}}
}

// Backward computes input gradients for division.
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradA := backend.Div(outputGrad, op.b)
	gradB := backend.MulScalar(backend.Mul(gradA, op.output), -1)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, op.a.Shape(), backend),
		reduceBroadcast(gradB, op.b.Shape(), backend),
	}
}

// MulScalarOp represents multiplication by a constant: output = x * s.
type MulScalarOp struct {
	unaryOp
	scalar float64
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar float64) *MulScalarOp {
	return &MulScalarOp{unaryOp: unaryOp{input: input, output: output}, scalar: scalar}
}

// Backward computes grad_x = outputGrad * s.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// AddScalarOp represents addition of a constant: output = x + s.
type AddScalarOp struct{ unaryOp }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(input, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{unaryOp{input: input, output: output}}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// MatMulOp represents matrix multiplication: output = a @ b.
//
// Backward pass:
//   - grad_a = outputGrad @ b^T
//   - grad_b = a^T @ outputGrad
type MatMulOp struct{ binaryOp }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{binaryOp{a: a, b: b, output: output}}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(op.b)),
		backend.MatMul(backend.Transpose(op.a), outputGrad),
	}
}
