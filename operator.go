package partialsvd

import (
	"gonum.org/v1/gonum/mat"
)

// Operator is the capability set the estimator needs from a linear map:
// dimensions, forward multiplication, adjoint multiplication, and the
// Frobenius norm (queried once at startup to seed the approximation-error
// estimate).
//
// Implementations must remain valid and side-effect-free for the duration
// of an Estimate call; the estimator only reads through these methods and
// never mutates the operator.
type Operator interface {
	// Dims returns the number of rows m and columns n.
	Dims() (m, n int)

	// MulVec computes dst = A·src. len(src) must equal n, len(dst) m.
	MulVec(dst, src []float64)

	// MulVecTrans computes dst = Aᵀ·src. len(src) must equal m,
	// len(dst) n.
	MulVecTrans(dst, src []float64)

	// Norm returns the Frobenius norm of the operator.
	Norm() float64
}

// MatrixOperator adapts a concrete gonum matrix to the Operator
// interface, so callers holding a mat.Matrix do not have to hand-write
// the capability set.
type MatrixOperator struct {
	a mat.Matrix
}

// NewMatrixOperator wraps a mat.Matrix as an Operator. The matrix is not
// copied; it must not be mutated while an estimation is in flight.
func NewMatrixOperator(a mat.Matrix) *MatrixOperator {
	return &MatrixOperator{a: a}
}

func (op *MatrixOperator) Dims() (int, int) { return op.a.Dims() }

func (op *MatrixOperator) MulVec(dst, src []float64) {
	_, n := op.a.Dims()
	var y mat.VecDense
	y.MulVec(op.a, mat.NewVecDense(n, src))
	copy(dst, y.RawVector().Data)
}

func (op *MatrixOperator) MulVecTrans(dst, src []float64) {
	m, _ := op.a.Dims()
	var y mat.VecDense
	y.MulVec(op.a.T(), mat.NewVecDense(m, src))
	copy(dst, y.RawVector().Data)
}

func (op *MatrixOperator) Norm() float64 {
	return mat.Norm(op.a, 2)
}
