package partialsvd

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// bidiagCoeffs accumulates the α (diagonal) and β (off-diagonal) sequences
// of the bidiagonalization, one entry of each per iteration. The last β is
// the leading norm of the next step's residual and is not part of the
// matrix formed at the current step: after k iterations the k×k matrix
// uses alphas[0:k] and betas[0:k-1].
type bidiagCoeffs struct {
	alphas []float64
	betas  []float64
}

func newBidiagCoeffs(maxIter int) *bidiagCoeffs {
	return &bidiagCoeffs{
		alphas: make([]float64, 0, maxIter),
		betas:  make([]float64, 0, maxIter),
	}
}

func (c *bidiagCoeffs) append(alpha, beta float64) {
	c.alphas = append(c.alphas, alpha)
	c.betas = append(c.betas, beta)
}

func (c *bidiagCoeffs) len() int { return len(c.alphas) }

// dense assembles the current k×k upper-bidiagonal matrix.
func (c *bidiagCoeffs) dense() *mat.Dense {
	k := len(c.alphas)
	b := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		b.Set(i, i, c.alphas[i])
		if i+1 < k {
			b.Set(i, i+1, c.betas[i])
		}
	}
	return b
}

// ritzEstimate pairs a Ritz value of the bidiagonal matrix with the error
// bound derived from the extreme entries of its singular vectors.
type ritzEstimate struct {
	value float64
	bound float64
}

// ritzEstimates factorizes the current bidiagonal matrix and bounds each
// Ritz value by d·min(|u_k|, |v_k|), where u_k and v_k are the last
// components of the corresponding left and right singular vectors and
// d = sqrt(α·β) for the current step's coefficients. Values arrive in
// descending order from the factorization.
func (c *bidiagCoeffs) ritzEstimates(d float64) ([]ritzEstimate, error) {
	k := c.len()
	var svd mat.SVD
	if ok := svd.Factorize(c.dense(), mat.SVDFull); !ok {
		return nil, errors.New("partialsvd: bidiagonal SVD factorization failed")
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	estimates := make([]ritzEstimate, k)
	for i := 0; i < k; i++ {
		left := d * math.Abs(u.At(k-1, i))
		right := d * math.Abs(v.At(k-1, i))
		estimates[i] = ritzEstimate{value: values[i], bound: math.Min(left, right)}
	}
	return estimates, nil
}
