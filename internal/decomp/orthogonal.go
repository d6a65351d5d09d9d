// Package decomp provides the single matrix decomposition the training
// engine consumes: in-place orthogonalization of a square matrix, used to
// initialize LSTM recurrent weights.
//
// The orthogonal factor is obtained by Householder QR. Only Q is retained;
// for a square random input this yields an orthogonal matrix with the same
// distribution properties as SVD-based orthogonalization at a fraction of
// the cost.
package decomp

import (
	"math"

	"github.com/lattice-ml/lattice/internal/mat"
)

// Orthogonalize replaces the square n×n matrix m with the orthogonal Q
// factor of its QR decomposition.
func Orthogonalize(m *mat.Matrix) {
	if m.Rows != m.Cols {
		panic("decomp.Orthogonalize: matrix must be square")
	}
	n := m.Rows

	q := mat.New(n, n)
	r := m.Clone()
	qk := mat.New(n, n)
	tmp := mat.New(n, n)
	x := make([]float32, n)
	v := make([]float32, n)

	for i := 0; i < n; i++ {
		q.Set(i, i, 1.0)
	}

	for k := 0; k < n; k++ {
		// Householder vector for column k of the trailing submatrix:
		// v = x + sign(x[0]) * ||x|| * e1, normalized.
		d := n - k
		for i := 0; i < d; i++ {
			x[i] = r.At(k+i, k)
		}
		clear(v[:d])
		v[0] = norm(x[:d])
		if x[0] < 0 {
			v[0] = -v[0]
		}
		for i := 0; i < d; i++ {
			v[i] += x[i]
		}
		vn := norm(v[:d])
		if vn == 0 {
			continue
		}
		for i := 0; i < d; i++ {
			v[i] /= vn
		}

		// Qk = I, with the trailing d×d block set to I - 2 v vᵀ.
		qk.Zero()
		for i := 0; i < n; i++ {
			qk.Set(i, i, 1.0)
		}
		for i := k; i < n; i++ {
			for j := k; j < n; j++ {
				qk.Set(i, j, qk.At(i, j)-2.0*v[i-k]*v[j-k])
			}
		}

		// R = Qk @ R
		mat.MatMul(tmp.Data, qk.Data, r.Data, n, n, n)
		r.CopyFrom(tmp)

		// Q = Q @ Qkᵀ
		mat.MatMulT(tmp.Data, q.Data, qk.Data, n, n, n)
		q.CopyFrom(tmp)
	}
	m.CopyFrom(q)
}

func norm(v []float32) float32 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return float32(math.Sqrt(s))
}
