// Package mat provides row-major float32 matrices with explicit shape and
// the small set of dense kernels the training engine is built on.
//
// There is deliberately no broadcasting, no views and no bounds metadata
// beyond the stored shape: every kernel takes the dimensions it operates on,
// and callers are responsible for passing buffers of matching size. This
// keeps the hot training loops free of per-element indirection.
package mat

import "fmt"

// Matrix is a dense row-major float32 matrix.
//
// Data holds Rows*Cols elements; element (i, j) lives at Data[i*Cols+j].
type Matrix struct {
	Data []float32
	Rows int
	Cols int
}

// New allocates a zeroed rows×cols matrix.
func New(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("mat.New: invalid shape %dx%d", rows, cols))
	}
	return &Matrix{
		Data: make([]float32, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// FromSlice wraps data as a rows×cols matrix without copying.
//
// Returns an error if len(data) != rows*cols.
func FromSlice(data []float32, rows, cols int) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("mat.FromSlice: %d values cannot fill %dx%d", len(data), rows, cols)
	}
	return &Matrix{Data: data, Rows: rows, Cols: cols}, nil
}

// Row returns the i-th row as a slice aliasing the matrix storage.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, v float32) {
	m.Data[i*m.Cols+j] = v
}

// Zero clears all elements.
func (m *Matrix) Zero() {
	clear(m.Data)
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := New(m.Rows, m.Cols)
	copy(c.Data, m.Data)
	return c
}

// CopyFrom copies src's elements into m. Shapes must match exactly.
func (m *Matrix) CopyFrom(src *Matrix) {
	if m.Rows != src.Rows || m.Cols != src.Cols {
		panic(fmt.Sprintf("mat.CopyFrom: shape mismatch %dx%d vs %dx%d",
			m.Rows, m.Cols, src.Rows, src.Cols))
	}
	copy(m.Data, src.Data)
}

// MatMul computes r = x @ y.
//
// x is N×d, y is d×M, r is N×M. r is cleared before accumulation.
func MatMul(r, x, y []float32, n, d, m int) {
	clear(r[:n*m])
	for i := 0; i < n; i++ {
		ri := r[i*m : (i+1)*m]
		xi := x[i*d : (i+1)*d]
		for k := 0; k < d; k++ {
			xik := xi[k]
			yk := y[k*m : (k+1)*m]
			for j := 0; j < m; j++ {
				ri[j] += xik * yk[j]
			}
		}
	}
}

// MatMulT computes r = x @ yᵀ.
//
// x is N×d, y is M×d, r is N×M. r is cleared before accumulation.
func MatMulT(r, x, y []float32, n, d, m int) {
	clear(r[:n*m])
	for i := 0; i < n; i++ {
		ri := r[i*m : (i+1)*m]
		xi := x[i*d : (i+1)*d]
		for j := 0; j < m; j++ {
			yj := y[j*d : (j+1)*d]
			var s float32
			for k := 0; k < d; k++ {
				s += xi[k] * yj[k]
			}
			ri[j] = s
		}
	}
}

// TMatMul computes r = xᵀ @ y.
//
// x is d×N, y is d×M, r is N×M. r is cleared before accumulation.
func TMatMul(r, x, y []float32, n, d, m int) {
	clear(r[:n*m])
	for k := 0; k < d; k++ {
		xk := x[k*n : (k+1)*n]
		yk := y[k*m : (k+1)*m]
		for i := 0; i < n; i++ {
			xki := xk[i]
			ri := r[i*m : (i+1)*m]
			for j := 0; j < m; j++ {
				ri[j] += xki * yk[j]
			}
		}
	}
}

// AddVecMatMul accumulates r += v @ m, where v is a length-M vector and
// mx is an M×N matrix; r has length N.
func AddVecMatMul(r, v, mx []float32, m, n int) {
	for i := 0; i < m; i++ {
		vi := v[i]
		mi := mx[i*n : (i+1)*n]
		for j := 0; j < n; j++ {
			r[j] += vi * mi[j]
		}
	}
}

// AddInnerMul accumulates v += w @ mᵀ, where w is a length-M vector and
// mx is an N×M matrix; v has length N.
func AddInnerMul(v, w, mx []float32, n, m int) {
	for j := 0; j < n; j++ {
		mj := mx[j*m : (j+1)*m]
		var s float32
		for i := 0; i < m; i++ {
			s += w[i] * mj[i]
		}
		v[j] += s
	}
}

// AddOuterMul accumulates the outer product m += v ⊗ w, where v has
// length N, w has length M and mx is N×M.
func AddOuterMul(mx, v, w []float32, n, m int) {
	for i := 0; i < n; i++ {
		vi := v[i]
		mi := mx[i*m : (i+1)*m]
		for j := 0; j < m; j++ {
			mi[j] += vi * w[j]
		}
	}
}

// Transpose writes mᵀ into mt. mx is N×M, mt is M×N.
func Transpose(mt, mx []float32, n, m int) {
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			mt[j*n+i] = mx[i*m+j]
		}
	}
}
