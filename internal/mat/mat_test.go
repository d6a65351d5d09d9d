package mat

import (
	"math"
	"testing"
)

func floatEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func sliceEqual(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !floatEqual(got[i], want[i]) {
			t.Errorf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMatMul(t *testing.T) {
	// [1 2; 3 4] @ [5 6; 7 8] = [19 22; 43 50]
	x := []float32{1, 2, 3, 4}
	y := []float32{5, 6, 7, 8}
	r := []float32{99, 99, 99, 99} // must be overwritten
	MatMul(r, x, y, 2, 2, 2)
	sliceEqual(t, r, []float32{19, 22, 43, 50})
}

func TestMatMulRectangular(t *testing.T) {
	// 1x3 @ 3x2
	x := []float32{1, 2, 3}
	y := []float32{1, 4, 2, 5, 3, 6}
	r := make([]float32, 2)
	MatMul(r, x, y, 1, 3, 2)
	sliceEqual(t, r, []float32{14, 32})
}

func TestMatMulT(t *testing.T) {
	// x @ yT where y is 2x2: [1 2; 3 4] @ [5 7; 6 8] = [17 23; 39 53]
	x := []float32{1, 2, 3, 4}
	y := []float32{5, 6, 7, 8}
	r := make([]float32, 4)
	MatMulT(r, x, y, 2, 2, 2)
	sliceEqual(t, r, []float32{17, 23, 39, 53})
}

func TestTMatMul(t *testing.T) {
	// xT @ y: ([1 2; 3 4])T @ [5 6; 7 8] = [26 30; 38 44]
	x := []float32{1, 2, 3, 4}
	y := []float32{5, 6, 7, 8}
	r := make([]float32, 4)
	TMatMul(r, x, y, 2, 2, 2)
	sliceEqual(t, r, []float32{26, 30, 38, 44})
}

func TestAddVecMatMul(t *testing.T) {
	// r += v @ m with v = [1 2], m = [3 4; 5 6]
	r := []float32{1, 1}
	v := []float32{1, 2}
	m := []float32{3, 4, 5, 6}
	AddVecMatMul(r, v, m, 2, 2)
	sliceEqual(t, r, []float32{14, 17})
}

func TestAddInnerMul(t *testing.T) {
	// v += w @ mT with w = [1 2], m = [3 4; 5 6] (2x2)
	v := []float32{1, 1}
	w := []float32{1, 2}
	m := []float32{3, 4, 5, 6}
	AddInnerMul(v, w, m, 2, 2)
	sliceEqual(t, v, []float32{12, 18})
}

func TestAddOuterMul(t *testing.T) {
	m := make([]float32, 6)
	v := []float32{1, 2}
	w := []float32{3, 4, 5}
	AddOuterMul(m, v, w, 2, 3)
	sliceEqual(t, m, []float32{3, 4, 5, 6, 8, 10})
	// accumulates
	AddOuterMul(m, v, w, 2, 3)
	sliceEqual(t, m, []float32{6, 8, 10, 12, 16, 20})
}

func TestTranspose(t *testing.T) {
	m := []float32{1, 2, 3, 4, 5, 6} // 2x3
	mt := make([]float32, 6)
	Transpose(mt, m, 2, 3)
	sliceEqual(t, mt, []float32{1, 4, 2, 5, 3, 6})
}

func TestMatrixAccessors(t *testing.T) {
	m := New(2, 3)
	m.Set(1, 2, 7)
	if m.At(1, 2) != 7 {
		t.Errorf("At(1,2) = %v, want 7", m.At(1, 2))
	}
	row := m.Row(1)
	if row[2] != 7 {
		t.Errorf("Row(1)[2] = %v, want 7", row[2])
	}
	row[0] = 3 // rows alias storage
	if m.At(1, 0) != 3 {
		t.Errorf("row aliasing broken: At(1,0) = %v, want 3", m.At(1, 0))
	}

	c := m.Clone()
	c.Set(0, 0, 9)
	if m.At(0, 0) == 9 {
		t.Error("Clone shares storage with original")
	}

	m.Zero()
	for i, v := range m.Data {
		if v != 0 {
			t.Fatalf("Zero left element %d = %v", i, v)
		}
	}
}

func TestFromSlice(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	m, err := FromSlice(data, 2, 3)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	if m.At(1, 0) != 4 {
		t.Errorf("At(1,0) = %v, want 4", m.At(1, 0))
	}
	if _, err := FromSlice(data, 2, 2); err == nil {
		t.Error("FromSlice accepted mismatched shape")
	}
}

func TestCopyFromShapeMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("CopyFrom did not panic on shape mismatch")
		}
	}()
	New(2, 2).CopyFrom(New(2, 3))
}
