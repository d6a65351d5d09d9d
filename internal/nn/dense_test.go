package nn

import (
	"math"
	"testing"

	"github.com/lattice-ml/lattice/internal/mat"
	"github.com/lattice-ml/lattice/internal/rng"
)

func TestDenseForward(t *testing.T) {
	l := NewDense(2, "none")
	l.Init(3, 2, rng.New(1))

	// Identity-ish weights: first two input columns pass through.
	wx := l.Weights()[0]
	wx.Zero()
	wx.Set(0, 0, 1)
	wx.Set(1, 1, 1)

	x := &mat.Matrix{Data: []float32{1, 2, 3, 4, 5, 6}, Rows: 2, Cols: 3}
	h := l.Forward(x)
	want := []float32{1, 2, 4, 5}
	for i := range want {
		if h.Data[i] != want[i] {
			t.Errorf("h[%d] = %v, want %v", i, h.Data[i], want[i])
		}
	}
}

func TestDenseForwardSigmoidZeroWeights(t *testing.T) {
	l := NewDense(3, "sigmoid")
	l.Init(2, 2, rng.New(1))
	l.Weights()[0].Zero()

	x := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 2, Cols: 2}
	h := l.Forward(x)
	for i, v := range h.Data {
		if math.Abs(float64(v-0.5)) > 1e-6 {
			t.Errorf("h[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestDenseBackward(t *testing.T) {
	l := NewDense(2, "none")
	l.Init(2, 2, rng.New(1))
	wx := l.Weights()[0]
	copy(wx.Data, []float32{1, 2, 3, 4})

	x := &mat.Matrix{Data: []float32{1, 0, 0, 1}, Rows: 2, Cols: 2}
	dy := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 2, Cols: 2}
	g := mat.New(2, 2)
	dx := mat.New(2, 2)
	l.Forward(x)
	l.Backward(dy, x, []*mat.Matrix{g}, dx)

	// gWx = xT @ dy; with x = I this is dy itself.
	for i := range dy.Data {
		if g.Data[i] != dy.Data[i] {
			t.Errorf("gWx[%d] = %v, want %v", i, g.Data[i], dy.Data[i])
		}
	}
	// dx = dy @ wxT
	want := []float32{5, 11, 11, 25}
	for i := range want {
		if dx.Data[i] != want[i] {
			t.Errorf("dx[%d] = %v, want %v", i, dx.Data[i], want[i])
		}
	}
}

func TestDenseInitDeterministic(t *testing.T) {
	a := NewDense(4, "relu")
	b := NewDense(4, "relu")
	a.Init(3, 2, rng.New(7))
	b.Init(3, 2, rng.New(7))
	for i := range a.Weights()[0].Data {
		if a.Weights()[0].Data[i] != b.Weights()[0].Data[i] {
			t.Fatal("same seed produced different weights")
		}
	}

	c := NewDense(4, "relu")
	c.Init(3, 2, rng.New(8))
	same := true
	for i := range a.Weights()[0].Data {
		if a.Weights()[0].Data[i] != c.Weights()[0].Data[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical weights")
	}
}

func TestDenseSetBatchSize(t *testing.T) {
	l := NewDense(2, "none")
	l.SetBatchSize(8) // no-op while detached
	if l.BatchSize() != 0 {
		t.Fatalf("detached batch size = %d, want 0", l.BatchSize())
	}
	l.Init(3, 4, rng.New(1))
	l.SetBatchSize(8)
	if l.BatchSize() != 8 {
		t.Fatalf("batch size = %d, want 8", l.BatchSize())
	}
	x := mat.New(8, 3)
	h := l.Forward(x)
	if h.Rows != 8 || h.Cols != 2 {
		t.Fatalf("output shape %dx%d, want 8x2", h.Rows, h.Cols)
	}
}

func TestNewDensePanicsOnBadActivation(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewDense accepted invalid activation")
		}
	}()
	NewDense(2, "swish")
}
