package nn

import (
	"math"
	"testing"

	"github.com/lattice-ml/lattice/internal/mat"
)

func approx(t *testing.T, got, want float32, tol float64, what string) {
	t.Helper()
	if math.Abs(float64(got-want)) > tol {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestMeanSquareError(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 2, Cols: 2}
	yt := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 2, Cols: 2}
	approx(t, MeanSquareError(yp, yt), 0, 1e-7, "MSE of identical batches")

	yt2 := &mat.Matrix{Data: []float32{0, 2, 3, 1}, Rows: 2, Cols: 2}
	// error = sqrt(1 + 9) = sqrt(10)
	approx(t, MeanSquareError(yp, yt2), float32(math.Sqrt(10)), 1e-5, "MSE")
}

func TestMeanSquareErrorGrad(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 2, Cols: 2}
	yt := &mat.Matrix{Data: []float32{0, 2, 3, 2}, Rows: 2, Cols: 2}
	dy := mat.New(2, 2)
	MeanSquareErrorGrad(yp, yt, dy)
	// dLdy = 2(yp-yt)/N/M with N = M = 2
	want := []float32{0.5, 0, 0, 1}
	for i := range want {
		approx(t, dy.Data[i], want[i], 1e-6, "dy")
	}
}

func TestCrossEntropyLoss(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{0.9, 0.1, 0.2, 0.8}, Rows: 2, Cols: 2}
	yt := &mat.Matrix{Data: []float32{1, 0, 0, 1}, Rows: 2, Cols: 2}
	want := float32(-(math.Log(0.9+1e-8) + math.Log(0.8+1e-8)))
	approx(t, CrossEntropyLoss(yp, yt), want, 1e-5, "cross-entropy")
}

func TestCrossEntropyLossHandlesZeroPrediction(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{0, 1}, Rows: 1, Cols: 2}
	yt := &mat.Matrix{Data: []float32{1, 0}, Rows: 1, Cols: 2}
	loss := CrossEntropyLoss(yp, yt)
	if math.IsInf(float64(loss), 0) || math.IsNaN(float64(loss)) {
		t.Fatalf("loss = %v for zero predicted probability", loss)
	}
}

func TestCrossEntropyGrad(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{0.9, 0.1}, Rows: 1, Cols: 2}
	yt := &mat.Matrix{Data: []float32{1, 0}, Rows: 1, Cols: 2}
	dy := mat.New(1, 2)
	CrossEntropyGrad(yp, yt, dy)
	approx(t, dy.Data[0], -0.05, 1e-6, "dy[0]")
	approx(t, dy.Data[1], 0.05, 1e-6, "dy[1]")
}

func TestSparseCrossEntropyMatchesDense(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{0.7, 0.2, 0.1, 0.1, 0.3, 0.6}, Rows: 2, Cols: 3}
	dense := &mat.Matrix{Data: []float32{1, 0, 0, 0, 0, 1}, Rows: 2, Cols: 3}
	sparse := &mat.Matrix{Data: []float32{0, 2}, Rows: 2, Cols: 1}

	approx(t, SparseCrossEntropyLoss(yp, sparse), CrossEntropyLoss(yp, dense),
		1e-6, "sparse loss vs dense loss")

	dyDense := mat.New(2, 3)
	dySparse := mat.New(2, 3)
	CrossEntropyGrad(yp, dense, dyDense)
	SparseCrossEntropyGrad(yp, sparse, dySparse)
	for i := range dyDense.Data {
		approx(t, dySparse.Data[i], dyDense.Data[i], 1e-6, "sparse grad vs dense grad")
	}
}

func TestR2SumPerfectFit(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 4, Cols: 1}
	yt := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 4, Cols: 1}
	approx(t, R2Sum(yp, yt), 4, 1e-5, "R2 of perfect fit")
}

func TestR2SumWorseThanMean(t *testing.T) {
	yt := &mat.Matrix{Data: []float32{1, 2, 3, 4}, Rows: 4, Cols: 1}
	yp := &mat.Matrix{Data: []float32{4, 3, 2, 1}, Rows: 4, Cols: 1}
	if r := R2Sum(yp, yt); r >= 0 {
		t.Errorf("R2 of anti-correlated prediction = %v, want negative", r)
	}
}

func TestMatchSum(t *testing.T) {
	yp := &mat.Matrix{Data: []float32{
		0.9, 0.1, 0.0,
		0.2, 0.5, 0.3,
		0.1, 0.1, 0.8,
	}, Rows: 3, Cols: 3}
	yt := &mat.Matrix{Data: []float32{
		1, 0, 0,
		0, 0, 1,
		0, 0, 1,
	}, Rows: 3, Cols: 3}
	approx(t, MatchSum(yp, yt), 2, 0, "match count")
}
