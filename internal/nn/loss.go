package nn

import (
	"math"

	"github.com/lattice-ml/lattice/internal/mat"
)

// MeanSquareError returns the root of the summed squared error over a batch
// of predictions yp against true values yt.
//
// Taking the root of the sum rather than the per-sample mean keeps reported
// losses comparable with earlier training runs; the gradient below is the
// mean-square-error gradient regardless.
func MeanSquareError(yp, yt *mat.Matrix) float32 {
	var e float64
	for i, p := range yp.Data {
		d := float64(p - yt.Data[i])
		e += d * d
	}
	return float32(math.Sqrt(e))
}

// MeanSquareErrorGrad writes dL/dy = 2(yp - yt) / N / M into dy, where M is
// the batch size and N the output dimension.
func MeanSquareErrorGrad(yp, yt, dy *mat.Matrix) {
	m := float32(yp.Rows)
	n := float32(yp.Cols)
	for i, p := range yp.Data {
		dy.Data[i] = 2 * (p - yt.Data[i]) / n / m
	}
}

// CrossEntropyLoss returns the summed cross-entropy of a batch of predicted
// probability rows yp against one-hot rows yt. Predictions are offset by
// 1e-8 before the log, so exact zeros do not produce infinities.
func CrossEntropyLoss(yp, yt *mat.Matrix) float32 {
	var loss float64
	for i, t := range yt.Data {
		if t != 0 {
			loss += -float64(t) * math.Log(float64(yp.Data[i])+1e-8)
		}
	}
	return float32(loss)
}

// CrossEntropyGrad writes dL/dy = (yp - yt) / K into dy, where K is the
// number of classes. Combined with a softmax output layer whose derivative
// is not re-applied, this is the fused softmax/cross-entropy gradient.
func CrossEntropyGrad(yp, yt, dy *mat.Matrix) {
	k := float32(yp.Cols)
	for i, p := range yp.Data {
		dy.Data[i] = (p - yt.Data[i]) / k
	}
}

// SparseCrossEntropyLoss returns the summed cross-entropy of predicted
// probability rows yp against integer class labels, one per row, stored in
// the first column of yt.
func SparseCrossEntropyLoss(yp, yt *mat.Matrix) float32 {
	var loss float64
	for i := 0; i < yp.Rows; i++ {
		label := int(yt.At(i, 0))
		loss += -math.Log(float64(yp.At(i, label)) + 1e-8)
	}
	return float32(loss)
}

// SparseCrossEntropyGrad writes the cross-entropy gradient into dy for
// integer class labels stored in the first column of yt.
func SparseCrossEntropyGrad(yp, yt, dy *mat.Matrix) {
	k := float32(yp.Cols)
	for i := 0; i < yp.Rows; i++ {
		label := int(yt.At(i, 0))
		pr := yp.Row(i)
		dr := dy.Row(i)
		for j, p := range pr {
			t := float32(0)
			if j == label {
				t = 1
			}
			dr[j] = (p - t) / k
		}
	}
}
