package nn

import "github.com/lattice-ml/lattice/internal/mat"

// R2Sum returns the numerator of a batch-averaged coefficient of
// determination: M * (1 - residual/total variance), where M is the batch
// size. Summed over all batches of an epoch and divided by the sample
// count, this yields the epoch's R-squared accuracy for regression.
func R2Sum(yp, yt *mat.Matrix) float32 {
	m, n := yt.Rows, yt.Cols
	var mean float64
	for _, t := range yt.Data {
		mean += float64(t)
	}
	mean /= float64(m * n)

	var resid, total float64
	for i, t := range yt.Data {
		d := float64(t) - float64(yp.Data[i])
		resid += d * d
		d = float64(t) - mean
		total += d * d
	}
	return float32(m) * float32(1-resid/total)
}

// MatchSum returns the number of rows whose argmax prediction matches the
// one-hot label. yt rows are assumed to have exactly one nonzero element.
func MatchSum(yp, yt *mat.Matrix) float32 {
	count := 0
	for i := 0; i < yp.Rows; i++ {
		tr := yt.Row(i)
		label := 0
		for ; label < len(tr); label++ {
			if tr[label] != 0 {
				break
			}
		}
		pr := yp.Row(i)
		pred := 0
		for j, p := range pr {
			if p > pr[pred] {
				pred = j
			}
		}
		if label == pred {
			count++
		}
	}
	return float32(count)
}
