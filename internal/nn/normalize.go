package nn

import "math"

// MeanSdev computes the per-column mean and standard deviation of the
// M×D row-major data set x into mean and sdev. When excludeLast is true
// the last column (the bias column) is left out and only the first D-1
// entries of mean and sdev are written.
func MeanSdev(x []float32, m, d int, mean, sdev []float32, excludeLast bool) {
	dx := d
	if excludeLast {
		dx--
	}
	clear(mean[:dx])
	clear(sdev[:dx])
	for i := 0; i < m; i++ {
		row := x[i*d:]
		for j := 0; j < dx; j++ {
			mean[j] += row[j]
		}
	}
	for j := 0; j < dx; j++ {
		mean[j] /= float32(m)
	}
	for i := 0; i < m; i++ {
		row := x[i*d:]
		for j := 0; j < dx; j++ {
			v := row[j] - mean[j]
			sdev[j] += v * v
		}
	}
	for j := 0; j < dx; j++ {
		sdev[j] = float32(math.Sqrt(float64(sdev[j]) / float64(m)))
	}
}

// Normalize standardizes the B×D row-major batch x in place, subtracting
// mean and dividing by sdev column-wise. Columns with zero deviation are
// set to zero, since every value there equals the mean. When excludeLast
// is true the last column is left untouched.
func Normalize(x []float32, b, d int, mean, sdev []float32, excludeLast bool) {
	dx := d
	if excludeLast {
		dx--
	}
	for i := 0; i < b; i++ {
		row := x[i*d:]
		for j := 0; j < dx; j++ {
			if sdev[j] > 0 {
				row[j] = (row[j] - mean[j]) / sdev[j]
			} else {
				row[j] = 0
			}
		}
	}
}
