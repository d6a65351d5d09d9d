// Package optim implements the weight update rules of the training engine:
// plain gradient descent with decoupled weight decay ("linear") and AdamW.
//
// Both rules operate element-wise on flat float32 weight and gradient
// slices and clip gradient magnitudes first. Moment buffers for AdamW are
// owned by the caller, interleaved with the gradient buffers.
package optim

import "math"

// Gradient magnitude bounds applied before every update. The ceiling keeps
// exploding gradients from destabilizing training; the floor keeps
// vanishing gradients from stalling it.
const (
	GradMin = 1.0e-12
	GradMax = 10.0
)

// AdamW hyperparameters, from Loshchilov & Hutter, "Decoupled Weight Decay
// Regularization", Algorithm 2.
const (
	beta1   = 0.9
	beta2   = 0.999
	epsilon = 1.0e-7
)

// ClipGradients clamps every gradient's magnitude into [gmin, gmax] in
// place. Values above gmax are clamped to ±gmax; values below gmin,
// including zero, are snapped to ±gmin keeping their sign (a zero gradient
// becomes -gmin).
func ClipGradients(g []float32, gmin, gmax float32) {
	for i, v := range g {
		m := v
		if m < 0 {
			m = -m
		}
		if m > gmax {
			if v > 0 {
				v = gmax
			} else {
				v = -gmax
			}
		} else if m < gmin {
			if v > 0 {
				v = gmin
			} else {
				v = -gmin
			}
		}
		g[i] = v
	}
}

// LinearUpdate applies one step of gradient descent with decoupled weight
// decay: w -= lr * (g + wd * w). Gradients are clipped in place first.
func LinearUpdate(w, g []float32, lr, wd float32) {
	ClipGradients(g, GradMin, GradMax)
	for i := range w {
		w[i] -= lr * (g[i] + wd*w[i])
	}
}

// AdamWUpdate applies one AdamW step to w from gradient g, using first and
// second moment buffers m and v. step is the 1-based global update count
// used for bias correction. Gradients are clipped in place first.
//
// A negative second moment means the moment buffers have been corrupted,
// by weight or gradient explosion or by loading a damaged model file, and
// training cannot meaningfully continue; AdamWUpdate panics in that case.
func AdamWUpdate(w, g, m, v []float32, lr, wd float32, step int) {
	ClipGradients(g, GradMin, GradMax)
	mc := 1.0 - math.Pow(beta1, float64(step))
	vc := 1.0 - math.Pow(beta2, float64(step))
	for i := range w {
		if v[i] < 0 {
			panic("optim: weight or gradient explosion")
		}
		m[i] = beta1*m[i] + (1.0-beta1)*g[i]
		v[i] = beta2*v[i] + (1.0-beta2)*g[i]*g[i]
		mh := float64(m[i]) / mc
		vh := float64(v[i]) / vc
		ag := mh / (math.Sqrt(vh) + epsilon)
		w[i] -= lr * (float32(ag) + wd*w[i])
	}
}
