// Package ctc implements the connectionist temporal classification loss of
// Graves et al., used to train sequence models when the alignment between
// input time steps and output labels is unknown.
//
// All trellis arithmetic is done in log space with -Inf standing in for
// zero probability. Equation numbers in comments refer to Graves,
// "Supervised Sequence Labelling with Recurrent Neural Networks" (2012).
package ctc

import (
	"math"

	"github.com/lattice-ml/lattice/internal/mat"
)

// Calc computes the CTC loss, gradient and accuracy for batches of up to
// maxSteps time steps. Loss must be called before Gradient or Accuracy for
// the same batch; it fills the trellis and decoded label state the other
// two consume.
type Calc struct {
	maxSteps  int // T
	numLabels int // L, including blank
	blank     int // blank label index

	logp     *mat.Matrix // [T][L] log predictions saved by Loss
	pred     []int       // decoded predictions, merged and blank-stripped
	truth    []int       // decoded labels, merged and blank-stripped
	predLen  int
	truthLen int
	label    []int // blank-padded label sequence, length <= 2T+1
	padN     int   // actual padded label length (S)

	alpha *mat.Matrix // [T][2T+1] forward variables
	beta  *mat.Matrix // [T][2T+1] backward variables
	prob  []float32   // [T] per-step log probability of the labeling
}

// New creates a Calc for batches of up to maxSteps time steps with
// numLabels distinct labels (including the blank at index blank).
func New(maxSteps, numLabels, blank int) *Calc {
	s := 2*maxSteps + 1
	return &Calc{
		maxSteps:  maxSteps,
		numLabels: numLabels,
		blank:     blank,
		logp:      mat.New(maxSteps, numLabels),
		pred:      make([]int, maxSteps),
		truth:     make([]int, maxSteps),
		label:     make([]int, s),
		alpha:     mat.New(maxSteps, s),
		beta:      mat.New(maxSteps, s),
		prob:      make([]float32, maxSteps),
	}
}

// MaxSteps returns the maximum number of time steps per batch.
func (c *Calc) MaxSteps() int { return c.maxSteps }

// NumLabels returns the number of distinct labels, including blank.
func (c *Calc) NumLabels() int { return c.numLabels }

// Blank returns the blank label index.
func (c *Calc) Blank() int { return c.blank }

var negInf = float32(math.Inf(-1))

// logSumExp returns log(exp(a) + exp(b)) without overflow. Equation 7.18.
func logSumExp(a, b float32) float32 {
	if a == negInf {
		return b
	}
	if b == negInf {
		return a
	}
	if a >= b {
		return a + float32(math.Log1p(math.Exp(float64(b-a))))
	}
	return b + float32(math.Log1p(math.Exp(float64(a-b))))
}

// decode collapses one-hot (or probability) rows to label indices by
// argmax, merges consecutive identical labels and strips blanks.
// a a a b b c d d -> a b c d ;  a a ^ a b -> a a b (^ is blank).
func (c *Calc) decode(y *mat.Matrix, out []int, steps int) int {
	for i := 0; i < steps; i++ {
		row := y.Row(i)
		mj := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[mj] {
				mj = j
			}
		}
		out[i] = mj
	}
	j := 0
	for i := 1; i < steps; i++ {
		if out[i] != out[j] {
			j++
			out[j] = out[i]
		}
	}
	merged := j + 1
	if steps == 0 {
		merged = 0
	}
	j = 0
	for i := 0; i < merged; i++ {
		if out[i] != c.blank {
			out[j] = out[i]
			j++
		}
	}
	return j
}

// Loss returns the CTC loss for the batch of predicted probability rows yp
// against one-hot label rows yt, both steps×numLabels. Label sequences
// shorter than the batch are padded with blank rows, or aligned by
// duplicating labels.
//
// Loss fills the forward/backward trellis used by Gradient and the decoded
// label sequences used by Accuracy.
func (c *Calc) Loss(yp, yt *mat.Matrix) float32 {
	T := yp.Rows
	L := c.numLabels
	blank := c.blank
	if T == 0 {
		return float32(math.Inf(1))
	}

	// Keep the predictions in log scale for Gradient.
	for i := 0; i < T*L; i++ {
		c.logp.Data[i] = float32(math.Log(float64(yp.Data[i])))
	}
	c.predLen = c.decode(yp, c.pred, T)
	ytlen := c.decode(yt, c.truth, T)
	c.truthLen = ytlen

	// Blank-padded labeling: blank between labels and at both ends.
	c.label[0] = blank
	s := 1
	for i := 0; i < ytlen && s < 2*T+1; i++ {
		c.label[s] = c.truth[i]
		s++
		c.label[s] = blank
		s++
	}
	S := s
	c.padN = S

	alpha := c.alpha
	beta := c.beta
	for t := 0; t < T; t++ {
		ar := alpha.Row(t)[:S]
		br := beta.Row(t)[:S]
		for i := range ar {
			ar[i] = negInf
			br[i] = negInf
		}
	}

	// Forward variables. Equations 7.5 to 7.9.
	lp := c.logp
	alpha.Row(0)[0] = lp.At(0, blank)
	if S > 1 {
		alpha.Row(0)[1] = lp.At(0, c.label[1])
	}
	for t := 1; t < T; t++ {
		start := S - 2*(T-t)
		if start < 0 {
			start = 0
		}
		end := 2 * (t + 1)
		if end > S {
			end = S
		}
		prev := alpha.Row(t - 1)
		cur := alpha.Row(t)
		for s := start; s < end; s++ {
			ls := c.label[s]
			ats := prev[s]
			if s >= 1 {
				ats = logSumExp(ats, prev[s-1])
			}
			if s >= 2 && ls != blank && c.label[s-2] != ls {
				ats = logSumExp(ats, prev[s-2])
			}
			cur[s] = ats + lp.At(t, ls)
		}
	}

	// Backward variables. Equations 7.12 to 7.16.
	beta.Row(T - 1)[S-1] = 0
	if S > 1 {
		beta.Row(T - 1)[S-2] = 0
	}
	for t := T - 2; t >= 0; t-- {
		start := S - 2*(T-t)
		if start < 0 {
			start = 0
		}
		end := 2 * (t + 1)
		if end > S {
			end = S
		}
		next := beta.Row(t + 1)
		cur := beta.Row(t)
		for s := start; s < end; s++ {
			// Equation 7.15 as printed reads yp[t]; it should be yp[t+1].
			bts := next[s] + lp.At(t+1, c.label[s])
			if s+1 < S {
				bts = logSumExp(bts, next[s+1]+lp.At(t+1, c.label[s+1]))
			}
			if s+2 < S && c.label[s] != blank && c.label[s+2] != c.label[s] {
				bts = logSumExp(bts, next[s+2]+lp.At(t+1, c.label[s+2]))
			}
			cur[s] = bts
		}
	}

	// Per-step log probability of the full labeling. Equation 7.23.
	var loss float32
	for t := 0; t < T; t++ {
		ar := alpha.Row(t)
		br := beta.Row(t)
		p := negInf
		for s := 0; s < S; s++ {
			p = logSumExp(p, ar[s]+br[s])
		}
		c.prob[t] = p
		loss += -p
	}
	return loss / float32(T)
}

// Gradient writes dL/dy for the batch most recently passed to Loss into dy
// (steps×numLabels). Equation 7.29, with the softmax derivative folded in.
func (c *Calc) Gradient(dy *mat.Matrix) {
	T := dy.Rows
	L := c.numLabels
	S := c.padN
	for t := 0; t < T; t++ {
		ar := c.alpha.Row(t)
		br := c.beta.Row(t)
		dr := dy.Row(t)
		lr := c.logp.Row(t)
		for l := 0; l < L; l++ {
			sum := negInf
			for s := 0; s < S; s++ {
				if l == c.label[s] { // Equation 7.24
					sum = logSumExp(sum, ar[s]+br[s])
				}
			}
			dr[l] = float32(math.Exp(float64(lr[l]))) -
				float32(math.Exp(float64(sum-c.prob[t])))
		}
	}
}

// Accuracy returns the accuracy numerator for the batch most recently
// passed to Loss: steps * (1 - editDistance/maxLen) over the merged,
// blank-stripped predicted and true label sequences. The result is between
// 0 (no match) and steps (exact match).
func (c *Calc) Accuracy(steps int) float32 {
	fact := c.predLen
	if c.truthLen > fact {
		fact = c.truthLen
	}
	if fact == 0 {
		return float32(steps)
	}
	dist := editDistance(c.pred[:c.predLen], c.truth[:c.truthLen])
	return (1 - float32(dist)/float32(fact)) * float32(steps)
}

// editDistance returns the Levenshtein distance between two label
// sequences.
func editDistance(p, t []int) int {
	n, m := len(p), len(t)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	v0 := make([]int, n+1)
	v1 := make([]int, n+1)
	for i := range v0 {
		v0[i] = i
	}
	for i := 0; i < m; i++ {
		v1[0] = i + 1
		for j := 0; j < n; j++ {
			del := v0[j+1] + 1
			ins := v1[j] + 1
			sub := v0[j]
			if p[j] != t[i] {
				sub++
			}
			v1[j+1] = min(del, ins, sub)
		}
		v0, v1 = v1, v0
	}
	return v0[n]
}
