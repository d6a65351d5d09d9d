// Package batch prepares training data for the model: it slices a data set
// into fixed-size batches, optionally shuffling between epochs and
// appending a bias column.
//
// The iterator has three regimes. With sequence lengths provided, the data
// set is an ordered list of sequences; shuffling reorders whole sequences
// while the samples inside each keep their order, and a batch never spans
// two sequences. Without sequence lengths but with shuffling, samples are
// drawn through a flat permutation. Without either, samples are returned
// in data-set order.
package batch

import (
	"github.com/lattice-ml/lattice/internal/rng"
)

// Iterator yields batches of input vectors and, optionally, their expected
// output vectors. It does not copy the data set; Copy reads through to the
// slices given to New.
type Iterator struct {
	x []float32 // samples, row-major [num][inDim]
	y []float32 // labels, row-major [num][outDim], may be nil

	inDim     int
	outDim    int
	batchSize int
	num       int // total number of samples
	shuffle   bool
	addBias   bool

	seqStart []int // sequence mode: start index of each sequence
	seqLen   []int // sequence mode: length of each sequence
	perm     []int // i.i.d. mode: sample permutation

	curSeq int
	curVec int
}

// New constructs an iterator over num samples of dimension inDim stored
// row-major in x, with optional labels of dimension outDim in y (nil for
// prediction-only iteration).
//
// seqLens, when non-nil with more than one entry, gives the length of each
// consecutive sequence in x and selects sequence mode. batchSize is the
// number of samples per batch; when addBias is true each copied sample
// gains a trailing bias column fixed at 1.0, so callers must size their
// batch buffers inDim+1 wide.
func New(x []float32, inDim int, y []float32, outDim int,
	batchSize int, seqLens []int, shuffle, addBias bool) *Iterator {

	b := &Iterator{
		x:         x,
		y:         y,
		inDim:     inDim,
		outDim:    outDim,
		batchSize: batchSize,
		shuffle:   shuffle,
		addBias:   addBias,
	}
	if len(seqLens) > 1 {
		n := len(seqLens)
		b.seqStart = make([]int, n)
		b.seqLen = make([]int, n)
		start := 0
		for i, l := range seqLens {
			b.seqStart[i] = start
			b.seqLen[i] = l
			start += l
		}
		b.num = start
	} else {
		b.num = len(x) / inDim
		if shuffle {
			b.perm = make([]int, b.num)
			for i := range b.perm {
				b.perm[i] = i
			}
		}
	}
	return b
}

// NumSamples returns the total number of samples in the data set.
func (b *Iterator) NumSamples() int {
	return b.num
}

// NumBatches returns the number of batches per epoch, counting the final
// padded batch.
func (b *Iterator) NumBatches() int {
	if b.seqStart != nil {
		n := 0
		for _, l := range b.seqLen {
			n += (l + b.batchSize - 1) / b.batchSize
		}
		return n
	}
	return (b.num + b.batchSize - 1) / b.batchSize
}

// SetBatchSize changes the number of samples per batch.
func (b *Iterator) SetBatchSize(batchSize int) {
	b.batchSize = batchSize
}

// Shuffle rewinds the iterator to the start of the data set and, if
// shuffling is enabled, permutes the iteration order: whole sequences in
// sequence mode, individual samples otherwise.
//
// The permutation is three rounds of a Fisher-Yates pass drawing from g,
// so a given seed always produces the same epoch order.
func (b *Iterator) Shuffle(g *rng.Source) {
	b.curSeq = 0
	b.curVec = 0
	if !b.shuffle {
		return
	}
	if b.seqStart != nil {
		n := len(b.seqStart)
		for k := 0; k < 3; k++ {
			for i := n - 1; i > 0; i-- {
				j := int(g.Uniform(0.0, 1.0+float32(i)))
				b.seqStart[i], b.seqStart[j] = b.seqStart[j], b.seqStart[i]
				b.seqLen[i], b.seqLen[j] = b.seqLen[j], b.seqLen[i]
			}
		}
	} else if b.perm != nil {
		n := len(b.perm)
		for k := 0; k < 3; k++ {
			for i := n - 1; i > 0; i-- {
				j := int(g.Uniform(0.0, 1.0+float32(i)))
				b.perm[i], b.perm[j] = b.perm[j], b.perm[i]
			}
		}
	}
}

// Copy fills x, and y if both it and the data set's labels are present,
// with the next batch and returns the number of real samples copied.
// Returns 0 past the end of the data set.
//
// x must hold batchSize rows of inDim (+1 with bias) columns; y must hold
// batchSize rows of outDim columns. When fewer than batchSize samples
// remain, the tail rows are padded: every x element with 1.0, every y
// element with 0, so padded samples contribute a constant input and an
// all-zero target.
func (b *Iterator) Copy(x, y []float32) int {
	db := b.inDim + btoi(b.addBias)
	cnt := 0

	switch {
	case b.seqStart != nil:
		if b.curSeq < len(b.seqStart) {
			start := b.seqStart[b.curSeq]
			seqLen := b.seqLen[b.curSeq]
			for cnt < b.batchSize && b.curVec < seqLen {
				b.copySample(x, y, cnt, start+b.curVec)
				b.curVec++
				cnt++
			}
			if b.curVec >= seqLen {
				b.curSeq++
				b.curVec = 0
			}
		}
	case b.perm != nil:
		for cnt < b.batchSize && b.curVec < b.num {
			b.copySample(x, y, cnt, b.perm[b.curVec])
			b.curVec++
			cnt++
		}
	default:
		for cnt < b.batchSize && b.curVec < b.num {
			b.copySample(x, y, cnt, b.curVec)
			b.curVec++
			cnt++
		}
	}

	if cnt < b.batchSize {
		for i := cnt * db; i < b.batchSize*db; i++ {
			x[i] = 1.0
		}
		if b.y != nil && y != nil {
			clear(y[cnt*b.outDim : b.batchSize*b.outDim])
		}
	}
	return cnt
}

// copySample copies source sample src into row dst of the batch buffers.
func (b *Iterator) copySample(x, y []float32, dst, src int) {
	db := b.inDim + btoi(b.addBias)
	copy(x[dst*db:dst*db+b.inDim], b.x[src*b.inDim:(src+1)*b.inDim])
	if b.addBias {
		x[dst*db+b.inDim] = 1.0
	}
	if b.y != nil && y != nil {
		copy(y[dst*b.outDim:(dst+1)*b.outDim],
			b.y[src*b.outDim:(src+1)*b.outDim])
	}
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
