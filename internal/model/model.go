// Package model assembles layers into a trainable multi-layer network and
// drives the training loop: batching, normalization, forward and backward
// passes, loss evaluation and weight updates.
package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lattice-ml/lattice/internal/batch"
	"github.com/lattice-ml/lattice/internal/ctc"
	"github.com/lattice-ml/lattice/internal/mat"
	"github.com/lattice-ml/lattice/internal/nn"
	"github.com/lattice-ml/lattice/internal/optim"
	"github.com/lattice-ml/lattice/internal/rng"
)

// Loss function codes, matching the serialized model format.
const (
	LossMeanSquareError byte = 'm'
	LossCrossEntropy    byte = 'c'
	LossCTC             byte = 'C'
)

// Optimizer codes, matching the serialized model format.
const (
	OptimizerLinear byte = 'l'
	OptimizerAdamW  byte = 'a'
)

// ErrFinal is returned by Fit on a model whose optimizer state was
// released by a final training run.
var ErrFinal = errors.New("model is final and cannot be trained further")

// ErrNotCompiled is returned by Fit and Predict before Compile.
var ErrNotCompiled = errors.New("model has not been compiled")

// Config carries the fixed properties of a model. InputDim and BatchSize
// are required; the rest default to their zero values.
type Config struct {
	// BatchSize is the number of samples processed between weight updates.
	// For recurrent layers it is also the truncation length of
	// backpropagation through time.
	BatchSize int

	// InputDim is the dimension of the input samples. When AddBias is
	// false the last input column must already hold the bias constant.
	InputDim int

	// AddBias appends a bias column fixed at 1.0 to every sample.
	AddBias bool

	// Normalize standardizes input features to zero mean and unit
	// deviation, with statistics computed from the training data on each
	// Fit call.
	Normalize bool

	// Seed initializes the model's random source, used for weight
	// initialization and shuffling. Zero selects the default seed;
	// identical seeds give bit-identical training runs.
	Seed int32
}

// Dataset is a set of row-major samples with optional targets and sequence
// structure. When SeqLens is non-nil with more than one entry, X holds
// that many back-to-back sequences and shuffling preserves sample order
// within each.
type Dataset struct {
	X       []float32
	Y       []float32
	SeqLens []int
}

// NumSamples returns the number of samples in the set, given the sample
// dimension d.
func (d *Dataset) NumSamples(dim int) int {
	if d.SeqLens != nil {
		n := 0
		for _, l := range d.SeqLens {
			n += l
		}
		return n
	}
	return len(d.X) / dim
}

// History records per-epoch training metrics from a Fit run. Validation
// slices are nil when no validation data was given. For regression the
// accuracy is the R-squared coefficient; for classification it is the
// fraction of matching labels.
type History struct {
	Loss        []float32
	Accuracy    []float32
	ValLoss     []float32
	ValAccuracy []float32
}

// Model is a stack of layers trained with a shared loss and optimizer.
// Build one with New and Add, then Compile before Fit or Predict.
type Model struct {
	layers    []nn.Layer
	batchSize int
	inputDim  int
	addBias   bool
	normalize bool
	outputDim int

	lossFunc  byte
	optimizer byte
	updateCnt int
	final     bool
	compiled  bool

	mean, sdev []float32
	ctc        *ctc.Calc
	grads      [][]*mat.Matrix // per layer; weight grads, then AdamW moments
	g          *rng.Source
}

// New creates an empty model from cfg.
func New(cfg Config) *Model {
	return &Model{
		batchSize: cfg.BatchSize,
		inputDim:  cfg.InputDim,
		addBias:   cfg.AddBias,
		normalize: cfg.Normalize,
		g:         rng.New(cfg.Seed),
	}
}

// Add appends a layer after all previously added layers. Layers must be
// added before Compile.
func (m *Model) Add(l nn.Layer) *Model {
	m.layers = append(m.layers, l)
	return m
}

// Layers returns the model's layers in order.
func (m *Model) Layers() []nn.Layer { return m.layers }

// BatchSize returns the current batch size.
func (m *Model) BatchSize() int { return m.batchSize }

// InputDim returns the input dimension, excluding any added bias column.
func (m *Model) InputDim() int { return m.inputDim }

// OutputDim returns the dimension of the model's output vectors.
// Valid after Compile.
func (m *Model) OutputDim() int { return m.outputDim }

// UpdateCount returns the number of weight updates applied so far.
func (m *Model) UpdateCount() int { return m.updateCnt }

// Final reports whether the optimizer state has been released.
func (m *Model) Final() bool { return m.final }

// Compile fixes the model's loss function and optimizer, initializes all
// layer weights and allocates gradient storage.
//
// lossFunc is one of "mean-square-error", "cross-entropy" or "ctc";
// optimizer is "linear" or "adamw". Invalid names and an empty layer stack
// panic: they are programming errors, not runtime conditions.
//
// Layer dimensions are chained front to back: the first layer's input is
// the model input (plus bias), each later layer's input is the previous
// layer's unit count, and the last layer's unit count is the model output
// dimension.
func (m *Model) Compile(lossFunc, optimizer string) {
	switch strings.ToLower(lossFunc) {
	case "mean-square-error":
		m.lossFunc = LossMeanSquareError
	case "cross-entropy":
		m.lossFunc = LossCrossEntropy
	case "ctc":
		m.lossFunc = LossCTC
	default:
		panic(fmt.Sprintf("model.Compile: invalid loss function %q", lossFunc))
	}
	switch strings.ToLower(optimizer) {
	case "linear":
		m.optimizer = OptimizerLinear
	case "adamw":
		m.optimizer = OptimizerAdamW
	default:
		panic(fmt.Sprintf("model.Compile: invalid optimizer %q", optimizer))
	}
	if len(m.layers) == 0 {
		panic("model.Compile: model does not have any layers")
	}

	if m.normalize {
		dx := m.inputDim - btoi(!m.addBias)
		m.mean = make([]float32, dx)
		m.sdev = make([]float32, dx)
	}

	d := m.inputDim + btoi(m.addBias)
	for _, l := range m.layers {
		l.Init(d, m.batchSize, m.g)
		d = l.Units()
	}
	m.outputDim = d
	if m.lossFunc == LossCTC {
		m.ctc = ctc.New(m.batchSize, m.outputDim, 0)
	}
	m.allocGrads()
	m.compiled = true
}

// allocGrads sizes the per-layer gradient storage for the configured
// optimizer: the weight gradients alone for linear, plus first and second
// moment buffers for AdamW.
func (m *Model) allocGrads() {
	m.grads = make([][]*mat.Matrix, len(m.layers))
	sets := 1
	if m.optimizer == OptimizerAdamW {
		sets = 3
	}
	for i, l := range m.layers {
		shapes := l.GradShapes()
		g := make([]*mat.Matrix, 0, sets*len(shapes))
		for s := 0; s < sets; s++ {
			for _, sh := range shapes {
				g = append(g, mat.New(sh[0], sh[1]))
			}
		}
		m.grads[i] = g
	}
}

// SetBatchSize changes the batch size of a compiled, possibly trained,
// model. Smaller batches reduce memory use and prediction latency at some
// cost in throughput and, for recurrent layers, backpropagation depth.
func (m *Model) SetBatchSize(batchSize int) {
	if m.batchSize == batchSize {
		return
	}
	m.batchSize = batchSize
	for _, l := range m.layers {
		l.SetBatchSize(batchSize)
	}
	if m.ctc != nil {
		m.ctc = ctc.New(m.batchSize, m.outputDim, 0)
	}
}

// SetLossFunction changes the loss function of a compiled, possibly
// trained, model so it can be trained further under a different
// criterion. Only the switch from cross-entropy to ctc is supported.
func (m *Model) SetLossFunction(lossFunc string) error {
	if strings.ToLower(lossFunc) != "ctc" {
		return fmt.Errorf("cannot switch loss function to %q", lossFunc)
	}
	if m.lossFunc != LossCrossEntropy {
		return errors.New("only switching from cross-entropy to ctc is supported")
	}
	m.lossFunc = LossCTC
	m.ctc = ctc.New(m.batchSize, m.outputDim, 0)
	return nil
}

// resetState clears state carried across batches in every layer.
func (m *Model) resetState() {
	for _, l := range m.layers {
		l.Reset()
	}
}

// forward runs every layer on the batch x and returns each layer's output.
// The returned matrices alias layer buffers.
func (m *Model) forward(x *mat.Matrix, yp []*mat.Matrix) {
	in := x
	for i, l := range m.layers {
		yp[i] = l.Forward(in)
		in = yp[i]
	}
}

// backward propagates the output gradient dy[last] down the stack,
// computing each layer's weight gradients. Each layer's backward consumes
// the forward input of that layer: the previous layer's output, or the
// batch x for the first layer, which receives no input gradient.
func (m *Model) backward(x *mat.Matrix, dy, yp []*mat.Matrix) {
	last := len(m.layers) - 1
	for i := last; i > 0; i-- {
		l := m.layers[i]
		nw := len(l.GradShapes())
		l.Backward(dy[i], yp[i-1], m.grads[i][:nw], dy[i-1])
	}
	l := m.layers[0]
	nw := len(l.GradShapes())
	l.Backward(dy[0], x, m.grads[0][:nw], nil)
}

// update applies one optimizer step to every weight in the model.
func (m *Model) update(lr, wd float32) {
	m.updateCnt++
	for i, l := range m.layers {
		w := l.Weights()
		g := m.grads[i]
		nw := len(w)
		switch m.optimizer {
		case OptimizerLinear:
			for j := range w {
				optim.LinearUpdate(w[j].Data, g[j].Data, lr, wd)
			}
		case OptimizerAdamW:
			for j := range w {
				optim.AdamWUpdate(w[j].Data, g[j].Data,
					g[j+nw].Data, g[j+2*nw].Data, lr, wd, m.updateCnt)
			}
		}
	}
}

// batchLoss evaluates the configured loss over the first cnt rows of the
// prediction, accumulates the accuracy numerator, and writes the loss
// gradient into dy. Rows past cnt are padding; their gradient is zeroed so
// they contribute nothing to the weight updates.
func (m *Model) batchLoss(yp, yt, dy *mat.Matrix, cnt int) (loss, match float32) {
	n := m.outputDim
	ypv := &mat.Matrix{Data: yp.Data[:cnt*n], Rows: cnt, Cols: n}
	ytv := &mat.Matrix{Data: yt.Data[:cnt*n], Rows: cnt, Cols: n}
	var dyv *mat.Matrix
	if dy != nil {
		dyv = &mat.Matrix{Data: dy.Data[:cnt*n], Rows: cnt, Cols: n}
	}

	switch m.lossFunc {
	case LossMeanSquareError:
		loss = nn.MeanSquareError(ypv, ytv)
		match = nn.R2Sum(ypv, ytv)
		if dyv != nil {
			nn.MeanSquareErrorGrad(ypv, ytv, dyv)
		}
	case LossCrossEntropy:
		loss = nn.CrossEntropyLoss(ypv, ytv)
		match = nn.MatchSum(ypv, ytv)
		if dyv != nil {
			nn.CrossEntropyGrad(ypv, ytv, dyv)
		}
	case LossCTC:
		loss = m.ctc.Loss(ypv, ytv)
		match = m.ctc.Accuracy(cnt)
		if dyv != nil {
			m.ctc.Gradient(dyv)
		}
	}
	if dy != nil && cnt < dy.Rows {
		clear(dy.Data[cnt*n:])
	}
	return loss, match
}

// Fit trains the model on train, optionally evaluating valid after every
// epoch, and returns the per-epoch loss and accuracy history.
//
// Fit may be called repeatedly to continue training. Normalization
// statistics are recomputed from train on every call. With opts.Final set
// the optimizer state is released afterwards and subsequent Fit calls
// return ErrFinal.
func (m *Model) Fit(train Dataset, valid *Dataset, opts *FitOptions) (*History, error) {
	if !m.compiled {
		return nil, ErrNotCompiled
	}
	if m.final {
		return nil, ErrFinal
	}
	if opts == nil {
		opts = DefaultFitOptions()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	status := &statusPrinter{w: out}

	L := len(m.layers)
	N := m.outputDim
	B := m.batchSize
	D := m.inputDim
	Db := D + btoi(m.addBias)

	if len(train.X)%D != 0 {
		return nil, fmt.Errorf("training data length %d is not a multiple of input dim %d",
			len(train.X), D)
	}
	if train.Y != nil && len(train.Y)%N != 0 {
		return nil, fmt.Errorf("training labels length %d is not a multiple of output dim %d",
			len(train.Y), N)
	}
	mTr := train.NumSamples(D)
	mVd := 0
	if valid != nil {
		mVd = valid.NumSamples(D)
	}

	if m.normalize {
		nn.MeanSdev(train.X, mTr, D, m.mean, m.sdev, !m.addBias)
	}

	bTr := batch.New(train.X, D, train.Y, N, B, train.SeqLens, opts.Shuffle, m.addBias)
	var bVd *batch.Iterator
	if mVd > 0 {
		// Validation data is never shuffled.
		bVd = batch.New(valid.X, D, valid.Y, N, B, valid.SeqLens, false, m.addBias)
	}

	// Per-layer input gradients and layer outputs.
	dy := make([]*mat.Matrix, L)
	yp := make([]*mat.Matrix, L)
	for i, l := range m.layers {
		dy[i] = mat.New(B, l.Units())
	}
	x := mat.New(B, Db)
	yt := mat.New(B, N)

	hist := &History{
		Loss:     make([]float32, opts.Epochs),
		Accuracy: make([]float32, opts.Epochs),
	}
	if mVd > 0 {
		hist.ValLoss = make([]float32, opts.Epochs)
		hist.ValAccuracy = make([]float32, opts.Epochs)
	}

	lr := opts.LearningRate
	wd := opts.WeightDecay
	if opts.Verbose > 0 {
		fmt.Fprintln(out)
	}
	start := time.Now()

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		var loss, matchCnt float32
		sampleCnt := 0

		if opts.Schedule != nil {
			lr, wd = epochParams(opts.Schedule, epoch, opts.LearningRate, opts.WeightDecay)
		}

		bTr.Shuffle(m.g)
		m.resetState()
		for {
			cnt := bTr.Copy(x.Data, yt.Data)
			if cnt == 0 {
				break
			}
			if m.normalize {
				nn.Normalize(x.Data, B, Db, m.mean, m.sdev, true)
			}
			m.forward(x, yp)
			sampleCnt += cnt

			// Only the real samples of a short batch contribute to the
			// loss and gradients.
			bl, bm := m.batchLoss(yp[L-1], yt, dy[L-1], cnt)
			loss += bl
			matchCnt += bm
			m.backward(x, dy, yp)
			if opts.Verbose > 0 {
				status.print(epoch+1, opts.Epochs, progress(B, sampleCnt, mTr),
					time.Since(start).Seconds(),
					loss/float32(sampleCnt), matchCnt/float32(sampleCnt), -1, -1)
			}
			m.update(lr, wd)
			if cnt < B {
				m.resetState()
			}
		}
		loss /= float32(sampleCnt)
		accuracy := matchCnt / float32(sampleCnt)
		if opts.Verbose > 0 {
			status.print(epoch+1, opts.Epochs, fullProgress(B, mTr),
				time.Since(start).Seconds(), loss, accuracy, -1, -1)
		}
		hist.Loss[epoch] = loss
		hist.Accuracy[epoch] = accuracy

		if mVd > 0 {
			var vLoss, vMatchCnt float32
			vSampleCnt := 0

			bVd.Shuffle(m.g) // rewinds only; validation order is fixed
			m.resetState()
			for {
				cnt := bVd.Copy(x.Data, yt.Data)
				if cnt == 0 {
					break
				}
				if m.normalize {
					nn.Normalize(x.Data, B, Db, m.mean, m.sdev, true)
				}
				m.forward(x, yp)
				vSampleCnt += cnt

				bl, bm := m.batchLoss(yp[L-1], yt, nil, cnt)
				vLoss += bl
				vMatchCnt += bm
				if opts.Verbose > 0 {
					status.print(epoch+1, opts.Epochs, progress(B, vSampleCnt, mVd),
						time.Since(start).Seconds(), loss, accuracy,
						vLoss/float32(vSampleCnt), vMatchCnt/float32(vSampleCnt))
				}
				// Validation batches are independent observations of the
				// model; recurrent state never carries between them.
				m.resetState()
			}
			vLoss /= float32(vSampleCnt)
			vAccuracy := vMatchCnt / float32(vSampleCnt)
			if opts.Verbose > 0 {
				status.print(epoch+1, opts.Epochs, fullProgress(B, mVd),
					time.Since(start).Seconds(), loss, accuracy, vLoss, vAccuracy)
			}
			hist.ValLoss[epoch] = vLoss
			hist.ValAccuracy[epoch] = vAccuracy
		}
		if opts.Verbose > 1 {
			fmt.Fprintln(out)
		}
	}

	if opts.Final {
		m.final = true
		m.grads = nil
	}
	if opts.Verbose > 0 {
		fmt.Fprintln(out)
	}
	return hist, nil
}

// Predict runs the model on the samples in x and writes the predictions to
// y. x holds len(x)/InputDim samples; y must hold as many rows of
// OutputDim columns. Layer state is reset first, then samples are
// processed in order, so sequential data predicts the way it trained.
func (m *Model) Predict(x, y []float32) error {
	if !m.compiled {
		return ErrNotCompiled
	}
	D := m.inputDim
	N := m.outputDim
	B := m.batchSize
	Db := D + btoi(m.addBias)
	if len(x)%D != 0 {
		return fmt.Errorf("input length %d is not a multiple of input dim %d", len(x), D)
	}
	num := len(x) / D
	if len(y) < num*N {
		return fmt.Errorf("output buffer holds %d values, need %d", len(y), num*N)
	}

	xb := mat.New(B, Db)
	yp := make([]*mat.Matrix, len(m.layers))
	b := batch.New(x, D, nil, 0, B, nil, false, m.addBias)
	m.resetState()
	pos := 0
	for {
		cnt := b.Copy(xb.Data, nil)
		if cnt == 0 {
			break
		}
		if m.normalize {
			nn.Normalize(xb.Data, B, Db, m.mean, m.sdev, true)
		}
		m.forward(xb, yp)
		out := yp[len(yp)-1]
		copy(y[pos:pos+cnt*N], out.Data[:cnt*N])
		pos += cnt * N
	}
	return nil
}

// progress returns the percent of samples consumed, or -1 when the whole
// data set fits in one batch and a percentage is meaningless.
func progress(batchSize, done, total int) int {
	if batchSize >= total {
		return -1
	}
	return done * 100 / total
}

func fullProgress(batchSize, total int) int {
	if batchSize >= total {
		return -1
	}
	return 100
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
