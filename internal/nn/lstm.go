package nn

import (
	"fmt"
	"math"

	"github.com/lattice-ml/lattice/internal/decomp"
	"github.com/lattice-ml/lattice/internal/mat"
	"github.com/lattice-ml/lattice/internal/rng"
)

// LSTM is a four-gate recurrent layer. The batch axis doubles as the time
// axis: row t of the input batch is the sample at time step t, and the cell
// unrolls over the batch rows in order.
//
// The gate buffers f, i and o hold one row per time step. The candidate,
// cell and hidden buffers hold B+1 rows, with row 0 carrying the state at
// time step -1 (the last step of the previous batch when stateful, zeros
// otherwise).
type LSTM struct {
	units     int
	inputDim  int
	batchSize int
	act       Activation
	stateful  bool

	wf, wi, wc, wo *mat.Matrix // input weights [inputDim][units]
	uf, ui, uc, uo *mat.Matrix // recurrent weights [units][units]

	f, i, o  *mat.Matrix // gate buffers [batchSize][units]
	cc, c, h *mat.Matrix // candidate, cell, hidden [batchSize+1][units]
	ph, pc   []float32   // previous batch final hidden and cell state [units]
}

// NewLSTM creates a detached LSTM layer with the given unit count.
//
// activation is applied to the forget, input and output gates; the cell
// candidate always uses tanh. It must be one of "none", "sigmoid", "relu"
// or "softmax"; any other name panics.
//
// When stateful is true the layer carries its hidden and cell state across
// batches until Reset is called, so consecutive batches are treated as one
// continuous sequence.
func NewLSTM(units int, activation string, stateful bool) *LSTM {
	act, err := ParseActivation(activation)
	if err != nil {
		panic(fmt.Sprintf("nn.NewLSTM: %v", err))
	}
	return &LSTM{units: units, act: act, stateful: stateful}
}

// RestoreLSTM creates an LSTM layer with the given dimensions and zeroed
// weights, ready to be filled by deserialization.
func RestoreLSTM(inputDim, units, batchSize int, act Activation, stateful bool) *LSTM {
	l := &LSTM{
		units:     units,
		inputDim:  inputDim,
		batchSize: batchSize,
		act:       act,
		stateful:  stateful,
	}
	l.allocWeights()
	l.allocState()
	return l
}

func (l *LSTM) allocWeights() {
	D, S := l.inputDim, l.units
	l.wf = mat.New(D, S)
	l.wi = mat.New(D, S)
	l.wc = mat.New(D, S)
	l.wo = mat.New(D, S)
	l.uf = mat.New(S, S)
	l.ui = mat.New(S, S)
	l.uc = mat.New(S, S)
	l.uo = mat.New(S, S)
	l.ph = make([]float32, S)
	l.pc = make([]float32, S)
}

func (l *LSTM) allocState() {
	B, S := l.batchSize, l.units
	l.f = mat.New(B, S)
	l.i = mat.New(B, S)
	l.o = mat.New(B, S)
	l.cc = mat.New(B+1, S)
	l.c = mat.New(B+1, S)
	l.h = mat.New(B+1, S)
}

// Init allocates the layer's buffers and initializes its weights: input
// weights from a Glorot normal distribution, recurrent weights drawn
// uniformly and then orthogonalized.
func (l *LSTM) Init(inputDim, batchSize int, g *rng.Source) {
	l.inputDim = inputDim
	l.batchSize = batchSize
	l.allocWeights()
	l.allocState()

	scale := float32(math.Sqrt(2.0 / float64(inputDim+l.units)))
	for _, w := range []*mat.Matrix{l.wf, l.wi, l.wc, l.wo} {
		for i := range w.Data {
			w.Data[i] = g.Normal(0.0, scale)
		}
	}
	scale = float32(math.Sqrt(6.0 / float64(2*l.units)))
	for _, u := range []*mat.Matrix{l.uf, l.ui, l.uc, l.uo} {
		for i := range u.Data {
			u.Data[i] = g.Uniform(-scale, scale)
		}
		decomp.Orthogonalize(u)
	}
}

// SetBatchSize resizes the gate and state buffers. The carried ph/pc state
// is untouched, so a stateful layer continues its sequence across the
// resize. No-op on a detached layer.
func (l *LSTM) SetBatchSize(batchSize int) {
	if l.batchSize == 0 {
		return
	}
	if batchSize != l.batchSize {
		l.batchSize = batchSize
		l.allocState()
	} else {
		l.f.Zero()
		l.i.Zero()
		l.o.Zero()
		l.cc.Zero()
		l.c.Zero()
		l.h.Zero()
	}
}

// Reset clears the hidden and cell state carried across batches.
func (l *LSTM) Reset() {
	clear(l.ph)
	clear(l.pc)
}

// Forward unrolls the cell over the batch rows and returns the hidden
// states h[0..B-1] as a [batchSize][units] view into the layer's buffer.
//
// The final hidden and cell states are saved for the next batch whether or
// not the layer is stateful; a non-stateful layer simply ignores them on
// the next Forward.
func (l *LSTM) Forward(x *mat.Matrix) *mat.Matrix {
	D, S, B := l.inputDim, l.units, l.batchSize

	l.f.Zero()
	l.i.Zero()
	l.o.Zero()
	l.cc.Zero()
	l.c.Zero()
	l.h.Zero()

	// Row t+1 of the B+1 buffers is the state at time step t; row 0 is the
	// state at step -1.
	if l.stateful {
		copy(l.h.Row(0), l.ph)
		copy(l.c.Row(0), l.pc)
	}

	for t := 0; t < B; t++ {
		xt := x.Row(t)
		hprev := l.h.Row(t)
		ft := l.f.Row(t)
		it := l.i.Row(t)
		ot := l.o.Row(t)
		cct := l.cc.Row(t + 1)
		ct := l.c.Row(t + 1)
		ht := l.h.Row(t + 1)
		cprev := l.c.Row(t)

		// f[t] = act(x[t] @ Wf + h[t-1] @ Uf), likewise i[t] and o[t]
		mat.AddVecMatMul(ft, xt, l.wf.Data, D, S)
		mat.AddVecMatMul(ft, hprev, l.uf.Data, S, S)
		l.act.ApplyVec(ft)
		mat.AddVecMatMul(it, xt, l.wi.Data, D, S)
		mat.AddVecMatMul(it, hprev, l.ui.Data, S, S)
		l.act.ApplyVec(it)
		mat.AddVecMatMul(ot, xt, l.wo.Data, D, S)
		mat.AddVecMatMul(ot, hprev, l.uo.Data, S, S)
		l.act.ApplyVec(ot)

		// cc[t] = tanh(x[t] @ Wc + h[t-1] @ Uc)
		mat.AddVecMatMul(cct, xt, l.wc.Data, D, S)
		mat.AddVecMatMul(cct, hprev, l.uc.Data, S, S)
		for j := 0; j < S; j++ {
			cct[j] = tanh32(cct[j])
		}

		// c[t] = f[t]*c[t-1] + i[t]*cc[t];  h[t] = o[t]*tanh(c[t])
		for j := 0; j < S; j++ {
			ct[j] = ft[j]*cprev[j] + it[j]*cct[j]
		}
		for j := 0; j < S; j++ {
			ht[j] = ot[j] * tanh32(ct[j])
		}
	}

	copy(l.ph, l.h.Row(B))
	copy(l.pc, l.c.Row(B))
	return &mat.Matrix{Data: l.h.Data[S:], Rows: B, Cols: S}
}

// Backward runs truncated backpropagation through time over the batch rows,
// accumulating the eight weight gradients into grads in the order
// Wf Wi Wc Wo Uf Ui Uc Uo (grads are cleared first). If dx is non-nil it
// receives the gradient with respect to the input.
//
// The forward pass must have been run on the same batch; the gate and state
// buffers it filled are consumed here. Like Forward, Backward leaves ph/pc
// holding the final time step's state.
func (l *LSTM) Backward(dy, x *mat.Matrix, grads []*mat.Matrix, dx *mat.Matrix) {
	D, S, B := l.inputDim, l.units, l.batchSize

	gWf, gWi, gWc, gWo := grads[0], grads[1], grads[2], grads[3]
	gUf, gUi, gUc, gUo := grads[4], grads[5], grads[6], grads[7]
	for _, g := range grads {
		g.Zero()
	}

	dhNext := make([]float32, S)
	dcNext := make([]float32, S)
	dh := make([]float32, S)
	dc := make([]float32, S)
	df := make([]float32, S)
	di := make([]float32, S)
	dcc := make([]float32, S)
	do_ := make([]float32, S)

	for t := B - 1; t >= 0; t-- {
		xt := x.Row(t)
		hprev := l.h.Row(t)
		ft := l.f.Row(t)
		it := l.i.Row(t)
		ot := l.o.Row(t)
		cct := l.cc.Row(t + 1)
		ct := l.c.Row(t + 1)
		cprev := l.c.Row(t)
		dyt := dy.Row(t)

		for j := 0; j < S; j++ {
			dh[j] = dyt[j] + dhNext[j]
		}

		// Output gate
		for j := 0; j < S; j++ {
			do_[j] = dh[j] * tanh32(ct[j]) * l.act.GateDerivative(ot[j])
		}
		mat.AddOuterMul(gWo.Data, xt, do_, D, S)
		mat.AddOuterMul(gUo.Data, hprev, do_, S, S)

		// Cell state: dc = dh * o[t] * tanh'(c[t]) + dc_next
		for j := 0; j < S; j++ {
			dc[j] = dh[j]*ot[j]*dTanh(ct[j]) + dcNext[j]
		}

		// Candidate; cc[t] is already activated, so use the tanh derivative
		// expressed in terms of the output.
		for j := 0; j < S; j++ {
			dcc[j] = dc[j] * it[j] * dTanhZ(cct[j])
		}
		mat.AddOuterMul(gWc.Data, xt, dcc, D, S)
		mat.AddOuterMul(gUc.Data, hprev, dcc, S, S)

		// Input gate
		for j := 0; j < S; j++ {
			di[j] = dc[j] * cct[j] * l.act.GateDerivative(it[j])
		}
		mat.AddOuterMul(gWi.Data, xt, di, D, S)
		mat.AddOuterMul(gUi.Data, hprev, di, S, S)

		// Forget gate
		for j := 0; j < S; j++ {
			df[j] = dc[j] * cprev[j] * l.act.GateDerivative(ft[j])
		}
		mat.AddOuterMul(gWf.Data, xt, df, D, S)
		mat.AddOuterMul(gUf.Data, hprev, df, S, S)

		// Gradients flowing to the previous time step and layer
		clear(dhNext)
		mat.AddInnerMul(dhNext, df, l.uf.Data, S, S)
		mat.AddInnerMul(dhNext, di, l.ui.Data, S, S)
		mat.AddInnerMul(dhNext, dcc, l.uc.Data, S, S)
		mat.AddInnerMul(dhNext, do_, l.uo.Data, S, S)
		for j := 0; j < S; j++ {
			dcNext[j] = ft[j] * dc[j]
		}
		if dx != nil {
			dxt := dx.Row(t)
			clear(dxt)
			mat.AddInnerMul(dxt, df, l.wf.Data, D, S)
			mat.AddInnerMul(dxt, di, l.wi.Data, D, S)
			mat.AddInnerMul(dxt, dcc, l.wc.Data, D, S)
			mat.AddInnerMul(dxt, do_, l.wo.Data, D, S)
		}
	}

	copy(l.ph, l.h.Row(B))
	copy(l.pc, l.c.Row(B))
}

// Units returns the layer's output dimension.
func (l *LSTM) Units() int { return l.units }

// InputDim returns the layer's input dimension.
func (l *LSTM) InputDim() int { return l.inputDim }

// BatchSize returns the layer's current batch size.
func (l *LSTM) BatchSize() int { return l.batchSize }

// Activation returns the layer's gate activation.
func (l *LSTM) Activation() Activation { return l.act }

// Stateful reports whether state is carried across batches.
func (l *LSTM) Stateful() bool { return l.stateful }

// CarriedState returns the hidden and cell state vectors carried between
// batches. The slices alias the layer's buffers.
func (l *LSTM) CarriedState() (h, c []float32) { return l.ph, l.pc }

// Weights returns the eight weight matrices in serialization order:
// Wf Wi Wc Wo Uf Ui Uc Uo.
func (l *LSTM) Weights() []*mat.Matrix {
	return []*mat.Matrix{l.wf, l.wi, l.wc, l.wo, l.uf, l.ui, l.uc, l.uo}
}

// GradShapes returns the shapes of the eight gradient buffers Backward
// expects, in the same order as Weights.
func (l *LSTM) GradShapes() [][2]int {
	D, S := l.inputDim, l.units
	return [][2]int{
		{D, S}, {D, S}, {D, S}, {D, S},
		{S, S}, {S, S}, {S, S}, {S, S},
	}
}
