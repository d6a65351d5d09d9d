package nn

import (
	"fmt"
	"math"

	"github.com/lattice-ml/lattice/internal/mat"
	"github.com/lattice-ml/lattice/internal/rng"
)

// Dense is a fully connected feed-forward layer.
//
// Forward computes h = activation(X @ Wx), where X is [batchSize][inputDim]
// and Wx is [inputDim][units]. The input dimension includes the bias column
// when the surrounding model adds one; there is no separate bias vector.
type Dense struct {
	units     int
	inputDim  int
	batchSize int
	act       Activation

	wx *mat.Matrix // [inputDim][units]
	h  *mat.Matrix // [batchSize][units]
}

// NewDense creates a detached dense layer with the given unit count.
//
// activation must be one of "none", "sigmoid", "relu" or "softmax";
// any other name panics, since a misspelled activation is a programming
// error that would otherwise surface as silent mistraining.
func NewDense(units int, activation string) *Dense {
	act, err := ParseActivation(activation)
	if err != nil {
		panic(fmt.Sprintf("nn.NewDense: %v", err))
	}
	return &Dense{units: units, act: act}
}

// RestoreDense creates a dense layer with the given dimensions and zeroed
// weights, ready to be filled by deserialization.
func RestoreDense(inputDim, units, batchSize int, act Activation) *Dense {
	return &Dense{
		units:     units,
		inputDim:  inputDim,
		batchSize: batchSize,
		act:       act,
		wx:        mat.New(inputDim, units),
		h:         mat.New(batchSize, units),
	}
}

// Init allocates the layer's buffers and initializes the weights from a
// Glorot normal distribution.
func (l *Dense) Init(inputDim, batchSize int, g *rng.Source) {
	l.inputDim = inputDim
	l.batchSize = batchSize
	l.wx = mat.New(inputDim, l.units)
	l.h = mat.New(batchSize, l.units)

	scale := float32(math.Sqrt(2.0 / float64(inputDim+l.units)))
	for i := range l.wx.Data {
		l.wx.Data[i] = g.Normal(0.0, scale)
	}
}

// SetBatchSize resizes the hidden-state buffer. No-op on a detached layer.
func (l *Dense) SetBatchSize(batchSize int) {
	if l.batchSize == 0 {
		return
	}
	if batchSize != l.batchSize {
		l.batchSize = batchSize
		l.h = mat.New(batchSize, l.units)
	} else {
		l.h.Zero()
	}
}

// Reset is a no-op; dense layers carry no state across batches.
func (l *Dense) Reset() {}

// Forward computes h = activation(X @ Wx) into the layer's hidden buffer
// and returns it.
func (l *Dense) Forward(x *mat.Matrix) *mat.Matrix {
	mat.MatMul(l.h.Data, x.Data, l.wx.Data, l.batchSize, l.inputDim, l.units)
	l.act.Apply(l.h)
	return l.h
}

// Backward computes the weight gradient gWx = Xᵀ @ dy into grads[0]
// (overwriting it) and, if dx is non-nil, the input gradient
// dx = (dy @ Wxᵀ) ⊙ activation'(X).
//
// The activation derivative is evaluated on the layer's input X, which for
// every layer past the first is the previous layer's activated output.
func (l *Dense) Backward(dy, x *mat.Matrix, grads []*mat.Matrix, dx *mat.Matrix) {
	mat.TMatMul(grads[0].Data, x.Data, dy.Data, l.inputDim, l.batchSize, l.units)
	if dx != nil {
		mat.MatMulT(dx.Data, dy.Data, l.wx.Data, l.batchSize, l.units, l.inputDim)
		l.act.MulDerivative(dx, x)
	}
}

// Units returns the layer's output dimension.
func (l *Dense) Units() int { return l.units }

// InputDim returns the layer's input dimension.
func (l *Dense) InputDim() int { return l.inputDim }

// BatchSize returns the layer's current batch size.
func (l *Dense) BatchSize() int { return l.batchSize }

// Activation returns the layer's activation.
func (l *Dense) Activation() Activation { return l.act }

// Weights returns the weight matrix.
func (l *Dense) Weights() []*mat.Matrix { return []*mat.Matrix{l.wx} }

// GradShapes returns the shape of the single weight-gradient buffer.
func (l *Dense) GradShapes() [][2]int {
	return [][2]int{{l.inputDim, l.units}}
}
