// Package nn implements the neural network layers and numeric kernels of the
// lattice training engine.
//
// The package provides:
//   - Layer: the interface every layer variant satisfies
//   - Dense: affine transform plus activation
//   - LSTM: four-gate recurrent cell with batch-as-time-axis semantics
//   - Loss functions (mean square error, cross-entropy) and their gradients
//   - Accuracy metrics and input normalization helpers
//
// Layers are created detached, with only their unit count and activation
// fixed; a Model sizes them via Init once the surrounding dimensions are
// known, and resizes them via SetBatchSize.
package nn

import (
	"github.com/lattice-ml/lattice/internal/mat"
	"github.com/lattice-ml/lattice/internal/rng"
)

// Layer is the interface satisfied by every layer variant.
//
// A layer goes through two phases: detached (constructed with units and
// activation only) and initialized (after Init has fixed the input dimension
// and batch size and allocated weight and state buffers). Forward, Backward,
// SetBatchSize and Reset must only be called on an initialized layer.
type Layer interface {
	// Init fixes the layer's input dimension and batch size, allocates its
	// buffers and randomizes its weights using g.
	Init(inputDim, batchSize int, g *rng.Source)

	// SetBatchSize resizes the layer's state buffers for a new batch size,
	// clearing them. Weights are untouched. No-op on a detached layer.
	SetBatchSize(batchSize int)

	// Reset clears any state carried across batches.
	Reset()

	// Forward runs the layer on a batch x of shape [batchSize][inputDim]
	// and returns the layer's output buffer of shape [batchSize][units].
	// The returned matrix aliases layer-owned storage and is overwritten by
	// the next Forward call.
	Forward(x *mat.Matrix) *mat.Matrix

	// Backward computes weight gradients into grads (one matrix per entry
	// of Weights, same order and shapes) from the output gradient dy and
	// the forward input x. If dx is non-nil it receives the gradient with
	// respect to the input.
	Backward(dy, x *mat.Matrix, grads []*mat.Matrix, dx *mat.Matrix)

	// Units returns the layer's output dimension.
	Units() int

	// InputDim returns the layer's input dimension (0 while detached).
	InputDim() int

	// BatchSize returns the layer's current batch size (0 while detached).
	BatchSize() int

	// Activation returns the layer's configured activation.
	Activation() Activation

	// Weights returns the layer's weight matrices in serialization order.
	Weights() []*mat.Matrix

	// GradShapes returns the [rows, cols] shape of each gradient buffer
	// Backward expects, in the same order as Weights.
	GradShapes() [][2]int
}
