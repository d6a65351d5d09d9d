// Copyright 2025 Lattice ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the neural network layers of the lattice training
// engine: fully connected dense layers and recurrent LSTM layers.
//
// Layers are created detached, knowing only their unit count and
// activation. Adding them to a model and compiling it fixes their input
// dimension and batch size and initializes their weights:
//
//	m := model.New(model.Config{BatchSize: 16, InputDim: 4, AddBias: true})
//	m.Add(nn.NewLSTM(32, "sigmoid", true))
//	m.Add(nn.NewDense(3, "softmax"))
//	m.Compile("cross-entropy", "adamw")
package nn

import "github.com/lattice-ml/lattice/internal/nn"

// Layer is the interface satisfied by every layer variant.
type Layer = nn.Layer

// Dense is a fully connected feed-forward layer.
type Dense = nn.Dense

// LSTM is a four-gate recurrent layer that unrolls over the rows of each
// batch, treating the batch axis as the time axis.
type LSTM = nn.LSTM

// Activation identifies a layer's nonlinearity.
type Activation = nn.Activation

// NewDense creates a dense layer with the given number of units.
//
// activation is one of "none", "sigmoid", "relu" or "softmax"; an invalid
// name panics.
//
// Example:
//
//	hidden := nn.NewDense(64, "relu")
//	output := nn.NewDense(1, "none")
func NewDense(units int, activation string) *Dense {
	return nn.NewDense(units, activation)
}

// NewLSTM creates an LSTM layer with the given number of units.
//
// activation applies to the forget, input and output gates; the cell
// candidate always uses tanh. A stateful layer carries its hidden and cell
// state from one batch to the next, treating consecutive batches as one
// continuous sequence.
//
// Example:
//
//	recurrent := nn.NewLSTM(32, "sigmoid", true)
func NewLSTM(units int, activation string, stateful bool) *LSTM {
	return nn.NewLSTM(units, activation, stateful)
}
