// Copyright 2025 Lattice ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model builds, trains, stores and restores multi-layer neural
// network models.
//
// A model is assembled from layers, compiled with a loss function and an
// optimizer, trained with Fit and used with Predict:
//
//	m := model.New(model.Config{BatchSize: 8, InputDim: 1, AddBias: true})
//	m.Add(nn.NewLSTM(16, "sigmoid", true))
//	m.Add(nn.NewDense(1, "none"))
//	m.Compile("mean-square-error", "adamw")
//
//	hist, err := m.Fit(model.Dataset{X: x, Y: y}, nil, &model.FitOptions{
//	    Epochs:       50,
//	    LearningRate: 0.01,
//	    WeightDecay:  0.001,
//	    Shuffle:      true,
//	})
//
// Training is deterministic: the same configuration, seed and data always
// produce the same weights.
package model

import (
	"io"

	"github.com/lattice-ml/lattice/internal/model"
)

// Model is a stack of layers trained with a shared loss and optimizer.
type Model = model.Model

// Config carries the fixed properties of a model.
type Config = model.Config

// Dataset is a set of row-major samples with optional targets and
// sequence structure.
type Dataset = model.Dataset

// FitOptions controls a single training run.
type FitOptions = model.FitOptions

// SchedulePhase holds the learning parameters for a span of epochs.
type SchedulePhase = model.SchedulePhase

// History records per-epoch training metrics.
type History = model.History

// Errors reported by training and prediction.
var (
	ErrFinal       = model.ErrFinal
	ErrNotCompiled = model.ErrNotCompiled
)

// New creates an empty model from cfg. Add layers with Add, then call
// Compile before training.
func New(cfg Config) *Model {
	return model.New(cfg)
}

// DefaultFitOptions returns the options used when Fit receives nil.
func DefaultFitOptions() *FitOptions {
	return model.DefaultFitOptions()
}

// ParseSchedule parses a compact schedule string of the form
// "epochs:learning_rate:weight_decay,...".
//
// Example:
//
//	sch, err := model.ParseSchedule("10:0.01:0.001,40:0.001")
//	if err != nil { ... }
//	opts := &model.FitOptions{Epochs: 50, Schedule: sch, Shuffle: true}
func ParseSchedule(s string) ([]SchedulePhase, error) {
	return model.ParseSchedule(s)
}

// Load reads a model from the named file. The returned model can predict
// immediately and, unless it was stored as final, train further.
func Load(filename string) (*Model, error) {
	return model.Load(filename)
}

// Store writes m to the named file in the engine's text format.
func Store(m *Model, filename string) error {
	return model.Store(m, filename)
}

// Read deserializes a model from r.
func Read(r io.Reader) (*Model, error) {
	return model.Read(r)
}

// Write serializes m to w.
func Write(m *Model, w io.Writer) error {
	return model.Write(m, w)
}
