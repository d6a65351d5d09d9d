package model

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FitOptions controls a single Fit run. The zero value is not useful on its
// own; start from DefaultFitOptions. The yaml tags allow training runs to
// be described in configuration files.
type FitOptions struct {
	// Epochs is the number of passes over the training data.
	Epochs int `yaml:"epochs"`

	// LearningRate scales each weight update.
	LearningRate float32 `yaml:"learning_rate"`

	// WeightDecay suppresses weight magnitude. Zero disables decay.
	WeightDecay float32 `yaml:"weight_decay"`

	// Shuffle reorders the training data between epochs. With sequential
	// data, whole sequences are reordered and samples keep their order
	// within each; with non-sequential data, individual samples are
	// permuted.
	Shuffle bool `yaml:"shuffle"`

	// Final releases the gradient and optimizer buffers when training
	// finishes. A final model can predict but not train further.
	Final bool `yaml:"final"`

	// Verbose prints progress to Output: 0 is silent, 1 keeps updating a
	// single status line, 2 and above print one line per epoch.
	Verbose int `yaml:"verbose"`

	// Schedule overrides LearningRate and WeightDecay per epoch range.
	// Phases apply in order; the last phase's values persist past the end
	// of the schedule.
	Schedule []SchedulePhase `yaml:"schedule"`

	// Output receives progress lines when Verbose is nonzero.
	// Defaults to standard output.
	Output io.Writer `yaml:"-"`
}

// SchedulePhase holds the learning parameters for a span of epochs.
type SchedulePhase struct {
	Epochs       int     `yaml:"epochs"`
	LearningRate float32 `yaml:"learning_rate"`
	WeightDecay  float32 `yaml:"weight_decay"`
}

// DefaultFitOptions returns the options used when Fit receives nil:
// shuffling on, no schedule, silent.
func DefaultFitOptions() *FitOptions {
	return &FitOptions{Shuffle: true}
}

// ParseSchedule parses a compact schedule string of the form
// "epochs:learning_rate:weight_decay,..." as in "10:0.01:0.001,40:0.001".
// Learning rate and weight decay may each be omitted to keep the previous
// phase's value.
func ParseSchedule(s string) ([]SchedulePhase, error) {
	var phases []SchedulePhase
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 3)
		e, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("schedule %q: bad epoch count: %w", part, err)
		}
		p := SchedulePhase{Epochs: e, LearningRate: -1, WeightDecay: -1}
		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			lr, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 32)
			if err != nil {
				return nil, fmt.Errorf("schedule %q: bad learning rate: %w", part, err)
			}
			p.LearningRate = float32(lr)
		}
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			wd, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32)
			if err != nil {
				return nil, fmt.Errorf("schedule %q: bad weight decay: %w", part, err)
			}
			p.WeightDecay = float32(wd)
		}
		phases = append(phases, p)
	}
	return phases, nil
}

// epochParams returns the learning rate and weight decay for epoch (0-based)
// under the schedule, starting from the given defaults. Phases apply
// cumulatively: a phase with an unset value inherits from the one before.
func epochParams(schedule []SchedulePhase, epoch int, lr, wd float32) (float32, float32) {
	total := 0
	for _, p := range schedule {
		total += p.Epochs
		if p.LearningRate >= 0 {
			lr = p.LearningRate
		}
		if p.WeightDecay >= 0 {
			wd = p.WeightDecay
		}
		if epoch < total {
			break
		}
	}
	return lr, wd
}
