package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFitOptions(t *testing.T) {
	opts := DefaultFitOptions()
	assert.True(t, opts.Shuffle)
	assert.Equal(t, 0, opts.Epochs)
	assert.Nil(t, opts.Schedule)
}

func TestParseSchedule(t *testing.T) {
	phases, err := ParseSchedule("10:0.01:0.001,40:0.001")
	require.NoError(t, err)
	require.Len(t, phases, 2)
	assert.Equal(t, SchedulePhase{Epochs: 10, LearningRate: 0.01, WeightDecay: 0.001}, phases[0])
	assert.Equal(t, SchedulePhase{Epochs: 40, LearningRate: 0.001, WeightDecay: -1}, phases[1])
}

func TestParseScheduleOmittedFields(t *testing.T) {
	phases, err := ParseSchedule("5::0.1")
	require.NoError(t, err)
	require.Len(t, phases, 1)
	assert.Equal(t, SchedulePhase{Epochs: 5, LearningRate: -1, WeightDecay: 0.1}, phases[0])

	phases, err = ParseSchedule("7")
	require.NoError(t, err)
	require.Len(t, phases, 1)
	assert.Equal(t, SchedulePhase{Epochs: 7, LearningRate: -1, WeightDecay: -1}, phases[0])
}

func TestParseScheduleSkipsEmptyParts(t *testing.T) {
	phases, err := ParseSchedule("")
	require.NoError(t, err)
	assert.Nil(t, phases)

	phases, err = ParseSchedule("3:0.1,,")
	require.NoError(t, err)
	assert.Len(t, phases, 1)
}

func TestParseScheduleErrors(t *testing.T) {
	for _, s := range []string{"x:1", "1:y", "1:2:z"} {
		_, err := ParseSchedule(s)
		assert.Error(t, err, "schedule %q", s)
	}
}

func TestEpochParamsCumulative(t *testing.T) {
	schedule := []SchedulePhase{
		{Epochs: 5, LearningRate: 0.1, WeightDecay: -1},
		{Epochs: 5, LearningRate: -1, WeightDecay: 0.01},
	}

	lr, wd := epochParams(schedule, 0, 0.5, 0.05)
	assert.Equal(t, float32(0.1), lr, "first phase overrides the learning rate")
	assert.Equal(t, float32(0.05), wd, "unset decay inherits the default")

	lr, wd = epochParams(schedule, 6, 0.5, 0.05)
	assert.Equal(t, float32(0.1), lr, "second phase inherits the first phase's rate")
	assert.Equal(t, float32(0.01), wd)

	lr, wd = epochParams(schedule, 20, 0.5, 0.05)
	assert.Equal(t, float32(0.1), lr, "last phase persists past the schedule")
	assert.Equal(t, float32(0.01), wd)
}
