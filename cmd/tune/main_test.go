package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kppsim/internal/app/params"
)

func smallPlant(t *testing.T) params.Params {
	t.Helper()
	p, err := params.Defaults().Apply(map[string]any{
		"num_floaters":   4,
		"queue_capacity": 16,
	})
	require.NoError(t, err)
	return p
}

func TestClamp(t *testing.T) {
	assert.Equal(t, minDuration, clamp(-3))
	assert.Equal(t, maxDuration, clamp(99))
	assert.Equal(t, 2.5, clamp(2.5))
}

func TestMeanPower_IsDeterministic(t *testing.T) {
	p := smallPlant(t)
	a, err := meanPower(p, 3, 2, 10)
	require.NoError(t, err)
	b, err := meanPower(p, 3, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTune_StaysInBounds(t *testing.T) {
	best, err := tune(smallPlant(t), 5, 8)
	require.NoError(t, err)
	assert.Positive(t, best.Evaluations)
	assert.GreaterOrEqual(t, best.PulseDuration, minDuration)
	assert.LessOrEqual(t, best.PulseDuration, maxDuration)
	assert.GreaterOrEqual(t, best.CoastDuration, minDuration)
	assert.LessOrEqual(t, best.CoastDuration, maxDuration)
}
