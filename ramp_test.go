package mixengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRampFractionEndpoints(t *testing.T) {
	r := newRamp(100)
	require.Equal(t, 0.0, r.fraction())
	r.advance(100)
	require.True(t, r.done())
	assert.Equal(t, 1.0, r.fraction())
}

func TestRampZeroLengthIsImmediatelyDone(t *testing.T) {
	r := newRamp(0)
	assert.True(t, r.done())
	assert.Equal(t, 1.0, r.fraction())
}

func TestRampFractionMonotonicNonDecreasing(t *testing.T) {
	r := newRamp(1000)
	prev := -1.0
	for r.counter < r.total {
		f := r.fraction()
		assert.GreaterOrEqual(t, f, prev)
		prev = f
		r.advance(37)
	}
}

func TestSecondsToSamples(t *testing.T) {
	assert.Equal(t, 4410, secondsToSamples(0.1, 44100))
	assert.Equal(t, 0, secondsToSamples(0, 44100))
	assert.Equal(t, 0, secondsToSamples(-1, 44100))
}
