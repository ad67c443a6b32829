package mixengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverbZeroWetIsTransparent(t *testing.T) {
	rv := NewReverb(44100)
	rv.UpdateParams(map[string]float64{"wet_level": 0, "dry_level": 1}, 0)
	rv.AdvanceRamp(64)

	in := make([]float32, 64)
	for i := range in {
		in[i] = float32(i) / 64
	}
	got := make([]float32, len(in))
	copy(got, in)
	rv.Apply(0, got)

	assert.InDeltaSlice(t, in, got, 1e-6)
}

func TestReverbTapIsDelayed(t *testing.T) {
	rv := NewReverb(44100)
	rv.UpdateParams(map[string]float64{"wet_level": 1, "dry_level": 0, "damping": 0, "room_size": 1}, 0)
	rv.AdvanceRamp(1)

	tapLen := len(rv.taps[0].lines[0])
	samples := make([]float32, tapLen+10)
	samples[0] = 1
	rv.Apply(0, samples)

	assert.Equal(t, float32(0), samples[0], "no wet contribution before the first tap arrives")
	assert.NotEqual(t, float32(0), samples[tapLen], "the impulse should reappear exactly one tap length later")
}

func TestDelayFeedbackDecays(t *testing.T) {
	d := NewDelay(44100)
	d.UpdateParams(map[string]float64{"delay_time": 0.01, "wet_level": 1, "feedback": 0.5}, 0)
	d.AdvanceRamp(1)

	taps := int(0.01 * 44100)
	samples := make([]float32, taps*3)
	samples[0] = 1
	d.Apply(0, samples)

	first := samples[taps]
	second := samples[taps*2]
	require.NotZero(t, first)
	assert.Less(t, second, first, "feedback-attenuated repeat should be quieter than the first echo")
}

func TestCompressorAttenuatesAboveThreshold(t *testing.T) {
	c := NewCompressor(44100)
	c.UpdateParams(map[string]float64{"threshold": -12, "ratio": 4, "attack": 0, "release": 0.05}, 0)
	c.AdvanceRamp(1)

	samples := make([]float32, 4410)
	for i := range samples {
		samples[i] = 0.9
	}
	c.Apply(0, samples)

	assert.Less(t, samples[len(samples)-1], float32(0.9))
}

func TestEQBandpassUnityGainIsTransparent(t *testing.T) {
	e := NewEQ(44100, FilterBandpass)
	e.UpdateParams(map[string]float64{"frequency": 1000, "q": 0.707, "gain": 0}, 0)
	e.AdvanceRamp(1)

	in := []float32{0.1, 0.2, -0.3, 0.4}
	got := make([]float32, len(in))
	copy(got, in)
	e.Apply(0, got)

	assert.InDeltaSlice(t, in, got, 1e-6)
}
