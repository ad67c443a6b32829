package mixengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLimiterClampsToThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.Float64Range(0.1, 1.0).Draw(rt, "threshold")
		n := rapid.IntRange(1, 256).Draw(rt, "n")
		samples := make([]float32, n)
		for i := range samples {
			samples[i] = float32(rapid.Float64Range(-3, 3).Draw(rt, "sample"))
		}

		lim := Limiter{Enabled: true, Threshold: threshold}
		lim.apply(samples)

		for _, s := range samples {
			assert.LessOrEqual(t, float64(s), threshold+1e-6)
			assert.GreaterOrEqual(t, float64(s), -threshold-1e-6)
		}
	})
}

func TestLimiterDisabledPassesThrough(t *testing.T) {
	lim := Limiter{Enabled: false, Threshold: 0.5}
	samples := []float32{2, -2, 0.1}
	clipped := lim.apply(samples)
	assert.Equal(t, 0, clipped)
	assert.Equal(t, []float32{2, -2, 0.1}, samples)
}

func TestLimiterPreservesSign(t *testing.T) {
	lim := Limiter{Enabled: true, Threshold: 0.8}
	samples := []float32{1.5, -1.5}
	lim.apply(samples)
	assert.Equal(t, float32(0.8), samples[0])
	assert.Equal(t, float32(-0.8), samples[1])
}
