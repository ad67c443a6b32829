package mixengine

import (
	"math"
	"math/rand"
)

// InMemorySource holds a fully decoded stereo signal in a fixed-length
// frame buffer, pre-converted to float32, downmixed to at most stereo,
// and peak-normalized once at load time if the source peak exceeded
// 1.0 (normalization is sticky: applied once, never re-evaluated).
type InMemorySource struct {
	baseSource
	left  []float32
	right []float32
}

// newInMemorySource builds a source over already-decoded, downmixed
// frames. It normalizes in place if needed, satisfying the "peak
// normalized if the loaded peak exceeded 1.0" invariant.
func newInMemorySource(id string, rate, period int, left, right []float32) *InMemorySource {
	length := int64(len(left))
	src := &InMemorySource{
		baseSource: newBaseSource(id, rate, period, length),
		left:       left,
		right:      right,
	}
	normalizeIfClipping(src.left, src.right)
	src.baseSource.provider = src
	return src
}

func normalizeIfClipping(l, r []float32) {
	var peak float32
	for _, s := range l {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	for _, s := range r {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak <= 1.0 || peak == 0 {
		return
	}
	scale := 1.0 / peak
	for i := range l {
		l[i] *= scale
	}
	for i := range r {
		r[i] *= scale
	}
}

func (s *InMemorySource) frameAt(n int64) (l, r float32) {
	if n < 0 || n >= int64(len(s.left)) {
		return 0, 0
	}
	return s.left[n], s.right[n]
}

func (s *InMemorySource) totalFrames() int64 { return int64(len(s.left)) }

func (s *InMemorySource) render(dst *block, period int) { s.baseSource.render(dst, period) }

// generateSineWave synthesizes a mono-to-stereo sine tone of the given
// frequency, duration, and amplitude at the engine rate, using the
// shared sine lookup table so generation costs no math.Sin calls.
func generateSineWave(id string, rate, period int, freq, durationSeconds, amplitude float64) *InMemorySource {
	n := int(math.Round(durationSeconds * float64(rate)))
	left := make([]float32, n)
	right := make([]float32, n)
	phaseInc := float32(2 * math.Pi * freq / float64(rate))
	var phase float32
	for i := 0; i < n; i++ {
		v := lutSin(phase) * float32(amplitude)
		left[i] = v
		right[i] = v
		phase += phaseInc
	}
	return newInMemorySource(id, rate, period, left, right)
}

// generateWhiteNoise synthesizes amplitude-scaled uniform white noise
// of the given duration.
func generateWhiteNoise(id string, rate, period int, durationSeconds, amplitude float64) *InMemorySource {
	n := int(math.Round(durationSeconds * float64(rate)))
	left := make([]float32, n)
	right := make([]float32, n)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		left[i] = (rng.Float32()*2 - 1) * float32(amplitude)
		right[i] = (rng.Float32()*2 - 1) * float32(amplitude)
	}
	return newInMemorySource(id, rate, period, left, right)
}
