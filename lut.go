package mixengine

import "math"

// Sine lookup table, used by generateSineWave so procedural source
// generation never calls math.Sin per sample. Adapted from the
// teacher's audio_lut.go (which also carried a tanh table for its
// overdrive effect — not needed here, this spec has no soft-clip
// effect, so only the sine table survives).
const (
	sinLUTSize = 8192
	sinLUTMask = sinLUTSize - 1
)

var sinLUT [sinLUTSize]float32

var sinLUTScale = float32(sinLUTSize) / (2 * math.Pi)

func init() {
	for i := 0; i < sinLUTSize; i++ {
		phase := float64(i) * 2 * math.Pi / float64(sinLUTSize)
		sinLUT[i] = float32(math.Sin(phase))
	}
}

// lutSin returns sin(phase) for phase in radians, using the
// precomputed table with linear interpolation between entries.
func lutSin(phase float32) float32 {
	// Normalise phase into [0, 2pi)
	const twoPi = float32(2 * math.Pi)
	phase = float32(math.Mod(float64(phase), float64(twoPi)))
	if phase < 0 {
		phase += twoPi
	}
	idx := phase * sinLUTScale
	i0 := int(idx) & sinLUTMask
	i1 := (i0 + 1) & sinLUTMask
	frac := idx - float32(int(idx))
	return sinLUT[i0] + (sinLUT[i1]-sinLUT[i0])*frac
}
