package mixengine

// reverbTapFrames are the fixed comb-filter delays in frames, per
// spec.md §4.3.
var reverbTapFrames = [3]int{1323, 2205, 3087}

// Reverb is a modulable effect with three fixed-delay comb taps summed
// against a dry/wet mix. spec.md §4.3 as written indexes the taps
// modulo the current block, truncating the tail at every block
// boundary; §9's design note calls that out as a known simplification
// and directs a correct implementation to promote the tap delay lines
// to persistent per-effect ring buffers instead, which is what this
// does — the parameter contract (room_size, damping, wet_level,
// dry_level, cosine-ramped) is unchanged, only the tap memory now
// survives across blocks.
type Reverb struct {
	modulable

	roomSize, roomSizeFrom, roomSizeTarget float64
	damping, dampingFrom, dampingTarget    float64
	wetLevel, wetLevelFrom, wetLevelTarget float64
	dryLevel, dryLevelFrom, dryLevelTarget float64

	taps [3]reverbTap
}

type reverbTap struct {
	lines [2][]float32 // per-channel delay line
	pos   [2]int
}

// NewReverb constructs a reverb with default unity dry / no wet mix.
func NewReverb(rate int) *Reverb {
	rv := &Reverb{
		modulable:      newModulable(rate),
		roomSize:       1,
		roomSizeTarget: 1,
		damping:        0,
		dampingTarget:  0,
		wetLevel:       0,
		wetLevelTarget: 0,
		dryLevel:       1,
		dryLevelTarget: 1,
	}
	for i, d := range reverbTapFrames {
		rv.taps[i].lines[0] = make([]float32, d)
		rv.taps[i].lines[1] = make([]float32, d)
	}
	return rv
}

func (rv *Reverb) UpdateParams(target map[string]float64, seconds float64) {
	rv.roomSizeFrom, rv.dampingFrom, rv.wetLevelFrom, rv.dryLevelFrom =
		rv.roomSize, rv.damping, rv.wetLevel, rv.dryLevel
	if v, ok := target["room_size"]; ok {
		rv.roomSizeTarget = v
	}
	if v, ok := target["damping"]; ok {
		rv.dampingTarget = v
	}
	if v, ok := target["wet_level"]; ok {
		rv.wetLevelTarget = v
	}
	if v, ok := target["dry_level"]; ok {
		rv.dryLevelTarget = v
	}
	rv.beginRamp(seconds)
}

func (rv *Reverb) AdvanceRamp(period int) {
	rv.advance(period)
	rv.roomSize = rv.r.lerp(rv.roomSizeFrom, rv.roomSizeTarget)
	rv.damping = rv.r.lerp(rv.dampingFrom, rv.dampingTarget)
	rv.wetLevel = rv.r.lerp(rv.wetLevelFrom, rv.wetLevelTarget)
	rv.dryLevel = rv.r.lerp(rv.dryLevelFrom, rv.dryLevelTarget)
}

func (rv *Reverb) Params() map[string]float64 {
	return map[string]float64{
		"room_size": rv.roomSize,
		"damping":   rv.damping,
		"wet_level": rv.wetLevel,
		"dry_level": rv.dryLevel,
	}
}

func (rv *Reverb) Apply(ch int, samples []float32) {
	decay := [3]float64{
		0.6 * (1 - rv.damping),
		0.4 * (1 - rv.damping),
		0.3 * (1 - rv.damping),
	}

	for n := range samples {
		x := samples[n]
		var wet float64
		for k := range rv.taps {
			line := rv.taps[k].lines[ch]
			pos := rv.taps[k].pos[ch]
			delayed := line[pos]
			line[pos] = x
			rv.taps[k].pos[ch] = (pos + 1) % len(line)
			wet += decay[k] * float64(delayed) * rv.roomSize
		}
		samples[n] = float32(rv.dryLevel*float64(x) + rv.wetLevel*wet)
	}
}
