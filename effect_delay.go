package mixengine

// maxDelaySeconds bounds the feedback delay line's allocation; delay_time
// beyond this is clamped rather than reallocated on the hot path.
const maxDelaySeconds = 2.0

// Delay is a single persistent feedback delay line per channel
// (spec.md §4.3): wet = delayed tap, fed back into the line scaled by
// feedback, mixed against the dry signal by wet_level.
type Delay struct {
	modulable

	delayTime, delayTimeFrom, delayTimeTarget float64
	wetLevel, wetLevelFrom, wetLevelTarget    float64
	feedback, feedbackFrom, feedbackTarget    float64

	line [2][]float32
	pos  [2]int
}

func NewDelay(rate int) *Delay {
	maxFrames := int(float64(rate) * maxDelaySeconds)
	d := &Delay{
		modulable: newModulable(rate),
		delayTime: 0.3, delayTimeTarget: 0.3,
		wetLevel: 0.5, wetLevelTarget: 0.5,
		feedback: 0.3, feedbackTarget: 0.3,
	}
	d.line[0] = make([]float32, maxFrames)
	d.line[1] = make([]float32, maxFrames)
	return d
}

func (d *Delay) UpdateParams(target map[string]float64, seconds float64) {
	d.delayTimeFrom, d.wetLevelFrom, d.feedbackFrom = d.delayTime, d.wetLevel, d.feedback
	if v, ok := target["delay_time"]; ok {
		d.delayTimeTarget = v
	}
	if v, ok := target["wet_level"]; ok {
		d.wetLevelTarget = v
	}
	if v, ok := target["feedback"]; ok {
		d.feedbackTarget = v
	}
	d.beginRamp(seconds)
}

func (d *Delay) AdvanceRamp(period int) {
	d.advance(period)
	d.delayTime = d.r.lerp(d.delayTimeFrom, d.delayTimeTarget)
	d.wetLevel = d.r.lerp(d.wetLevelFrom, d.wetLevelTarget)
	d.feedback = d.r.lerp(d.feedbackFrom, d.feedbackTarget)
}

func (d *Delay) Params() map[string]float64 {
	return map[string]float64{
		"delay_time": d.delayTime,
		"wet_level":  d.wetLevel,
		"feedback":   d.feedback,
	}
}

func (d *Delay) Apply(ch int, samples []float32) {
	line := d.line[ch]
	taps := int(d.delayTime * float64(d.rate))
	if taps < 1 {
		taps = 1
	}
	if taps >= len(line) {
		taps = len(line) - 1
	}

	for n, x := range samples {
		readPos := d.pos[ch] - taps
		if readPos < 0 {
			readPos += len(line)
		}
		delayed := line[readPos]

		line[d.pos[ch]] = x + delayed*float32(d.feedback)
		d.pos[ch] = (d.pos[ch] + 1) % len(line)

		samples[n] = x + delayed*float32(d.wetLevel)
	}
}
