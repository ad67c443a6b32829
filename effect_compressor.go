package mixengine

import "math"

// Compressor is a per-sample feedforward envelope follower driving a
// soft-knee-free ratio gain reduction above threshold (spec.md §4.3).
// The envelope is tracked per channel so a mono signal panned hard
// left doesn't duck the right channel's independent dynamics.
type Compressor struct {
	modulable

	threshold, thresholdFrom, thresholdTarget float64 // dBFS
	ratio, ratioFrom, ratioTarget              float64
	attack, attackFrom, attackTarget           float64 // seconds
	release, releaseFrom, releaseTarget        float64 // seconds

	envelope [2]float64
}

func NewCompressor(rate int) *Compressor {
	return &Compressor{
		modulable: newModulable(rate),
		threshold: -18, thresholdTarget: -18,
		ratio: 4, ratioTarget: 4,
		attack: 0.01, attackTarget: 0.01,
		release: 0.1, releaseTarget: 0.1,
	}
}

func (c *Compressor) UpdateParams(target map[string]float64, seconds float64) {
	c.thresholdFrom, c.ratioFrom, c.attackFrom, c.releaseFrom =
		c.threshold, c.ratio, c.attack, c.release
	if v, ok := target["threshold"]; ok {
		c.thresholdTarget = v
	}
	if v, ok := target["ratio"]; ok {
		c.ratioTarget = v
	}
	if v, ok := target["attack"]; ok {
		c.attackTarget = v
	}
	if v, ok := target["release"]; ok {
		c.releaseTarget = v
	}
	c.beginRamp(seconds)
}

func (c *Compressor) AdvanceRamp(period int) {
	c.advance(period)
	c.threshold = c.r.lerp(c.thresholdFrom, c.thresholdTarget)
	c.ratio = c.r.lerp(c.ratioFrom, c.ratioTarget)
	c.attack = c.r.lerp(c.attackFrom, c.attackTarget)
	c.release = c.r.lerp(c.releaseFrom, c.releaseTarget)
}

func (c *Compressor) Params() map[string]float64 {
	return map[string]float64{
		"threshold": c.threshold,
		"ratio":     c.ratio,
		"attack":    c.attack,
		"release":   c.release,
	}
}

func (c *Compressor) Apply(ch int, samples []float32) {
	attackCoeff := timeConstantCoeff(c.attack, c.rate)
	releaseCoeff := timeConstantCoeff(c.release, c.rate)
	env := c.envelope[ch]

	for n, x := range samples {
		rectified := math.Abs(float64(x))
		if rectified > env {
			env += (rectified - env) * attackCoeff
		} else {
			env += (rectified - env) * releaseCoeff
		}

		levelDB := linearToDB(env)
		gainDB := 0.0
		if levelDB > c.threshold {
			gainDB = (c.threshold - levelDB) * (1 - 1/c.ratio)
		}
		samples[n] = x * float32(dbToLinear(gainDB))
	}

	c.envelope[ch] = env
}

// timeConstantCoeff converts a seconds-to-63%-settle time constant into
// a per-sample one-pole smoothing coefficient at the given rate.
func timeConstantCoeff(seconds float64, rate int) float64 {
	if seconds <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(seconds*float64(rate)))
}

func linearToDB(v float64) float64 {
	if v <= 0 {
		return -120
	}
	return 20 * math.Log10(v)
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
