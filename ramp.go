package mixengine

import "math"

// secondsToSamples converts a duration in seconds to a frame count at
// the given sample rate. Fade and ramp windows are always derived from
// the engine's configured rate, never a historical hard-coded constant.
func secondsToSamples(seconds float64, rate int) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(rate)))
}

// ramp is a block-boundary-safe cosine interpolation window shared by
// volume fades and modulable-effect parameter ramps. It tracks only a
// sample count and a counter; the caller supplies the from/to values at
// read time, so one ramp can drive several parameters moving in lock
// step (as a modulable effect's update_params does).
type ramp struct {
	total   int
	counter int
}

// newRamp starts a ramp of the given length in samples. A non-positive
// length means "no ramp" — fraction() always reports complete.
func newRamp(totalSamples int) ramp {
	if totalSamples < 0 {
		totalSamples = 0
	}
	return ramp{total: totalSamples}
}

// advance moves the ramp forward by n samples (a mixer period's worth),
// clamped to the ramp's length.
func (r *ramp) advance(n int) {
	if r.total <= 0 {
		return
	}
	r.counter += n
	if r.counter > r.total {
		r.counter = r.total
	}
}

// done reports whether the ramp has reached its target.
func (r ramp) done() bool {
	return r.total <= 0 || r.counter >= r.total
}

// fraction returns the cosine-eased progress in [0, 1]: t = 0.5(1 -
// cos(pi * counter/total)).
func (r ramp) fraction() float64 {
	if r.total <= 0 || r.counter >= r.total {
		return 1
	}
	t := float64(r.counter) / float64(r.total)
	return 0.5 * (1 - math.Cos(math.Pi*t))
}

// lerp applies the ramp's current fraction to interpolate between from
// and to.
func (r ramp) lerp(from, to float64) float64 {
	if r.done() {
		return to
	}
	f := r.fraction()
	return from + (to-from)*f
}

// cosineFrac is the free-function form of ramp.fraction, used where a
// per-sample curve is computed from an explicit (counter, total) pair
// rather than through a ramp value (baseSource's per-sample volume
// curve advances counter faster than once per call).
func cosineFrac(counter, total int) float64 {
	if total <= 0 || counter >= total {
		return 1
	}
	if counter < 0 {
		counter = 0
	}
	t := float64(counter) / float64(total)
	return 0.5 * (1 - math.Cos(math.Pi*t))
}
