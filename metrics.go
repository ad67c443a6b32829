package mixengine

import (
	"math"
	"sync"
	"time"
)

// Metrics holds the observable state of the master block, updated once
// per mixer period and readable from any goroutine.
type Metrics struct {
	mu sync.Mutex

	peak          [2]float64
	rms           [2]float64
	clipCount     uint64
	underrunCount uint64
	cpuPercent    float64
}

// Snapshot is a point-in-time, concurrency-safe copy of Metrics.
type Snapshot struct {
	Peak          [2]float64
	RMS           [2]float64
	ClipCount     uint64
	UnderrunCount uint64
	CPUPercent    float64
}

// peakDecay is the ballistic decay applied to the peak meter each
// block before folding in the new block's peak.
const peakDecay = 0.95

// update folds one master block into the running metrics. l and r are
// the master scratch channels for the block just produced (after
// master scaling and the limiter); preClipL/preClipR are the peak
// magnitudes of that same block as it stood immediately before the
// limiter ran, which is what spec.md §8's clip invariant is defined
// against — a clip is a pre-limiter peak reaching 1.0, not whatever the
// limiter clamped it down to afterward.
func (m *Metrics) update(l, r []float32, preClipL, preClipR float64, mixWall, periodDuration time.Duration) {
	pl, pr := peakOf(l), peakOf(r)
	rl, rr := rmsOf(l), rmsOf(r)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.peak[0] = math.Max(m.peak[0]*peakDecay, pl)
	m.peak[1] = math.Max(m.peak[1]*peakDecay, pr)
	m.rms[0] = rl
	m.rms[1] = rr
	if preClipL >= 1.0 || preClipR >= 1.0 {
		m.clipCount++
	}
	if periodDuration > 0 {
		m.cpuPercent = float64(mixWall) / float64(periodDuration) * 100
	}
}

func (m *Metrics) recordUnderrun() {
	m.mu.Lock()
	m.underrunCount++
	m.mu.Unlock()
}

// snapshot returns a copy of the current metrics.
func (m *Metrics) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Peak:          m.peak,
		RMS:           m.rms,
		ClipCount:     m.clipCount,
		UnderrunCount: m.underrunCount,
		CPUPercent:    m.cpuPercent,
	}
}

// reset zeroes all counters and meters.
func (m *Metrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peak = [2]float64{}
	m.rms = [2]float64{}
	m.clipCount = 0
	m.underrunCount = 0
	m.cpuPercent = 0
}

func peakOf(block []float32) float64 {
	var peak float64
	for _, s := range block {
		a := math.Abs(float64(s))
		if a > peak {
			peak = a
		}
	}
	return peak
}

func rmsOf(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range block {
		v := float64(s)
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(block)))
}
