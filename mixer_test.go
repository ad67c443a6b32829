package mixengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testRate = 44100
const testPeriod = 1024

func newTestSystem() *System {
	return NewSystem(testRate, testPeriod)
}

func peakOfBlock(b *block) (float64, float64) {
	return peakOf(b.L), peakOf(b.R)
}

// S1 — silence: no buses at all emits pure-zero blocks.
func TestScenarioSilence(t *testing.T) {
	s := newTestSystem()
	for i := 0; i < 3; i++ {
		s.mixPeriod()
		pl, pr := peakOfBlock(s.master)
		assert.Zero(t, pl)
		assert.Zero(t, pr)
	}
	snap := s.GetMetrics()
	assert.Zero(t, snap.ClipCount)
}

func sineSourceAt(s *System, freq, amp float64) (Source, *Group, *Bus) {
	src := s.GenerateSineWave("", freq, 2.0, amp)
	g := s.CreateGroup("")
	s.AddToGroup(g, src)
	busID := s.CreateBus("")
	s.AddToBus(busID, g)
	src.Play(0)
	return src, g, s.findBus(busID)
}

// S2 — sine playback: steady-state block peak tracks the source amplitude.
func TestScenarioSinePlayback(t *testing.T) {
	s := newTestSystem()
	sineSourceAt(s, 441, 0.5)

	for i := 0; i < 10; i++ {
		s.mixPeriod()
	}
	pl, pr := peakOfBlock(s.master)
	assert.InDelta(t, 0.5, pl, 0.02)
	assert.InDelta(t, 0.5, pr, 0.02)
}

// S3 — fade-in: first block's peak starts near zero and rises monotonically.
func TestScenarioFadeIn(t *testing.T) {
	s := newTestSystem()
	src := s.GenerateSineWave("", 441, 2.0, 0.5)
	g := s.CreateGroup("")
	s.AddToGroup(g, src)
	busID := s.CreateBus("")
	s.AddToBus(busID, g)
	src.Play(0.1)

	var prevPeak float64
	for i := 0; i < 6; i++ {
		s.mixPeriod()
		pl, _ := peakOfBlock(s.master)
		if i == 0 {
			assert.Less(t, pl, 0.5)
		}
		assert.GreaterOrEqual(t, pl+1e-9, prevPeak)
		prevPeak = pl
	}
}

// S4 — mute and solo dominance across two buses.
func TestScenarioMuteAndSolo(t *testing.T) {
	s := newTestSystem()
	_, _, busA := sineSourceAt(s, 220, 0.3)
	_, _, busB := sineSourceAt(s, 880, 0.3)

	for i := 0; i < 3; i++ {
		s.mixPeriod()
	}

	s.SetBusMute(busA.ID(), true)
	s.mixPeriod()
	bOnlyL, _ := peakOfBlock(s.master)
	s.SetBusMute(busA.ID(), false)

	s.SetBusSolo(busA.ID(), true)
	s.mixPeriod()
	aOnlyL, _ := peakOfBlock(s.master)
	assert.NotEqual(t, bOnlyL, aOnlyL)

	s.SetBusSolo(busB.ID(), true)
	s.mixPeriod()
	bothL, _ := peakOfBlock(s.master)
	assert.GreaterOrEqual(t, bothL+1e-6, aOnlyL)
}

// S5 — limiter clip: master volume 3x with a 0.5-amplitude sine must still
// satisfy the limiter bound, and clip_count must increment.
func TestScenarioLimiterClip(t *testing.T) {
	s := newTestSystem()
	sineSourceAt(s, 220, 0.5)
	s.SetMasterVolume(3.0)
	s.SetLimiter(true, 0.95)

	for i := 0; i < 5; i++ {
		s.mixPeriod()
	}
	for _, v := range s.master.L {
		assert.LessOrEqual(t, math.Abs(float64(v)), 0.95+1e-6)
	}
	snap := s.GetMetrics()
	assert.Greater(t, snap.ClipCount, uint64(0))
}

// S6 — send routing: a unity-gain aux send adds a second copy of the dry
// signal into the master.
func TestScenarioSendRouting(t *testing.T) {
	s := newTestSystem()
	_, _, bus := sineSourceAt(s, 220, 0.2)
	auxID := s.AddAuxBus("rev")
	s.AddSend(bus.ID(), auxID, 1.0)

	for i := 0; i < 5; i++ {
		s.mixPeriod()
	}
	pl, _ := peakOfBlock(s.master)
	assert.InDelta(t, 0.4, pl, 0.02)
}

// Property: volume linearity — doubling master_volume doubles every sample.
func TestPropertyVolumeLinearity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newTestSystem()
		s.SetLimiter(false, 1.0)
		sineSourceAt(s, rapid.Float64Range(50, 2000).Draw(rt, "freq"), 0.3)

		v := rapid.Float64Range(0.1, 1.0).Draw(rt, "volume")
		s.SetMasterVolume(v)
		for i := 0; i < 3; i++ {
			s.mixPeriod()
		}
		base := make([]float32, len(s.master.L))
		copy(base, s.master.L)

		s.SetMasterVolume(v * 2)
		s.mixPeriod()
		doubled := s.master.L

		// the two periods aren't the same samples (playback advanced), so
		// compare magnitude of the ratio trend via peak, which scales
		// linearly with volume regardless of waveform phase.
		basePeak := peakOf(base)
		doubledPeak := peakOf(doubled)
		if basePeak > 1e-6 {
			require.InDelta(rt, 2.0, doubledPeak/basePeak, 0.2)
		}
	})
}

// Property: silence invariant — all main buses muted emits pure zero.
func TestPropertyAllMutedIsSilent(t *testing.T) {
	s := newTestSystem()
	_, _, busA := sineSourceAt(s, 300, 0.7)
	_, _, busB := sineSourceAt(s, 900, 0.7)
	s.SetBusMute(busA.ID(), true)
	s.SetBusMute(busB.ID(), true)

	for i := 0; i < 3; i++ {
		s.mixPeriod()
	}
	pl, pr := peakOfBlock(s.master)
	assert.Zero(t, pl)
	assert.Zero(t, pr)
}

// Property: block shape — every produced block is exactly period frames.
func TestPropertyBlockShape(t *testing.T) {
	s := newTestSystem()
	sineSourceAt(s, 440, 0.4)
	s.mixPeriod()
	assert.Len(t, s.master.L, testPeriod)
	assert.Len(t, s.master.R, testPeriod)
}
