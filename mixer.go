package mixengine

import (
	"context"
	"time"
)

// mixLoop drives one mixPeriod call per period duration until ctx is
// canceled. It is the sole writer of s.master into the handoff queue
// (spec.md §4.4, §4.5).
func (s *System) mixLoop(ctx context.Context) error {
	periodDuration := time.Duration(float64(s.period) / float64(s.rate) * float64(time.Second))
	ticker := time.NewTicker(periodDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.running() {
				s.mixPeriod()
			} else {
				s.master.zero()
			}

			select {
			case b := <-s.free:
				copy(b.L, s.master.L)
				copy(b.R, s.master.R)
				select {
				case s.queue <- b:
				case <-ctx.Done():
					return nil
				}
			default:
				s.metrics.recordUnderrun()
				s.logger.Warn("mixer outran handoff queue, dropping period")
			}
		}
	}
}

// mixPeriod implements the per-period routing walk of spec.md §4.4:
// solo dominance at bus level, then per-bus solo dominance at group
// level (handled inside Bus/Group.render), aux sends, master scaling,
// and the limiter.
func (s *System) mixPeriod() {
	start := time.Now()

	s.mu.Lock()
	buses := make([]*Bus, len(s.mainBuses))
	copy(buses, s.mainBuses)
	auxBuses := make(map[string]*Bus, len(s.auxBuses))
	for k, v := range s.auxBuses {
		auxBuses[k] = v
	}
	masterVolume := s.masterVolume
	limiter := s.limiter
	period := s.period
	s.mu.Unlock()

	s.master.zero()
	for _, ab := range auxBuses {
		ab.sendAccum.zero()
	}

	anySoloBus := false
	for _, b := range buses {
		if b.solo {
			anySoloBus = true
			break
		}
	}

	for _, b := range buses {
		audible := !anySoloBus || b.solo
		groupAudible := groupAudibilityFor(b)

		bb := b.render(period, audible, groupAudible)
		s.master.addScaled(bb, 1)

		sends, sendBlock := b.snapshotSends()
		for auxID, level := range sends {
			if ab, ok := auxBuses[auxID]; ok {
				ab.sendAccum.addScaled(sendBlock, float32(level))
			}
		}
	}

	for _, ab := range auxBuses {
		ab.mu.Lock()
		ab.scratch.zero()
		ab.scratch.addScaled(ab.sendAccum, 1)
		for _, e := range ab.effects {
			applyEffect(e, ab.scratch, period)
		}
		vol := ab.currentVolume()
		ab.volumeRamp.advance(period)
		if ab.volumeRamp.done() {
			ab.volume = ab.volumeTarget
		}
		scale := float32(vol)
		if ab.mute {
			scale = 0
		}
		for i := range ab.scratch.L {
			ab.scratch.L[i] *= scale
			ab.scratch.R[i] *= scale
		}
		s.master.addScaled(ab.scratch, 1)
		ab.mu.Unlock()
	}

	scale := float32(masterVolume)
	for i := range s.master.L {
		s.master.L[i] *= scale
		s.master.R[i] *= scale
	}

	s.preClipPeak[0] = peakOf(s.master.L)
	s.preClipPeak[1] = peakOf(s.master.R)

	limiter.apply(s.master.L)
	limiter.apply(s.master.R)

	periodDuration := time.Duration(float64(period) / float64(s.rate) * float64(time.Second))
	s.metrics.update(s.master.L, s.master.R, s.preClipPeak[0], s.preClipPeak[1], time.Since(start), periodDuration)
}

// groupAudibilityFor computes, once per bus per period, whether any
// group within that bus is soloed, and returns a closure answering
// per-group audibility against that dominance (spec.md §4.4).
func groupAudibilityFor(b *Bus) func(id string) bool {
	b.mu.Lock()
	anySolo := false
	for _, g := range b.groups {
		if g.solo {
			anySolo = true
			break
		}
	}
	groups := make([]*Group, len(b.groups))
	copy(groups, b.groups)
	b.mu.Unlock()

	return func(id string) bool {
		if !anySolo {
			return true
		}
		for _, g := range groups {
			if g.ID() == id {
				return g.solo
			}
		}
		return false
	}
}
