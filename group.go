package mixengine

import (
	"sync"

	"github.com/google/uuid"
)

// Group is an ordered collection of sources sharing a volume fade,
// solo/mute state, and an ordered effect chain (spec.md §4, §4.3). A
// group's rendered block feeds into exactly one bus.
type Group struct {
	mu sync.Mutex

	id      string
	sources []Source

	volume       float64
	volumeFrom   float64
	volumeTarget float64
	volumeRamp   ramp
	rate         int

	effects []Effect

	solo bool
	mute bool

	scratch *block
}

func newGroup(id string, rate, period int) *Group {
	if id == "" {
		id = uuid.NewString()
	}
	return &Group{
		id:           id,
		rate:         rate,
		volume:       1.0,
		volumeTarget: 1.0,
		scratch:      newBlock(period),
	}
}

func (g *Group) ID() string { return g.id }

func (g *Group) addSource(s Source) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sources = append(g.sources, s)
}

func (g *Group) removeSource(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, s := range g.sources {
		if s.ID() == id {
			g.sources = append(g.sources[:i], g.sources[i+1:]...)
			return true
		}
	}
	return false
}

func (g *Group) findSource(id string) Source {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.sources {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

func (g *Group) listSources() []Source {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Source, len(g.sources))
	copy(out, g.sources)
	return out
}

func (g *Group) addEffect(e Effect) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.effects = append(g.effects, e)
}

func (g *Group) removeEffect(index int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if index < 0 || index >= len(g.effects) {
		return false
	}
	g.effects = append(g.effects[:index], g.effects[index+1:]...)
	return true
}

func (g *Group) SetVolume(v, fade float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 2.0 {
		v = 2.0
	}
	if fade > 0 {
		g.volumeFrom = g.currentVolume()
		g.volumeTarget = v
		g.volumeRamp = newRamp(secondsToSamples(fade, g.rate))
	} else {
		g.volume = v
		g.volumeTarget = v
		g.volumeRamp = newRamp(0)
	}
}

func (g *Group) SetSolo(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.solo = on
}

func (g *Group) SetMute(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mute = on
}

func (g *Group) currentVolume() float64 {
	if g.volumeRamp.total == 0 {
		return g.volume
	}
	return g.volumeFrom + (g.volumeTarget-g.volumeFrom)*g.volumeRamp.fraction()
}

// render sums every source's contribution into g.scratch, applies the
// group's own effect chain and fade-ramped volume, and returns the
// scratch block. audible reports whether the caller (the mixer's
// solo-dominance pass) should include this group's output at all.
func (g *Group) render(period int, audible bool) *block {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.scratch.zero()
	if !audible || g.mute {
		g.volumeRamp.advance(period)
		if g.volumeRamp.done() {
			g.volume = g.volumeTarget
		}
		for _, s := range g.sources {
			// still advance playback cursors even when silenced, so a
			// muted group's sources stay in sync when later unmuted.
			s.render(g.scratch, period)
		}
		g.scratch.zero()
		return g.scratch
	}

	for _, s := range g.sources {
		s.render(g.scratch, period)
	}

	for _, e := range g.effects {
		applyEffect(e, g.scratch, period)
	}

	vol := g.currentVolume()
	g.volumeRamp.advance(period)
	if g.volumeRamp.done() {
		g.volume = g.volumeTarget
	}

	scale := float32(vol)
	for i := range g.scratch.L {
		g.scratch.L[i] *= scale
		g.scratch.R[i] *= scale
	}
	return g.scratch
}

// applyEffect advances a modulable effect's parameter ramp once per
// block, then applies it to both channels independently (spec.md §4.3).
func applyEffect(e Effect, b *block, period int) {
	if m, ok := e.(ModulableEffect); ok {
		m.AdvanceRamp(period)
	}
	e.Apply(0, b.L)
	e.Apply(1, b.R)
}
