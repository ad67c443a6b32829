package mixengine

import (
	"sync"

	"github.com/google/uuid"
)

// Bus sums an ordered set of groups, applies its own effect chain and
// fade-ramped volume, and optionally sends a copy of its post-effect
// signal to one or more aux buses at independent send levels (spec.md
// §4, §4.4). Aux buses are plain Buses registered in a separate
// identifier space; they are never themselves iterated as a mixer's
// main bus list and never recursively send (spec.md §4.4).
type Bus struct {
	mu sync.Mutex

	id     string
	groups []*Group

	volume       float64
	volumeFrom   float64
	volumeTarget float64
	volumeRamp   ramp
	rate         int

	effects []Effect

	sends map[string]float64 // aux bus id -> send level

	solo bool
	mute bool

	scratch     *block
	sendScratch *block // post-effect, pre-volume snapshot for aux sends
	sendAccum   *block // aux-bus only: accumulates incoming sends for this period
}

func newBus(id string, rate, period int) *Bus {
	if id == "" {
		id = uuid.NewString()
	}
	return &Bus{
		id:           id,
		rate:         rate,
		volume:       1.0,
		volumeTarget: 1.0,
		sends:        make(map[string]float64),
		scratch:      newBlock(period),
		sendScratch:  newBlock(period),
		sendAccum:    newBlock(period),
	}
}

func (b *Bus) ID() string { return b.id }

func (b *Bus) addGroup(g *Group) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups = append(b.groups, g)
}

func (b *Bus) removeGroup(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, g := range b.groups {
		if g.ID() == id {
			b.groups = append(b.groups[:i], b.groups[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bus) findGroup(id string) *Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.groups {
		if g.ID() == id {
			return g
		}
	}
	return nil
}

func (b *Bus) listGroups() []*Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Group, len(b.groups))
	copy(out, b.groups)
	return out
}

func (b *Bus) addEffect(e Effect) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.effects = append(b.effects, e)
}

func (b *Bus) removeEffect(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.effects) {
		return false
	}
	b.effects = append(b.effects[:index], b.effects[index+1:]...)
	return true
}

func (b *Bus) addSend(auxID string, level float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends[auxID] = level
}

func (b *Bus) removeSend(auxID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sends, auxID)
}

func (b *Bus) listSends() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]float64, len(b.sends))
	for k, v := range b.sends {
		out[k] = v
	}
	return out
}

func (b *Bus) SetVolume(v, fade float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 2.0 {
		v = 2.0
	}
	if fade > 0 {
		b.volumeFrom = b.currentVolume()
		b.volumeTarget = v
		b.volumeRamp = newRamp(secondsToSamples(fade, b.rate))
	} else {
		b.volume = v
		b.volumeTarget = v
		b.volumeRamp = newRamp(0)
	}
}

func (b *Bus) SetSolo(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.solo = on
}

func (b *Bus) SetMute(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mute = on
}

func (b *Bus) currentVolume() float64 {
	if b.volumeRamp.total == 0 {
		return b.volume
	}
	return b.volumeFrom + (b.volumeTarget-b.volumeFrom)*b.volumeRamp.fraction()
}

// render sums every group's (solo-filtered) contribution, applies this
// bus's effect chain and fade-ramped volume, and returns the scratch
// block. groupAudible reports, per group id, whether the mixer's
// solo-dominance pass allows that group to contribute this period.
func (b *Bus) render(period int, audible bool, groupAudible func(id string) bool) *block {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.scratch.zero()

	for _, g := range b.groups {
		gb := g.render(period, groupAudible(g.ID()))
		b.scratch.addScaled(gb, 1)
	}

	vol := b.currentVolume()
	b.volumeRamp.advance(period)
	if b.volumeRamp.done() {
		b.volume = b.volumeTarget
	}

	if !audible || b.mute {
		b.scratch.zero()
		b.sendScratch.zero()
		return b.scratch
	}

	for _, e := range b.effects {
		applyEffect(e, b.scratch, period)
	}

	b.sendScratch.copyScaled(b.scratch, 1)

	scale := float32(vol)
	for i := range b.scratch.L {
		b.scratch.L[i] *= scale
		b.scratch.R[i] *= scale
	}
	return b.scratch
}

// snapshotSends returns the send levels and the post-effect, pre-volume
// block captured by the most recent render call, for the mixer to fan
// out into aux buses.
func (b *Bus) snapshotSends() (map[string]float64, *block) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]float64, len(b.sends))
	for k, v := range b.sends {
		out[k] = v
	}
	return out, b.sendScratch
}
