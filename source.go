package mixengine

import (
	"sync"

	"github.com/google/uuid"
)

// PlaybackState is the per-source playback state machine: STOPPED
// implies the source contributes silence and its cursor sits at
// loop-start; only PLAYING sources are mixed.
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// noPending marks baseSource.pending as "no transition scheduled".
const noPending = PlaybackState(-1)

// Source is the common contract every producer of stereo frames
// exposes: the control-plane API of spec.md §4.1 plus the mix-thread
// render contract the System drives once per period.
type Source interface {
	ID() string
	State() PlaybackState

	Play(fadeIn float64)
	Pause(fadeOut float64)
	Resume(fadeIn float64)
	Stop(fadeOut float64)
	Seek(frame int64)
	SetSpeed(x float64)
	SetVolume(v, fade float64)
	SetLoop(on bool, start, end int64)
	FadeIn(seconds float64)
	FadeOut(seconds float64)
	Reset()

	// render pulls this period's contribution into dst, weighted by
	// the source's own fade-ramped volume, and advances the read
	// cursor by period*speed. It is called only from the mixer
	// goroutine, once per node per period, and must not allocate.
	render(dst *block, period int)
}

// frameProvider is the narrow contract a concrete source implements so
// baseSource's shared render/seek/loop machinery can pull samples
// without knowing whether they come from an in-memory buffer or a
// streaming ring. frameAt must be cheap and non-blocking for in-memory
// sources; streaming sources may perform a synchronous refill inside
// it per spec.md §4.2.
type frameProvider interface {
	frameAt(n int64) (l, r float32)
	totalFrames() int64
}

// baseSource implements the control-plane contract and the
// cursor/fade/loop mixing algorithm shared by in-memory and streaming
// sources (spec.md §4.1, §9 open question: a single fractional cursor
// with cubic interpolation, speed governing the per-output-frame
// fractional step, rather than per-block integer skipping).
type baseSource struct {
	mu sync.Mutex

	id     string
	rate   int
	period int

	provider frameProvider

	state   PlaybackState
	pending PlaybackState // transition to apply when the active ramp completes

	cursor float64 // fractional frame position
	speed  float64

	volume       float64
	volumeTarget float64
	volumeFrom   float64
	volumeRamp   ramp

	loop      bool
	loopStart int64
	loopEnd   int64

	volScratch []float64 // reused per-period volume curve, no hot-path alloc
}

func newBaseSource(id string, rate, period int, length int64) baseSource {
	if id == "" {
		id = uuid.NewString()
	}
	return baseSource{
		id:           id,
		rate:         rate,
		period:       period,
		state:        StateStopped,
		pending:      noPending,
		speed:        1.0,
		volume:       1.0,
		volumeTarget: 1.0,
		loopEnd:      length,
		volScratch:   make([]float64, period),
	}
}

func (s *baseSource) ID() string { return s.id }

func (s *baseSource) State() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// startVolumeRamp begins (or replaces) the volume ramp from `from` to
// `to` over the given duration in seconds. A non-positive duration
// snaps immediately.
func (s *baseSource) startVolumeRamp(from, to, seconds float64) {
	s.volumeFrom = from
	s.volumeTarget = to
	total := secondsToSamples(seconds, s.rate)
	s.volumeRamp = newRamp(total)
	if total == 0 {
		s.volume = to
	} else {
		s.volume = from
	}
}

func (s *baseSource) currentVolume() float64 {
	return s.volumeFrom + (s.volumeTarget-s.volumeFrom)*s.volumeRamp.fraction()
}

func (s *baseSource) Play(fadeIn float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatePlaying
	s.pending = noPending
	s.cursor = float64(s.loopStart)
	if fadeIn > 0 {
		s.startVolumeRamp(0, s.volumeTarget, fadeIn)
	} else {
		s.volume = s.volumeTarget
		s.volumeRamp = newRamp(0)
	}
}

func (s *baseSource) Resume(fadeIn float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatePlaying
	s.pending = noPending
	if fadeIn > 0 {
		s.startVolumeRamp(0, s.volumeTarget, fadeIn)
	} else {
		s.volume = s.volumeTarget
		s.volumeRamp = newRamp(0)
	}
}

func (s *baseSource) Pause(fadeOut float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fadeOut <= 0 {
		s.state = StatePaused
		s.pending = noPending
		return
	}
	s.startVolumeRamp(s.currentVolume(), 0, fadeOut)
	s.pending = StatePaused
}

func (s *baseSource) Stop(fadeOut float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fadeOut <= 0 {
		s.state = StateStopped
		s.cursor = float64(s.loopStart)
		s.pending = noPending
		return
	}
	s.startVolumeRamp(s.currentVolume(), 0, fadeOut)
	s.pending = StateStopped
}

func (s *baseSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateStopped
	s.pending = noPending
	s.cursor = float64(s.loopStart)
	s.volume = s.volumeTarget
	s.volumeRamp = newRamp(0)
}

func (s *baseSource) Seek(frame int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekLocked(frame)
}

func (s *baseSource) seekLocked(frame int64) {
	if frame < s.loopStart {
		frame = s.loopStart
	}
	if frame > s.loopEnd {
		frame = s.loopEnd
	}
	s.cursor = float64(frame)
}

func (s *baseSource) SetSpeed(x float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x < 0.1 {
		x = 0.1
	}
	if x > 4.0 {
		x = 4.0
	}
	s.speed = x
}

func (s *baseSource) SetVolume(v, fade float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 2.0 {
		v = 2.0
	}
	if fade > 0 {
		s.startVolumeRamp(s.currentVolume(), v, fade)
	} else {
		s.volume = v
		s.volumeTarget = v
		s.volumeRamp = newRamp(0)
	}
}

func (s *baseSource) SetLoop(on bool, start, end int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = on
	if start < 0 {
		start = 0
	}
	s.loopStart = start
	if end <= start {
		end = s.provider.totalFrames()
	}
	s.loopEnd = end
}

func (s *baseSource) FadeIn(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startVolumeRamp(0, s.volumeTarget, seconds)
}

func (s *baseSource) FadeOut(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startVolumeRamp(s.currentVolume(), 0, seconds)
}

// render implements the shared mix-thread algorithm: per-sample cosine
// fade interpolation, cubic-interpolated fractional-cursor reads, loop
// wrap / end-of-stream handling, and cursor advance by period*speed.
func (s *baseSource) render(dst *block, period int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying {
		return
	}

	// Snapshot the volume curve for this period and advance the ramp.
	vols := s.volScratch
	for i := 0; i < period; i++ {
		c := s.volumeRamp.counter + i
		vols[i] = s.volumeFrom + (s.volumeTarget-s.volumeFrom)*cosineFrac(c, s.volumeRamp.total)
	}
	s.volumeRamp.advance(period)
	if s.volumeRamp.done() {
		s.volume = s.volumeTarget
		if s.pending != noPending {
			s.state = s.pending
			s.pending = noPending
			if s.state == StateStopped {
				s.cursor = float64(s.loopStart)
			}
		}
	} else {
		s.volume = vols[0]
	}

	total := s.provider.totalFrames()
	end := s.loopEnd
	if end <= 0 || end > total {
		end = total
	}

	reachedEnd := false
	for i := 0; i < period; i++ {
		pos := s.cursor
		if s.loop && end > s.loopStart {
			span := end - s.loopStart
			rel := pos - float64(s.loopStart)
			for rel >= float64(span) {
				rel -= float64(span)
			}
			pos = float64(s.loopStart) + rel
		} else if pos >= float64(end) {
			reachedEnd = true
			s.cursor += s.speed
			continue
		}

		l, r := cubicSample(s.provider, pos, s.loop, s.loopStart, end)
		dst.L[i] += l * float32(vols[i])
		dst.R[i] += r * float32(vols[i])

		s.cursor += s.speed
	}

	if reachedEnd && !s.loop {
		s.state = StateStopped
		s.cursor = float64(s.loopStart)
	}
}

// cubicSample reads a 4-point Catmull-Rom interpolated stereo frame at
// the fractional position pos, wrapping within [start, end) when loop
// is set and otherwise returning silence past end.
func cubicSample(p frameProvider, pos float64, loop bool, start, end int64) (l, r float32) {
	span := end - start
	if span <= 0 {
		return 0, 0
	}

	base := int64(pos)
	frac := float32(pos - float64(base))

	wrap := func(n int64) int64 {
		if !loop {
			if n < start {
				return start
			}
			if n >= end {
				return end - 1
			}
			return n
		}
		rel := (n - start) % span
		if rel < 0 {
			rel += span
		}
		return start + rel
	}

	lm1, rm1 := p.frameAt(wrap(base - 1))
	l0, r0 := p.frameAt(wrap(base))
	l1, r1 := p.frameAt(wrap(base + 1))
	l2, r2 := p.frameAt(wrap(base + 2))

	l = catmullRom(lm1, l0, l1, l2, frac)
	r = catmullRom(rm1, r0, r1, r2, frac)
	return l, r
}

// wrappedFloor maps a raw (monotonically increasing) cursor position
// to the frame it actually points at: wrapped into [loopStart, end)
// when looping, otherwise clamped to [loopStart, end]. The streaming
// source's ring maintenance uses it; cubicSample's wrap() closure
// applies its own equivalent wrap.
func (s *baseSource) wrappedFloor(pos float64, total int64) int64 {
	end := s.loopEnd
	if end <= 0 || end > total {
		end = total
	}
	n := int64(pos)
	if s.loop && end > s.loopStart {
		span := end - s.loopStart
		rel := (n - s.loopStart) % span
		if rel < 0 {
			rel += span
		}
		return s.loopStart + rel
	}
	if n >= end {
		return end
	}
	if n < s.loopStart {
		return s.loopStart
	}
	return n
}

func catmullRom(p0, p1, p2, p3, t float32) float32 {
	a0 := -0.5*p0 + 1.5*p1 - 1.5*p2 + 0.5*p3
	a1 := p0 - 2.5*p1 + 2*p2 - 0.5*p3
	a2 := -0.5*p0 + 0.5*p2
	a3 := p1
	return a0*t*t*t + a1*t*t + a2*t + a3
}
