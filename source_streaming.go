package mixengine

import "io"

// StreamingSource is backed by an on-disk file through a chunked ring
// buffer (spec.md §3, §4.2). The ring holds a contiguous window of
// decoded frames [anchor, anchor+fill); refill is triggered whenever
// the frames available ahead of the read cursor drop below half the
// ring's capacity, and runs synchronously on the mixer goroutine
// (simplicity over strict realtime guarantees, per spec.md §4.2).
type StreamingSource struct {
	baseSource
	stream   decodedStream
	capacity int64
	ringL    []float32
	ringR    []float32
	anchor   int64
	fill     int64
	eof      bool
}

// newStreamingSource wraps an already-open decodedStream. Capacity is
// at least 8 periods and at least one second of audio at the engine
// rate, per spec.md §3.
func newStreamingSource(id string, rate, period int, stream decodedStream) *StreamingSource {
	capacity := period * 8
	if rate > capacity {
		capacity = rate
	}
	s := &StreamingSource{
		baseSource: newBaseSource(id, rate, period, stream.TotalFrames()),
		stream:     stream,
		capacity:   int64(capacity),
		ringL:      make([]float32, capacity),
		ringR:      make([]float32, capacity),
	}
	s.baseSource.provider = s
	s.refillFrom(0)
	return s
}

func (s *StreamingSource) totalFrames() int64 { return s.stream.TotalFrames() }

// frameAt services a single-frame read from the ring, repositioning
// (seeking the decoder and refilling from scratch) when the requested
// frame falls outside the current window — this covers both an
// explicit seek and a loop wrap-around, both of which invalidate the
// contiguous assumption.
func (s *StreamingSource) frameAt(n int64) (l, r float32) {
	if s.fill <= 0 || n < s.anchor || n >= s.anchor+s.fill {
		s.refillFrom(n)
	}
	if s.fill <= 0 || n < s.anchor || n >= s.anchor+s.fill {
		return 0, 0
	}
	idx := n - s.anchor
	return s.ringL[idx], s.ringR[idx]
}

// refillFrom slides the ring's window to start at (or encompassing)
// cur and tops it back up to capacity from the decoder. Called with
// baseSource.mu already held.
func (s *StreamingSource) refillFrom(cur int64) {
	if s.stream == nil {
		return
	}

	if s.fill <= 0 || cur < s.anchor || cur >= s.anchor+s.capacity {
		if err := s.stream.Seek(cur); err != nil {
			return
		}
		s.anchor = cur
		s.fill = 0
		s.eof = false
	} else if drop := cur - s.anchor; drop > 0 {
		copy(s.ringL, s.ringL[drop:s.fill])
		copy(s.ringR, s.ringR[drop:s.fill])
		s.anchor = cur
		s.fill -= drop
		if s.fill < 0 {
			s.fill = 0
		}
	}

	if s.eof {
		return
	}
	room := s.capacity - s.fill
	if room <= 0 {
		return
	}
	l, r, err := s.stream.ReadFrames(int(room))
	n := int64(len(l))
	copy(s.ringL[s.fill:s.fill+n], l)
	copy(s.ringR[s.fill:s.fill+n], r)
	s.fill += n
	if err == io.EOF {
		s.eof = true
	}
}

// maintainRing tops up the ring ahead of the (loop-wrapped) read
// cursor when available frames drop below the low-water mark. Called
// with baseSource.mu held, before baseSource.render pulls samples.
func (s *StreamingSource) maintainRing(period int) {
	total := s.stream.TotalFrames()
	cur := s.wrappedFloor(s.cursor, total)
	ahead := (s.anchor + s.fill) - cur
	lowWater := s.capacity / 2
	if ahead < lowWater {
		s.refillFrom(cur)
	}
}

// Seek clamps and repositions the cursor; the underlying decoder move
// is deferred to the next render (or the first frameAt miss it
// causes), per spec.md §4.1.
func (s *StreamingSource) Seek(frame int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekLocked(frame)
	s.fill = 0
}

func (s *StreamingSource) render(dst *block, period int) {
	s.mu.Lock()
	if s.state == StatePlaying {
		s.maintainRing(period)
	}
	s.mu.Unlock()
	s.baseSource.render(dst, period)
}

// Close releases the underlying decoder handle. Safe to call once a
// source has been removed from its group.
func (s *StreamingSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}
