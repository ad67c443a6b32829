package mixengine

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunState is the System's lifecycle state machine (spec.md §4.6):
// FRESH -> RUNNING -> PAUSED -> RUNNING -> CLOSED, with CLOSED terminal.
type RunState int

const (
	StateFresh RunState = iota
	StateRunning
	StatePausedSystem
	StateClosed
)

const defaultQueueCapacity = 64

// System is the engine root: the routing graph (main buses, aux buses),
// master volume and limiter, and the bounded handoff queue between the
// mixer goroutine and the output goroutine (spec.md §3, §4.4, §4.5).
type System struct {
	mu sync.Mutex

	rate   int
	period int

	mainBuses []*Bus
	auxBuses  map[string]*Bus

	masterVolume float64
	limiter      Limiter

	master      *block
	preClipPeak [2]float64

	metrics Metrics

	queue chan *block
	free  chan *block

	state RunState
	group *errgroup.Group
	stop  context.CancelFunc

	device DeviceStream
	logger *log.Logger
}

// Option configures a System at construction time.
type Option func(*System)

// WithLimiter overrides the default limiter state.
func WithLimiter(enabled bool, threshold float64) Option {
	return func(s *System) {
		s.limiter = Limiter{Enabled: enabled, Threshold: threshold}
	}
}

// WithQueueCapacity overrides the default handoff queue depth.
func WithQueueCapacity(n int) Option {
	return func(s *System) {
		s.queue = make(chan *block, n)
		s.free = make(chan *block, n)
	}
}

// WithLogger overrides the default charmbracelet/log logger.
func WithLogger(l *log.Logger) Option {
	return func(s *System) { s.logger = l }
}

// NewSystem constructs a System in StateFresh; no goroutines run until
// Start is called.
func NewSystem(rate, period int, opts ...Option) *System {
	s := &System{
		rate:         rate,
		period:       period,
		auxBuses:     make(map[string]*Bus),
		masterVolume: 1.0,
		limiter:      newLimiter(),
		master:       newBlock(period),
		state:        StateFresh,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = make(chan *block, defaultQueueCapacity)
		s.free = make(chan *block, defaultQueueCapacity)
	}
	for i := 0; i < cap(s.free); i++ {
		s.free <- newBlock(period)
	}
	return s
}

// AttachDevice wires the output backend the mixer's produced blocks are
// written to. Must be called before Start.
func (s *System) AttachDevice(d DeviceStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = d
}

// Start transitions FRESH/PAUSED -> RUNNING and launches the mixer and
// output goroutines on first call (spec.md §4.6).
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return &ErrAudio{Msg: "start called on closed system"}
	case StateRunning:
		return nil
	case StatePausedSystem:
		s.state = StateRunning
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.group = g
	s.state = StateRunning

	g.Go(func() error { return s.mixLoop(gctx) })
	if s.device != nil {
		g.Go(func() error { return s.outputLoop(gctx) })
	}
	return nil
}

// Pause transitions RUNNING -> PAUSED; the mixer and output goroutines
// keep running but mixPeriod is skipped, so the queue drains to silence.
func (s *System) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StatePausedSystem
	}
}

// Close transitions to CLOSED, stops the goroutines, waits for them to
// exit, and releases the attached device stream (spec.md §4.6: close
// "stops, releases the device stream, drops the handoff queue"). Safe
// to call more than once.
func (s *System) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	stop := s.stop
	g := s.group
	device := s.device
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	var waitErr error
	if g != nil {
		waitErr = g.Wait()
	}
	if device != nil {
		if err := device.Close(); err != nil {
			return err
		}
	}
	return waitErr
}

func (s *System) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// --- routing graph control plane (spec.md §4.4) ---

// CreateGroup creates a new, unattached Group. The caller populates it
// with sources and effects, then attaches it to a bus with AddToBus.
func (s *System) CreateGroup(id string) *Group {
	return newGroup(id, s.rate, s.period)
}

// CreateBus creates a new main bus and returns its id.
func (s *System) CreateBus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := newBus(id, s.rate, s.period)
	s.mainBuses = append(s.mainBuses, b)
	return b.id
}

// AddAuxBus registers a bus in the aux identifier space; it is never
// iterated as a main bus and never recursively sends (spec.md §4.4).
func (s *System) AddAuxBus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := newBus(id, s.rate, s.period)
	s.auxBuses[b.id] = b
	return b.id
}

func (s *System) findBus(id string) *Bus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.mainBuses {
		if b.ID() == id {
			return b
		}
	}
	return s.auxBuses[id]
}

// AddToBus attaches an existing group to a bus by id.
func (s *System) AddToBus(busID string, g *Group) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	b.addGroup(g)
	return true
}

// AddToGroup attaches a source to a group.
func (s *System) AddToGroup(g *Group, src Source) {
	g.addSource(src)
}

// RemoveFromGroup detaches a source from a group by id.
func (s *System) RemoveFromGroup(g *Group, sourceID string) bool {
	return g.removeSource(sourceID)
}

// RemoveFromBus detaches a group from a bus by id.
func (s *System) RemoveFromBus(busID, groupID string) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	return b.removeGroup(groupID)
}

// AddSend routes a copy of busID's post-effect signal into auxID at the
// given level.
func (s *System) AddSend(busID, auxID string, level float64) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	s.mu.Lock()
	_, auxExists := s.auxBuses[auxID]
	s.mu.Unlock()
	if !auxExists {
		return false
	}
	b.addSend(auxID, level)
	return true
}

func (s *System) RemoveSend(busID, auxID string) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	b.removeSend(auxID)
	return true
}

func (s *System) SetBusSolo(busID string, on bool) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	b.SetSolo(on)
	return true
}

func (s *System) SetBusMute(busID string, on bool) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	b.SetMute(on)
	return true
}

// SetMasterVolume sets the master gain, applied before the limiter
// (spec.md §4.4).
func (s *System) SetMasterVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 2.0 {
		v = 2.0
	}
	s.masterVolume = v
}

func (s *System) SetLimiter(enabled bool, threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter.Enabled = enabled
	if threshold > 0 {
		s.limiter.Threshold = threshold
	}
}

// --- source factories (spec.md §3, §4.1, §4.2) ---

// LoadAudio decodes path fully into memory and returns a ready,
// stopped InMemorySource.
func (s *System) LoadAudio(id, path string) (Source, error) {
	left, right, err := loadFull(path, s.rate)
	if err != nil {
		return nil, err
	}
	return newInMemorySource(nonEmptyID(id), s.rate, s.period, left, right), nil
}

// LoadAudioStreaming opens path through a chunked ring buffer rather
// than decoding it fully (spec.md §3, §4.2).
func (s *System) LoadAudioStreaming(id, path string) (Source, error) {
	stream, err := openDecodedStream(path, s.rate)
	if err != nil {
		return nil, err
	}
	return newStreamingSource(nonEmptyID(id), s.rate, s.period, stream), nil
}

// GenerateSineWave synthesizes an in-memory tone source.
func (s *System) GenerateSineWave(id string, freq, seconds, amplitude float64) Source {
	return generateSineWave(nonEmptyID(id), s.rate, s.period, freq, seconds, amplitude)
}

// GenerateWhiteNoise synthesizes an in-memory noise source.
func (s *System) GenerateWhiteNoise(id string, seconds, amplitude float64) Source {
	return generateWhiteNoise(nonEmptyID(id), s.rate, s.period, seconds, amplitude)
}

func nonEmptyID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// AddGroupEffect appends an effect to a group's chain.
func (s *System) AddGroupEffect(g *Group, e Effect) { g.addEffect(e) }

// RemoveGroupEffect removes the effect at index from a group's chain.
func (s *System) RemoveGroupEffect(g *Group, index int) bool { return g.removeEffect(index) }

// AddBusEffect appends an effect to a bus's chain.
func (s *System) AddBusEffect(busID string, e Effect) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	b.addEffect(e)
	return true
}

// RemoveBusEffect removes the effect at index from a bus's chain.
func (s *System) RemoveBusEffect(busID string, index int) bool {
	b := s.findBus(busID)
	if b == nil {
		return false
	}
	return b.removeEffect(index)
}

// UpdateEffectParams ramps a modulable effect's parameters toward
// target over the given duration (spec.md §4.3).
func (s *System) UpdateEffectParams(e Effect, target map[string]float64, seconds float64) bool {
	m, ok := e.(ModulableEffect)
	if !ok {
		return false
	}
	m.UpdateParams(target, seconds)
	return true
}

// --- effect factories (spec.md §4.3) ---

func (s *System) NewReverb() *Reverb         { return NewReverb(s.rate) }
func (s *System) NewDelay() *Delay           { return NewDelay(s.rate) }
func (s *System) NewCompressor() *Compressor { return NewCompressor(s.rate) }
func (s *System) NewEQ(kind filterKind) *EQ  { return NewEQ(s.rate, kind) }

// --- introspection (spec.md §4.7) ---

func (s *System) FindSource(sourceID string) Source {
	for _, b := range s.listAllBuses() {
		for _, g := range b.listGroups() {
			if src := g.findSource(sourceID); src != nil {
				return src
			}
		}
	}
	return nil
}

func (s *System) ListAllSources() []Source {
	var out []Source
	for _, b := range s.listAllBuses() {
		for _, g := range b.listGroups() {
			out = append(out, g.listSources()...)
		}
	}
	return out
}

func (s *System) listAllBuses() []*Bus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Bus, 0, len(s.mainBuses)+len(s.auxBuses))
	out = append(out, s.mainBuses...)
	for _, b := range s.auxBuses {
		out = append(out, b)
	}
	return out
}

func (s *System) GetMetrics() Snapshot { return s.metrics.snapshot() }
func (s *System) ResetMetrics()        { s.metrics.reset() }
