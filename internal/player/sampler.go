package player

import (
	"context"
	"sync"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
	"go.uber.org/zap"
)

// Controls playback control surface of the video widget
type Controls interface {
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	SetVolume(level float64) error
	SetPlaybackRate(rate float64) error
}

// Callbacks events the widget pushes to us
type Callbacks struct {
	OnReady       func()
	OnProgress    func(currentTime, duration float64)
	OnStateChange func(state domain.PlaybackState)
}

// Source boundary around a third-party video widget that supports event
// subscription
type Source interface {
	Controls
	Attach(cb Callbacks) error
	Detach()
}

// Sink receives normalized samples. It must not block: progress delivery
// goes through the durable queue, never through a pending network write
type Sink func(sample domain.VideoSample)

// Sampler subscribes to a Source and turns its events into VideoSamples.
// Close detaches the callbacks so a destroyed playback component stops
// emitting, while any in-flight flush continues independently
type Sampler struct {
	src    Source
	sink   Sink
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	closed    bool
	state     domain.PlaybackState
	lastTime  float64
	lastDur   float64
	haveFrame bool
}

func NewSampler(src Source, sink Sink, logger *zap.Logger) *Sampler {
	return &Sampler{
		src:    src,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		state:  domain.PlaybackReady,
	}
}

// WithClock substitute the time source, for tests
func (s *Sampler) WithClock(now func() time.Time) *Sampler {
	s.now = now
	return s
}

func (s *Sampler) Start() error {
	return s.src.Attach(Callbacks{
		OnReady:       s.onReady,
		OnProgress:    s.onProgress,
		OnStateChange: s.onStateChange,
	})
}

func (s *Sampler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.src.Detach()
}

func (s *Sampler) onReady() {
	s.mu.Lock()
	s.state = domain.PlaybackReady
	s.mu.Unlock()
}

func (s *Sampler) onProgress(currentTime, duration float64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.state == domain.PlaybackReady {
		s.state = domain.PlaybackPlaying
	}
	s.lastTime = currentTime
	s.lastDur = duration
	s.haveFrame = true
	sample := domain.VideoSample{
		CurrentTime: currentTime,
		Duration:    duration,
		State:       s.state,
		At:          s.now(),
	}
	s.mu.Unlock()
	s.sink(sample)
}

// onStateChange emits a sample at the last known position so the reducer
// sees pause and ended transitions, which close watch sessions
func (s *Sampler) onStateChange(state domain.PlaybackState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = state
	emit := s.haveFrame && state != domain.PlaybackError
	sample := domain.VideoSample{
		CurrentTime: s.lastTime,
		Duration:    s.lastDur,
		State:       state,
		At:          s.now(),
	}
	s.mu.Unlock()
	if emit {
		s.sink(sample)
	}
}

// PositionReader pull-style playback source
type PositionReader interface {
	Position() (currentTime, duration float64, state domain.PlaybackState, err error)
}

// PollingSampler compatibility shim for widgets without event support:
// samples the reader on a fixed interval. Prefer the event-driven Sampler
// where the playback collaborator can push
type PollingSampler struct {
	reader   PositionReader
	sink     Sink
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	cancel context.CancelFunc
	once   sync.Once
}

func NewPollingSampler(reader PositionReader, sink Sink, interval time.Duration, logger *zap.Logger) *PollingSampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollingSampler{
		reader:   reader,
		sink:     sink,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins polling until Close or ctx cancellation. Ticks are
// independent of persistence latency, a slow flush never delays sampling
func (p *PollingSampler) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				currentTime, duration, state, err := p.reader.Position()
				if err != nil {
					p.logger.Debug("Skipping playback poll", zap.Error(err))
					continue
				}
				p.sink(domain.VideoSample{
					CurrentTime: currentTime,
					Duration:    duration,
					State:       state,
					At:          p.now(),
				})
			}
		}
	}()
}

func (p *PollingSampler) Close() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
}
