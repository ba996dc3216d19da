package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeWidget scripted playback source
type fakeWidget struct {
	mu       sync.Mutex
	cb       Callbacks
	attached bool
}

func (w *fakeWidget) Attach(cb Callbacks) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cb = cb
	w.attached = true
	return nil
}

func (w *fakeWidget) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cb = Callbacks{}
	w.attached = false
}

func (w *fakeWidget) callbacks() Callbacks {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cb
}

func (w *fakeWidget) isAttached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attached
}

func (w *fakeWidget) Play() error                  { return nil }
func (w *fakeWidget) Pause() error                 { return nil }
func (w *fakeWidget) SeekTo(float64) error         { return nil }
func (w *fakeWidget) SetVolume(float64) error      { return nil }
func (w *fakeWidget) SetPlaybackRate(float64) error { return nil }

func collectSink() (Sink, func() []domain.VideoSample) {
	var mu sync.Mutex
	var samples []domain.VideoSample
	sink := func(sample domain.VideoSample) {
		mu.Lock()
		samples = append(samples, sample)
		mu.Unlock()
	}
	return sink, func() []domain.VideoSample {
		mu.Lock()
		defer mu.Unlock()
		return append([]domain.VideoSample(nil), samples...)
	}
}

func TestSampler_EmitsProgressSamples(t *testing.T) {
	widget := &fakeWidget{}
	sink, samples := collectSink()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	sampler := NewSampler(widget, sink, zap.NewNop()).WithClock(func() time.Time { return at })
	require.NoError(t, sampler.Start())
	defer sampler.Close()

	cb := widget.callbacks()
	cb.OnReady()
	cb.OnProgress(10, 600)
	cb.OnProgress(12, 600)

	got := samples()
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].CurrentTime)
	assert.Equal(t, domain.PlaybackPlaying, got[0].State, "progress implies playback")
	assert.Equal(t, at, got[0].At)
}

func TestSampler_StateChangeEmitsAtLastPosition(t *testing.T) {
	widget := &fakeWidget{}
	sink, samples := collectSink()

	sampler := NewSampler(widget, sink, zap.NewNop())
	require.NoError(t, sampler.Start())
	defer sampler.Close()

	cb := widget.callbacks()
	cb.OnProgress(42, 600)
	cb.OnStateChange(domain.PlaybackPaused)

	got := samples()
	require.Len(t, got, 2)
	assert.Equal(t, domain.PlaybackPaused, got[1].State)
	assert.Equal(t, 42.0, got[1].CurrentTime, "pause is reported at the last seen position")
}

func TestSampler_NoStateSampleBeforeFirstFrame(t *testing.T) {
	widget := &fakeWidget{}
	sink, samples := collectSink()

	sampler := NewSampler(widget, sink, zap.NewNop())
	require.NoError(t, sampler.Start())
	defer sampler.Close()

	// a state flap before any position frame carries no usable sample
	widget.callbacks().OnStateChange(domain.PlaybackPaused)

	assert.Empty(t, samples())
}

func TestSampler_CloseDetaches(t *testing.T) {
	widget := &fakeWidget{}
	sink, samples := collectSink()

	sampler := NewSampler(widget, sink, zap.NewNop())
	require.NoError(t, sampler.Start())

	cb := widget.callbacks()
	cb.OnProgress(5, 600)
	sampler.Close()

	assert.False(t, widget.isAttached())
	// a straggler event after Close is dropped
	cb.OnProgress(6, 600)
	assert.Len(t, samples(), 1)
}

type scriptedReader struct {
	mu      sync.Mutex
	current float64
}

func (r *scriptedReader) Position() (float64, float64, domain.PlaybackState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current += 1
	return r.current, 600, domain.PlaybackPlaying, nil
}

func TestPollingSampler_SamplesOnInterval(t *testing.T) {
	sink, samples := collectSink()
	sampler := NewPollingSampler(&scriptedReader{}, sink, 5*time.Millisecond, zap.NewNop())

	sampler.Start(context.Background())
	defer sampler.Close()

	require.Eventually(t, func() bool {
		return len(samples()) >= 2
	}, time.Second, time.Millisecond)

	got := samples()
	assert.Greater(t, got[1].CurrentTime, got[0].CurrentTime)
}
