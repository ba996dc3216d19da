package progress

import (
	"testing"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleAt(current, duration float64, state domain.PlaybackState, at time.Time) domain.VideoSample {
	return domain.VideoSample{CurrentTime: current, Duration: duration, State: state, At: at}
}

func TestReduce_WatchedSecondsIsMonotonic(t *testing.T) {
	policy := DefaultPolicy()

	next, _, err := Reduce(nil, sampleAt(10, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(30, 600, domain.PlaybackPlaying, t0.Add(20*time.Second)), policy)
	require.NoError(t, err)

	// rewind: the high-water mark holds, the resume position follows playback
	next, _, err = Reduce(next, sampleAt(15, 600, domain.PlaybackPlaying, t0.Add(25*time.Second)), policy)
	require.NoError(t, err)

	assert.Equal(t, 30.0, next.WatchedSeconds)
	assert.Equal(t, 15.0, next.ResumePosition)
	assert.Equal(t, 5.0, next.CompletionPercentage)
}

func TestReduce_CompletionLatch(t *testing.T) {
	policy := DefaultPolicy() // threshold 80

	next, crossed, err := Reduce(nil, sampleAt(479, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	assert.False(t, crossed)
	assert.False(t, next.IsCompleted)

	next, crossed, err = Reduce(next, sampleAt(480, 600, domain.PlaybackPlaying, t0.Add(time.Second)), policy)
	require.NoError(t, err)
	assert.True(t, crossed, "crossing the threshold must be signalled exactly once")
	assert.True(t, next.IsCompleted)

	// completion never reverts, and the crossed signal never repeats
	next, crossed, err = Reduce(next, sampleAt(10, 600, domain.PlaybackPlaying, t0.Add(2*time.Second)), policy)
	require.NoError(t, err)
	assert.False(t, crossed)
	assert.True(t, next.IsCompleted)
}

func TestReduce_Idempotent(t *testing.T) {
	policy := DefaultPolicy()
	sample := sampleAt(42, 600, domain.PlaybackPlaying, t0)

	once, _, err := Reduce(nil, sample, policy)
	require.NoError(t, err)
	twice, _, err := Reduce(once, sample, policy)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	policy := DefaultPolicy()
	prev, _, err := Reduce(nil, sampleAt(10, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	snapshot := prev.Clone()

	_, _, err = Reduce(prev, sampleAt(50, 600, domain.PlaybackPlaying, t0.Add(time.Second)), policy)
	require.NoError(t, err)
	assert.Equal(t, snapshot, prev)
}

func TestReduce_RejectsMalformedSamples(t *testing.T) {
	policy := DefaultPolicy()
	prev, _, err := Reduce(nil, sampleAt(100, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)

	nan := 0.0
	nan = nan / nan
	inf := 1.0
	inf = inf / 0.0

	for name, sample := range map[string]domain.VideoSample{
		"zero duration":     sampleAt(10, 0, domain.PlaybackPlaying, t0),
		"negative duration": sampleAt(10, -5, domain.PlaybackPlaying, t0),
		"negative position": sampleAt(-1, 600, domain.PlaybackPlaying, t0),
		"nan position":      sampleAt(nan, 600, domain.PlaybackPlaying, t0),
		"inf position":      sampleAt(inf, 600, domain.PlaybackPlaying, t0),
		"nan duration":      sampleAt(10, nan, domain.PlaybackPlaying, t0),
	} {
		next, crossed, err := Reduce(prev, sample, policy)
		assert.ErrorIs(t, err, domain.ErrInvalidSample, name)
		assert.False(t, crossed, name)
		assert.Same(t, prev, next, "%s: a bad sample must not touch stored progress", name)
	}
}

func TestReduce_ClampsPercentage(t *testing.T) {
	policy := DefaultPolicy()

	// reported position beyond the duration, eg. rounding at the last frame
	next, _, err := Reduce(nil, sampleAt(605, 600, domain.PlaybackEnded, t0), policy)
	require.NoError(t, err)
	assert.Equal(t, 100.0, next.CompletionPercentage)
}

func TestReduce_FirstSeenDurationWins(t *testing.T) {
	policy := DefaultPolicy()

	next, _, err := Reduce(nil, sampleAt(10, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(20, 300, domain.PlaybackPlaying, t0.Add(time.Second)), policy)
	require.NoError(t, err)
	assert.Equal(t, 600.0, next.TotalSeconds)

	// with the policy flipped a longer duration may replace the first one
	policy.TrustFirstDuration = false
	next, _, err = Reduce(next, sampleAt(20, 700, domain.PlaybackPlaying, t0.Add(2*time.Second)), policy)
	require.NoError(t, err)
	assert.Equal(t, 700.0, next.TotalSeconds)
}

func TestReduce_PauseClosesSession(t *testing.T) {
	policy := DefaultPolicy()

	next, _, err := Reduce(nil, sampleAt(0, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(30, 600, domain.PlaybackPlaying, t0.Add(30*time.Second)), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(31, 600, domain.PlaybackPaused, t0.Add(31*time.Second)), policy)
	require.NoError(t, err)

	require.Len(t, next.WatchSessions, 1)
	session := next.WatchSessions[0]
	assert.Equal(t, t0, session.StartTime)
	assert.Equal(t, 31.0, session.Duration)
	assert.Equal(t, 31.0, session.ProgressMade)
	assert.Equal(t, 1, session.PauseCount)
	assert.Nil(t, next.SessionStartAt)

	// replaying the pause sample must not append a second session
	replayed, _, err := Reduce(next, sampleAt(31, 600, domain.PlaybackPaused, t0.Add(31*time.Second)), policy)
	require.NoError(t, err)
	assert.Len(t, replayed.WatchSessions, 1)
}

func TestReduce_IdleGapClosesSession(t *testing.T) {
	policy := DefaultPolicy() // idle timeout 30s

	next, _, err := Reduce(nil, sampleAt(0, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(10, 600, domain.PlaybackPlaying, t0.Add(10*time.Second)), policy)
	require.NoError(t, err)

	// the tab slept for two minutes, the old session ends at its last sample
	next, _, err = Reduce(next, sampleAt(11, 600, domain.PlaybackPlaying, t0.Add(2*time.Minute)), policy)
	require.NoError(t, err)

	require.Len(t, next.WatchSessions, 1)
	assert.Equal(t, 10.0, next.WatchSessions[0].Duration)
	require.NotNil(t, next.SessionStartAt)
	assert.Equal(t, t0.Add(2*time.Minute), *next.SessionStartAt)
}

func TestReduce_EndedClosesSession(t *testing.T) {
	policy := DefaultPolicy()

	next, _, err := Reduce(nil, sampleAt(0, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	next, crossed, err := Reduce(next, sampleAt(600, 600, domain.PlaybackEnded, t0.Add(10*time.Minute)), policy)
	require.NoError(t, err)

	assert.True(t, crossed)
	assert.Len(t, next.WatchSessions, 1)
	assert.Nil(t, next.SessionStartAt)
	assert.Equal(t, 100.0, next.CompletionPercentage)
}

func TestReduce_CountsSeeks(t *testing.T) {
	policy := DefaultPolicy() // seek jump 3s

	next, _, err := Reduce(nil, sampleAt(10, 600, domain.PlaybackPlaying, t0), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(200, 600, domain.PlaybackPlaying, t0.Add(time.Second)), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(201, 600, domain.PlaybackPlaying, t0.Add(2*time.Second)), policy)
	require.NoError(t, err)
	next, _, err = Reduce(next, sampleAt(202, 600, domain.PlaybackPaused, t0.Add(3*time.Second)), policy)
	require.NoError(t, err)

	require.Len(t, next.WatchSessions, 1)
	assert.Equal(t, 1, next.WatchSessions[0].SeekCount)
}
