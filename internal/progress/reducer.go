package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
)

// Policy reducer tuning knobs. Threshold comes from the course document,
// the rest from app config
type Policy struct {
	Threshold          float64       // completion percentage, (0,100]
	IdleTimeout        time.Duration // gap between samples that closes a session
	SeekJump           float64       // position delta in seconds counted as a seek
	TrustFirstDuration bool          // keep the first reported duration over later ones
}

// DefaultPolicy policy used when the course or config is silent
func DefaultPolicy() Policy {
	return Policy{
		Threshold:          domain.DefaultCompletionThreshold,
		IdleTimeout:        30 * time.Second,
		SeekJump:           3,
		TrustFirstDuration: true,
	}
}

// Reduce folds one playback sample into the stored lesson progress.
//
// It is a pure function of (sample, prev): prev is never mutated, and
// applying the same sample twice yields the same record as applying it once.
// The returned bool reports whether this update crossed the completion
// threshold, which happens at most once per lesson since IsCompleted never
// reverts.
//
// Malformed samples (duration<=0, negative or non-finite position) return
// prev untouched with ErrInvalidSample: bad player output must never raise
// recorded progress.
func Reduce(prev *domain.LessonProgressModel, sample domain.VideoSample, policy Policy) (*domain.LessonProgressModel, bool, error) {
	if !validSample(sample) {
		return prev, false, domain.ErrInvalidSample
	}
	if policy.Threshold <= 0 || policy.Threshold > 100 {
		policy.Threshold = domain.DefaultCompletionThreshold
	}

	var next *domain.LessonProgressModel
	if prev == nil {
		next = &domain.LessonProgressModel{}
	} else {
		next = prev.Clone()
	}
	if next.FirstWatchedAt == nil {
		at := sample.At
		next.FirstWatchedAt = &at
	}

	// first-seen duration wins, guarding against transient zero/short values
	// from a buffering player; policy-switchable per config
	if next.TotalSeconds <= 0 {
		next.TotalSeconds = sample.Duration
	} else if !policy.TrustFirstDuration && sample.Duration > next.TotalSeconds {
		next.TotalSeconds = sample.Duration
	}

	// idle gap closes the open session before the new sample is applied
	if next.SessionStartAt != nil && next.LastWatchedAt != nil &&
		sample.At.Sub(*next.LastWatchedAt) > policy.IdleTimeout {
		closeSession(next, *next.LastWatchedAt)
	}

	if next.SessionStartAt != nil && math.Abs(sample.CurrentTime-next.ResumePosition) > policy.SeekJump {
		next.SessionSeekCount++
	}
	if sample.State == domain.PlaybackPlaying && next.SessionStartAt == nil {
		at := sample.At
		next.SessionStartAt = &at
		next.SessionStartSeconds = next.WatchedSeconds
		next.SessionPauseCount = 0
		next.SessionSeekCount = 0
	}

	next.WatchedSeconds = math.Max(next.WatchedSeconds, sample.CurrentTime)
	next.CompletionPercentage = clampPercent(next.WatchedSeconds / next.TotalSeconds * 100)

	crossed := false
	if !next.IsCompleted && next.CompletionPercentage >= policy.Threshold {
		next.IsCompleted = true
		crossed = true
	}

	// resume position is the raw reported position, not the high-water mark:
	// an intentional rewind should resume where the user left off
	next.ResumePosition = sample.CurrentTime
	at := sample.At
	next.LastWatchedAt = &at

	switch sample.State {
	case domain.PlaybackPaused:
		if next.LastState == domain.PlaybackPlaying {
			next.SessionPauseCount++
			closeSession(next, sample.At)
		}
	case domain.PlaybackEnded:
		closeSession(next, sample.At)
	}
	next.LastState = sample.State

	return next, crossed, nil
}

func validSample(sample domain.VideoSample) bool {
	if math.IsNaN(sample.CurrentTime) || math.IsInf(sample.CurrentTime, 0) {
		return false
	}
	if math.IsNaN(sample.Duration) || math.IsInf(sample.Duration, 0) {
		return false
	}
	return sample.CurrentTime >= 0 && sample.Duration > 0
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// closeSession appends the open session to the audit trail and resets the
// session bookkeeping. No-op when no session is open, so replayed pause or
// ended samples cannot append twice
func closeSession(next *domain.LessonProgressModel, endAt time.Time) {
	if next.SessionStartAt == nil {
		return
	}
	start := *next.SessionStartAt
	next.WatchSessions = append(next.WatchSessions, domain.WatchSession{
		ID:           fmt.Sprintf("%s:%d", next.LessonID, start.UnixMilli()),
		StartTime:    start,
		Duration:     endAt.Sub(start).Seconds(),
		ProgressMade: next.WatchedSeconds - next.SessionStartSeconds,
		PauseCount:   next.SessionPauseCount,
		SeekCount:    next.SessionSeekCount,
	})
	next.SessionStartAt = nil
	next.SessionStartSeconds = 0
	next.SessionPauseCount = 0
	next.SessionSeekCount = 0
}
