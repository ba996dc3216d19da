package domain

import (
	"context"
	"time"
)

// PlaybackState lifecycle state reported by the video widget
type PlaybackState string

const (
	PlaybackReady   PlaybackState = "ready"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
	PlaybackEnded   PlaybackState = "ended"
	PlaybackError   PlaybackState = "error"
)

// VideoSample one position/duration sample emitted by the playback widget.
// The client is untrusted, samples may be duplicated, delayed or malformed
type VideoSample struct {
	CurrentTime float64       `json:"current_time" validate:"min=0"`
	Duration    float64       `json:"duration" validate:"gt=0"`
	State       PlaybackState `json:"state"`
	At          time.Time     `json:"at"`
}

// WatchSession append-only audit record of one continuous viewing span
type WatchSession struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	Duration     float64   `json:"duration"` // wall-clock seconds
	ProgressMade float64   `json:"progress_made"`
	PauseCount   int       `json:"pause_count"`
	SeekCount    int       `json:"seek_count"`
}

// LessonProgressModel per user+course+lesson progress document.
// WatchedSeconds is a high-water mark and only ever increases,
// IsCompleted is a one-way latch
type LessonProgressModel struct {
	UserID               string         `json:"user_id"`
	CourseID             string         `json:"course_id"`
	LessonID             string         `json:"lesson_id"`
	WatchedSeconds       float64        `json:"watched_seconds"`
	TotalSeconds         float64        `json:"total_seconds"`
	CompletionPercentage float64        `json:"completion_percentage"`
	IsCompleted          bool           `json:"is_completed"`
	ResumePosition       float64        `json:"resume_position"`
	FirstWatchedAt       *time.Time     `json:"first_watched_at,omitempty"`
	LastWatchedAt        *time.Time     `json:"last_watched_at,omitempty"`
	WatchSessions        []WatchSession `json:"watch_sessions,omitempty"`

	// open session bookkeeping, carried between samples
	SessionStartAt      *time.Time    `json:"session_start_at,omitempty"`
	SessionStartSeconds float64       `json:"session_start_seconds,omitempty"`
	SessionPauseCount   int           `json:"session_pause_count,omitempty"`
	SessionSeekCount    int           `json:"session_seek_count,omitempty"`
	LastState           PlaybackState `json:"last_state,omitempty"`
}

// Clone deep copy, the reducer never mutates its input
func (lp *LessonProgressModel) Clone() *LessonProgressModel {
	if lp == nil {
		return nil
	}
	next := *lp
	if lp.WatchSessions != nil {
		next.WatchSessions = make([]WatchSession, len(lp.WatchSessions))
		copy(next.WatchSessions, lp.WatchSessions)
	}
	return &next
}

// UserProgressModel per user+course aggregate document
type UserProgressModel struct {
	UserID           string                          `json:"user_id"`
	CourseID         string                          `json:"course_id"`
	LessonProgress   map[string]*LessonProgressModel `json:"lesson_progress"`
	OverallProgress  float64                         `json:"overall_progress"`
	CurrentLessonID  string                          `json:"current_lesson_id"`
	LessonsCompleted []string                        `json:"lessons_completed"`
	TotalWatchTime   float64                         `json:"total_watch_time"`
	UpdatedAt        *time.Time                      `json:"updated_at,omitempty"`
}

// SyncStatus durability state of buffered progress updates for one lesson
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// ProgressUpdate one queued entry of the offline durability buffer
type ProgressUpdate struct {
	Seq        uint64              `json:"seq"`
	UserID     string              `json:"user_id"`
	CourseID   string              `json:"course_id"`
	LessonID   string              `json:"lesson_id"`
	Snapshot   LessonProgressModel `json:"snapshot"`
	Timestamp  time.Time           `json:"timestamp"`
	RetryCount int                 `json:"retry_count"`
}

type ProgressRepository interface {
	// GetLessonProgress returns nil without error when no record exists
	GetLessonProgress(ctx context.Context, userID, courseID, lessonID string) (*LessonProgressModel, error)
	// SaveLessonProgress merges monotonically: the stored watched high-water
	// mark and completion latch never regress no matter the write order
	SaveLessonProgress(ctx context.Context, progress *LessonProgressModel) error
	GetLessonProgressByCourse(ctx context.Context, userID, courseID string) ([]*LessonProgressModel, error)
	GetUserProgress(ctx context.Context, userID, courseID string) (*UserProgressModel, error)
	SaveUserProgress(ctx context.Context, progress *UserProgressModel) error
	// EnsureUserProgress creates an empty aggregate if absent, never overwrites
	EnsureUserProgress(ctx context.Context, userID, courseID string) error
}

type ProgressUseCase interface {
	SaveVideoProgress(ctx context.Context, userID, courseID, lessonID string, sample VideoSample) (*LessonProgressModel, error)
	GetUserProgress(ctx context.Context, userID, courseID string) (*UserProgressModel, error)
	MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID string) error
	SyncState(userID string) map[string]SyncStatus
}
