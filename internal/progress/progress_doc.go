package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/driver"
)

// ProgressRepository document-store backed progress persistence.
//
// Layout: one document per user+course+lesson plus one aggregate summary
// document per user+course. The per-lesson documents are the single source
// of truth for lesson state, the summary only carries derived fields
type ProgressRepository struct {
	DB driver.DocumentDB
}

var _ domain.ProgressRepository = &ProgressRepository{}

func NewProgressRepository(db driver.DocumentDB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// summaryDoc derived aggregate fields, stored without the lesson map to
// avoid a second source of truth
type summaryDoc struct {
	OverallProgress  float64    `json:"overall_progress"`
	CurrentLessonID  string     `json:"current_lesson_id"`
	LessonsCompleted []string   `json:"lessons_completed"`
	TotalWatchTime   float64    `json:"total_watch_time"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

func lessonKey(userID, courseID, lessonID string) string {
	return fmt.Sprintf("progress:%s:%s:lesson:%s", userID, courseID, lessonID)
}

func lessonPattern(userID, courseID string) string {
	return fmt.Sprintf("progress:%s:%s:lesson:*", userID, courseID)
}

func summaryKey(userID, courseID string) string {
	return fmt.Sprintf("progress:%s:%s:summary", userID, courseID)
}

func (repo *ProgressRepository) GetLessonProgress(ctx context.Context, userID, courseID, lessonID string) (*domain.LessonProgressModel, error) {
	out := new(domain.LessonProgressModel)
	found, err := repo.DB.GetDoc(ctx, lessonKey(userID, courseID, lessonID), out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return out, nil
}

// SaveLessonProgress merges the incoming snapshot into the stored document.
// The merge is monotonic: the watched high-water mark and the completion
// latch never regress, so stale or replayed writes are harmless
func (repo *ProgressRepository) SaveLessonProgress(ctx context.Context, progress *domain.LessonProgressModel) error {
	key := lessonKey(progress.UserID, progress.CourseID, progress.LessonID)
	stored := new(domain.LessonProgressModel)
	found, err := repo.DB.GetDoc(ctx, key, stored)
	if err != nil {
		return err
	}
	if !found {
		stored = nil
	}
	return repo.DB.PutDoc(ctx, key, mergeMonotonic(stored, progress))
}

func mergeMonotonic(old, incoming *domain.LessonProgressModel) *domain.LessonProgressModel {
	if old == nil {
		return incoming
	}
	base, other := incoming, old
	if old.WatchedSeconds > incoming.WatchedSeconds {
		base, other = old, incoming
	}
	merged := base.Clone()
	merged.IsCompleted = old.IsCompleted || incoming.IsCompleted

	if old.TotalSeconds > 0 {
		merged.TotalSeconds = old.TotalSeconds
	}
	if merged.TotalSeconds > 0 {
		merged.CompletionPercentage = clampPercent(merged.WatchedSeconds / merged.TotalSeconds * 100)
	}
	if other.FirstWatchedAt != nil &&
		(merged.FirstWatchedAt == nil || other.FirstWatchedAt.Before(*merged.FirstWatchedAt)) {
		merged.FirstWatchedAt = other.FirstWatchedAt
	}
	// resume where playback actually was last, regardless of which snapshot
	// carries the high-water mark
	if other.LastWatchedAt != nil &&
		(merged.LastWatchedAt == nil || other.LastWatchedAt.After(*merged.LastWatchedAt)) {
		merged.ResumePosition = other.ResumePosition
		merged.LastWatchedAt = other.LastWatchedAt
		merged.LastState = other.LastState
	}
	if len(other.WatchSessions) > len(merged.WatchSessions) {
		merged.WatchSessions = make([]domain.WatchSession, len(other.WatchSessions))
		copy(merged.WatchSessions, other.WatchSessions)
	}
	return merged
}

func (repo *ProgressRepository) GetLessonProgressByCourse(ctx context.Context, userID, courseID string) ([]*domain.LessonProgressModel, error) {
	keys, err := repo.DB.ScanKeys(ctx, lessonPattern(userID, courseID))
	if err != nil {
		return nil, err
	}
	var result []*domain.LessonProgressModel
	for _, key := range keys {
		item := new(domain.LessonProgressModel)
		found, err := repo.DB.GetDoc(ctx, key, item)
		if err != nil {
			return nil, err
		}
		if found {
			result = append(result, item)
		}
	}
	return result, nil
}

func (repo *ProgressRepository) GetUserProgress(ctx context.Context, userID, courseID string) (*domain.UserProgressModel, error) {
	model := &domain.UserProgressModel{
		UserID:         userID,
		CourseID:       courseID,
		LessonProgress: make(map[string]*domain.LessonProgressModel),
	}

	summary := new(summaryDoc)
	if found, err := repo.DB.GetDoc(ctx, summaryKey(userID, courseID), summary); err != nil {
		return nil, err
	} else if found {
		model.OverallProgress = summary.OverallProgress
		model.CurrentLessonID = summary.CurrentLessonID
		model.LessonsCompleted = summary.LessonsCompleted
		model.TotalWatchTime = summary.TotalWatchTime
		model.UpdatedAt = summary.UpdatedAt
	}

	lessons, err := repo.GetLessonProgressByCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	for _, lp := range lessons {
		model.LessonProgress[lp.LessonID] = lp
	}
	return model, nil
}

func (repo *ProgressRepository) SaveUserProgress(ctx context.Context, progress *domain.UserProgressModel) error {
	return repo.DB.PutDoc(ctx, summaryKey(progress.UserID, progress.CourseID), &summaryDoc{
		OverallProgress:  progress.OverallProgress,
		CurrentLessonID:  progress.CurrentLessonID,
		LessonsCompleted: progress.LessonsCompleted,
		TotalWatchTime:   progress.TotalWatchTime,
		UpdatedAt:        progress.UpdatedAt,
	})
}

func (repo *ProgressRepository) EnsureUserProgress(ctx context.Context, userID, courseID string) error {
	now := time.Now()
	_, err := repo.DB.PutDocNX(ctx, summaryKey(userID, courseID), &summaryDoc{UpdatedAt: &now})
	return err
}
