package progress

import (
	"context"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/progress/offline"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// ProgressUseCaseImpl offline-first progress tracking: reducer output is
// written to the durable queue before any network write, the flusher drains
// it in the background. Persistence trouble never interrupts playback
type ProgressUseCaseImpl struct {
	ProgressRepository domain.ProgressRepository
	CourseRepository   domain.CourseRepository
	Orchestrator       domain.EnrollmentUseCase
	Queue              *offline.DurableQueue
	Flusher            *offline.Flusher
	Policy             Policy

	logger *zap.Logger
	now    func() time.Time
}

var _ domain.ProgressUseCase = &ProgressUseCaseImpl{}

func NewProgressUseCase(
	ProgressRepository domain.ProgressRepository,
	CourseRepository domain.CourseRepository,
	Orchestrator domain.EnrollmentUseCase,
	Queue *offline.DurableQueue,
	Flusher *offline.Flusher,
	Policy Policy,
	logger *zap.Logger,
) *ProgressUseCaseImpl {
	return &ProgressUseCaseImpl{
		ProgressRepository: ProgressRepository,
		CourseRepository:   CourseRepository,
		Orchestrator:       Orchestrator,
		Queue:              Queue,
		Flusher:            Flusher,
		Policy:             Policy,
		logger:             logger,
		now:                time.Now,
	}
}

// WithClock substitute the time source, for tests
func (pu *ProgressUseCaseImpl) WithClock(now func() time.Time) *ProgressUseCaseImpl {
	pu.now = now
	return pu
}

// SaveVideoProgress folds one playback sample into the lesson progress and
// buffers the result for durable delivery
func (pu *ProgressUseCaseImpl) SaveVideoProgress(ctx context.Context, userID, courseID, lessonID string, sample domain.VideoSample) (*domain.LessonProgressModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.SaveVideoProgress", "service")
	defer apmSpan.End()

	if sample.At.IsZero() {
		sample.At = pu.now()
	}

	prev := pu.latestKnown(ctx, userID, courseID, lessonID)

	policy := pu.Policy
	if course, err := pu.CourseRepository.GetCourseByID(ctx, courseID); err != nil {
		// catalog trouble must not block playback, fall back to the default
		pu.logger.Warn("Failed to read course threshold", zap.String("course.id", courseID), zap.Error(err))
	} else {
		policy.Threshold = course.Threshold()
	}

	next, crossed, err := Reduce(prev, sample, policy)
	if err != nil {
		return prev, err
	}
	next.UserID = userID
	next.CourseID = courseID
	next.LessonID = lessonID

	update := &domain.ProgressUpdate{
		UserID:    userID,
		CourseID:  courseID,
		LessonID:  lessonID,
		Snapshot:  *next,
		Timestamp: pu.now(),
	}
	if err := pu.Queue.Enqueue(update); err != nil {
		// local disk trouble: try the store directly rather than lose the sample
		pu.logger.Error("Failed to buffer progress update", zap.Error(err))
		if err := pu.ProgressRepository.SaveLessonProgress(ctx, next); err != nil {
			pu.logger.Error("Direct progress write failed as well", zap.Error(err))
		}
	} else {
		pu.Flusher.Kick()
	}

	if crossed {
		if err := pu.Orchestrator.OnLessonCompleted(ctx, next); err != nil {
			// aggregate recompute is retryable on the next completion or read,
			// playback goes on
			pu.logger.Error("Failed to orchestrate lesson completion",
				zap.String("lesson.id", lessonID), zap.Error(err))
		}
	}
	return next, nil
}

// latestKnown picks the freshest snapshot between the store and the local
// buffer. The local high-water mark is authoritative while flushes lag
func (pu *ProgressUseCaseImpl) latestKnown(ctx context.Context, userID, courseID, lessonID string) *domain.LessonProgressModel {
	stored, err := pu.ProgressRepository.GetLessonProgress(ctx, userID, courseID, lessonID)
	if err != nil {
		pu.logger.Warn("Failed to read stored progress, using local buffer",
			zap.String("lesson.id", lessonID), zap.Error(err))
	}
	buffered, qerr := pu.Queue.Latest(userID, lessonID)
	if qerr != nil {
		pu.logger.Warn("Failed to read buffered progress", zap.Error(qerr))
	}
	if buffered == nil {
		return stored
	}
	if stored == nil || buffered.Snapshot.WatchedSeconds >= stored.WatchedSeconds {
		snapshot := buffered.Snapshot
		return &snapshot
	}
	return stored
}

func (pu *ProgressUseCaseImpl) GetUserProgress(ctx context.Context, userID, courseID string) (*domain.UserProgressModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetUserProgress", "service")
	defer apmSpan.End()

	return pu.ProgressRepository.GetUserProgress(ctx, userID, courseID)
}

// MarkLessonCompleted sets the completion latch directly, bypassing the
// threshold. Errors propagate: the caller asked for a state change
func (pu *ProgressUseCaseImpl) MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID string) error {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.MarkLessonCompleted", "service")
	defer apmSpan.End()

	current, err := pu.ProgressRepository.GetLessonProgress(ctx, userID, courseID, lessonID)
	if err != nil {
		return err
	}
	if current == nil {
		now := pu.now()
		current = &domain.LessonProgressModel{
			UserID:         userID,
			CourseID:       courseID,
			LessonID:       lessonID,
			FirstWatchedAt: &now,
			LastWatchedAt:  &now,
		}
		if lesson, err := pu.CourseRepository.GetLessonByID(ctx, lessonID); err == nil {
			current.TotalSeconds = lesson.Duration
		}
	}
	if current.IsCompleted {
		return nil
	}
	current.IsCompleted = true
	if err := pu.ProgressRepository.SaveLessonProgress(ctx, current); err != nil {
		return err
	}
	return pu.Orchestrator.OnLessonCompleted(ctx, current)
}

// SyncState exposes the offline buffer status for a "not saved" indicator
func (pu *ProgressUseCaseImpl) SyncState(userID string) map[string]domain.SyncStatus {
	return pu.Flusher.SyncState(userID)
}
