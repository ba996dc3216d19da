package enrollment

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/driver"
	"github.com/pot-code/lingua-lms/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCourseRepo struct {
	course  *domain.CourseModel
	lessons []*domain.LessonModel
}

func (r *stubCourseRepo) GetCourseByID(ctx context.Context, courseID string) (*domain.CourseModel, error) {
	if r.course != nil && r.course.ID == courseID {
		return r.course, nil
	}
	return nil, nil
}

func (r *stubCourseRepo) GetLessonByID(ctx context.Context, lessonID string) (*domain.LessonModel, error) {
	for _, lesson := range r.lessons {
		if lesson.ID == lessonID {
			return lesson, nil
		}
	}
	return nil, nil
}

func (r *stubCourseRepo) GetLessonsByCourse(ctx context.Context, courseID string) ([]*domain.LessonModel, error) {
	return r.lessons, nil
}

func newTestOrchestrator(t *testing.T) (*OrchestratorImpl, *EnrollmentRepository, domain.ProgressRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	rdb := driver.NewRedisClient(mr.Host(), port, "")

	enrollRepo := NewEnrollmentRepository(rdb)
	progressRepo := progress.NewProgressRepository(rdb)
	courses := &stubCourseRepo{
		course: &domain.CourseModel{ID: "c1", Title: "Spanish A1", UnlockSequential: true},
		lessons: []*domain.LessonModel{
			{ID: "l1", CourseID: "c1", Order: 1, Duration: 600},
			{ID: "l2", CourseID: "c1", Order: 2, Duration: 300},
		},
	}
	orchestrator := NewOrchestrator(enrollRepo, progressRepo, courses, zap.NewNop())
	return orchestrator, enrollRepo, progressRepo
}

func TestEnroll_CreatesActiveEnrollment(t *testing.T) {
	orchestrator, repo, _ := newTestOrchestrator(t)
	ctx := context.Background()

	enrollment, err := orchestrator.Enroll(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, enrollment.Status)

	stored, err := repo.GetEnrollment(ctx, "u1", "c1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Active())
}

func TestEnroll_UnknownCourse(t *testing.T) {
	orchestrator, _, _ := newTestOrchestrator(t)

	_, err := orchestrator.Enroll(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrNoSuchCourse)
}

func TestEnroll_DuplicateIsIdempotent(t *testing.T) {
	orchestrator, repo, progressRepo := newTestOrchestrator(t)
	ctx := context.Background()

	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	orchestrator.WithClock(func() time.Time { return first })
	_, err := orchestrator.Enroll(ctx, "u1", "c1")
	require.NoError(t, err)

	// progress accrues between the two enroll calls
	require.NoError(t, progressRepo.SaveLessonProgress(ctx, &domain.LessonProgressModel{
		UserID: "u1", CourseID: "c1", LessonID: "l1",
		WatchedSeconds: 120, TotalSeconds: 600,
	}))

	second := first.Add(48 * time.Hour)
	orchestrator.WithClock(func() time.Time { return second })
	_, err = orchestrator.Enroll(ctx, "u1", "c1")
	require.NoError(t, err)

	stored, err := repo.GetEnrollment(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, first, stored.EnrolledAt, "re-enrolling keeps the original enrollment date")
	assert.Equal(t, second, stored.UpdatedAt)

	record, err := progressRepo.GetLessonProgress(ctx, "u1", "c1", "l1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 120.0, record.WatchedSeconds, "re-enrolling never resets progress")
}

func TestOnPaymentVerified_ReplaySafe(t *testing.T) {
	orchestrator, repo, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := orchestrator.OnPaymentVerified(ctx, "u1", "c1", "pay_123")
	require.NoError(t, err)
	// the provider redelivers the webhook
	_, err = orchestrator.OnPaymentVerified(ctx, "u1", "c1", "pay_123")
	require.NoError(t, err)

	stored, err := repo.GetEnrollment(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "pay_123", stored.PaymentID)
	assert.Equal(t, domain.EnrollmentActive, stored.Status)
}

func TestOnPaymentVerified_BackfillsPaymentID(t *testing.T) {
	orchestrator, repo, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := orchestrator.Enroll(ctx, "u1", "c1")
	require.NoError(t, err)
	_, err = orchestrator.OnPaymentVerified(ctx, "u1", "c1", "pay_456")
	require.NoError(t, err)

	stored, err := repo.GetEnrollment(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "pay_456", stored.PaymentID)
}

func TestOnLessonCompleted_RecomputesAggregate(t *testing.T) {
	orchestrator, _, progressRepo := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := orchestrator.Enroll(ctx, "u1", "c1")
	require.NoError(t, err)

	require.NoError(t, orchestrator.OnLessonCompleted(ctx, &domain.LessonProgressModel{
		UserID: "u1", CourseID: "c1", LessonID: "l1",
		WatchedSeconds: 500, TotalSeconds: 600, IsCompleted: true,
	}))

	aggregate, err := progressRepo.GetUserProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, aggregate.OverallProgress)
	assert.Equal(t, []string{"l1"}, aggregate.LessonsCompleted)
	assert.Equal(t, "l2", aggregate.CurrentLessonID)
	assert.Equal(t, 500.0, aggregate.TotalWatchTime)
}

func TestOnLessonCompleted_FullCourseCompletesEnrollment(t *testing.T) {
	orchestrator, repo, _ := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := orchestrator.Enroll(ctx, "u1", "c1")
	require.NoError(t, err)

	for _, lessonID := range []string{"l1", "l2"} {
		require.NoError(t, orchestrator.OnLessonCompleted(ctx, &domain.LessonProgressModel{
			UserID: "u1", CourseID: "c1", LessonID: lessonID,
			WatchedSeconds: 600, TotalSeconds: 600, IsCompleted: true,
		}))
	}

	stored, err := repo.GetEnrollment(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCompleted, stored.Status)
	assert.True(t, stored.Active(), "a completed course stays accessible")

	// a replayed completion event leaves the completed status alone
	require.NoError(t, orchestrator.OnLessonCompleted(ctx, &domain.LessonProgressModel{
		UserID: "u1", CourseID: "c1", LessonID: "l2",
		WatchedSeconds: 600, TotalSeconds: 600, IsCompleted: true,
	}))
	stored, err = repo.GetEnrollment(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCompleted, stored.Status)
}
