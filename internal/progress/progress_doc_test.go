package progress

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *ProgressRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return NewProgressRepository(driver.NewRedisClient(mr.Host(), port, ""))
}

func lessonRecord(watched float64, completed bool, last time.Time) *domain.LessonProgressModel {
	return &domain.LessonProgressModel{
		UserID:         "u1",
		CourseID:       "c1",
		LessonID:       "l1",
		WatchedSeconds: watched,
		TotalSeconds:   600,
		IsCompleted:    completed,
		ResumePosition: watched,
		LastWatchedAt:  &last,
	}
}

func TestProgressRepository_SaveIsMonotonic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveLessonProgress(ctx, lessonRecord(300, false, t0)))
	// a delayed flush delivers an older snapshot with a later local change time
	require.NoError(t, repo.SaveLessonProgress(ctx, lessonRecord(100, false, t0.Add(time.Minute))))

	stored, err := repo.GetLessonProgress(ctx, "u1", "c1", "l1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 300.0, stored.WatchedSeconds, "high-water mark must not regress")
	assert.Equal(t, 100.0, stored.ResumePosition, "resume follows the latest playback position")
	assert.Equal(t, 50.0, stored.CompletionPercentage)
}

func TestProgressRepository_CompletionLatchSurvivesStaleWrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveLessonProgress(ctx, lessonRecord(500, true, t0)))
	require.NoError(t, repo.SaveLessonProgress(ctx, lessonRecord(200, false, t0.Add(time.Second))))

	stored, err := repo.GetLessonProgress(ctx, "u1", "c1", "l1")
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
}

func TestProgressRepository_GetLessonProgressAbsent(t *testing.T) {
	repo := newTestRepository(t)

	stored, err := repo.GetLessonProgress(context.Background(), "u1", "c1", "nope")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestProgressRepository_GetUserProgressComposesDocuments(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := lessonRecord(600, true, t0)
	second := lessonRecord(30, false, t0)
	second.LessonID = "l2"
	require.NoError(t, repo.SaveLessonProgress(ctx, first))
	require.NoError(t, repo.SaveLessonProgress(ctx, second))

	now := t0
	require.NoError(t, repo.SaveUserProgress(ctx, &domain.UserProgressModel{
		UserID:           "u1",
		CourseID:         "c1",
		OverallProgress:  50,
		CurrentLessonID:  "l2",
		LessonsCompleted: []string{"l1"},
		TotalWatchTime:   630,
		UpdatedAt:        &now,
	}))

	model, err := repo.GetUserProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, model.OverallProgress)
	assert.Equal(t, "l2", model.CurrentLessonID)
	assert.Len(t, model.LessonProgress, 2)
	assert.True(t, model.LessonProgress["l1"].IsCompleted)
}

func TestProgressRepository_EnsureUserProgressNeverOverwrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	now := t0
	require.NoError(t, repo.SaveUserProgress(ctx, &domain.UserProgressModel{
		UserID:          "u1",
		CourseID:        "c1",
		OverallProgress: 75,
		UpdatedAt:       &now,
	}))
	require.NoError(t, repo.EnsureUserProgress(ctx, "u1", "c1"))

	model, err := repo.GetUserProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, model.OverallProgress)
}
