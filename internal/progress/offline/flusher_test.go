package offline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyRepo fails the first failures writes, then accepts
type flakyRepo struct {
	mu       sync.Mutex
	failures int
	saved    []*domain.LessonProgressModel
}

func (r *flakyRepo) SaveLessonProgress(ctx context.Context, progress *domain.LessonProgressModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("connection refused")
	}
	r.saved = append(r.saved, progress)
	return nil
}

func (r *flakyRepo) GetLessonProgress(ctx context.Context, userID, courseID, lessonID string) (*domain.LessonProgressModel, error) {
	return nil, nil
}

func (r *flakyRepo) GetLessonProgressByCourse(ctx context.Context, userID, courseID string) ([]*domain.LessonProgressModel, error) {
	return nil, nil
}

func (r *flakyRepo) GetUserProgress(ctx context.Context, userID, courseID string) (*domain.UserProgressModel, error) {
	return nil, nil
}

func (r *flakyRepo) SaveUserProgress(ctx context.Context, progress *domain.UserProgressModel) error {
	return nil
}

func (r *flakyRepo) EnsureUserProgress(ctx context.Context, userID, courseID string) error {
	return nil
}

var _ domain.ProgressRepository = &flakyRepo{}

func fastRetry(attempts uint64) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestFlusher_RetriesUntilDelivered(t *testing.T) {
	q, _ := newTestQueue(t)
	repo := &flakyRepo{failures: 2}
	f := NewFlusher(q, repo, fastRetry(5), zap.NewNop())

	require.NoError(t, q.Enqueue(update("u1", "l1", 10)))
	require.NoError(t, q.Enqueue(update("u1", "l1", 90)))

	result := f.FlushLesson(context.Background(), Ref{UserID: "u1", LessonID: "l1"})

	require.NoError(t, result.Err)
	assert.True(t, result.Synced)
	assert.Equal(t, 3, result.Attempts)

	// only the high-water snapshot is written, superseded entries are dropped
	require.Len(t, repo.saved, 1)
	assert.Equal(t, 90.0, repo.saved[0].WatchedSeconds)

	pending, err := q.Pending("u1")
	require.NoError(t, err)
	assert.Empty(t, pending, "delivered entries are acknowledged")
	assert.Equal(t, domain.SyncSynced, f.SyncState("u1")["l1"])
}

func TestFlusher_ExhaustedRetriesKeepEntry(t *testing.T) {
	q, _ := newTestQueue(t)
	repo := &flakyRepo{failures: 1 << 30}
	f := NewFlusher(q, repo, fastRetry(3), zap.NewNop())

	require.NoError(t, q.Enqueue(update("u1", "l1", 10)))

	result := f.FlushLesson(context.Background(), Ref{UserID: "u1", LessonID: "l1"})

	require.Error(t, result.Err)
	assert.False(t, result.Synced)
	assert.Equal(t, 3, result.Attempts)

	// the entry is never dropped, it waits for the next cycle
	latest, err := q.Latest("u1", "l1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.RetryCount)
	assert.Equal(t, domain.SyncError, f.SyncState("u1")["l1"])
}

func TestFlusher_FlushAllCoversEveryLesson(t *testing.T) {
	q, _ := newTestQueue(t)
	repo := &flakyRepo{}
	f := NewFlusher(q, repo, fastRetry(2), zap.NewNop())

	require.NoError(t, q.Enqueue(update("u1", "l1", 10)))
	require.NoError(t, q.Enqueue(update("u1", "l2", 20)))
	require.NoError(t, q.Enqueue(update("u2", "l9", 30)))

	results := f.FlushAll(context.Background())

	require.Len(t, results, 3)
	for _, result := range results {
		assert.True(t, result.Synced)
	}
	assert.Len(t, repo.saved, 3)
}

func TestFlusher_SyncStatePendingBeforeFirstFlush(t *testing.T) {
	q, _ := newTestQueue(t)
	f := NewFlusher(q, &flakyRepo{}, fastRetry(2), zap.NewNop())

	require.NoError(t, q.Enqueue(update("u1", "l1", 10)))

	assert.Equal(t, domain.SyncPending, f.SyncState("u1")["l1"])
}
