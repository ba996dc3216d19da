package offline

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pot-code/lingua-lms/internal/domain"
	"go.uber.org/zap"
)

// RetryPolicy explicit retry parameters for one flush attempt cycle
type RetryPolicy struct {
	MaxAttempts uint64        // total delivery attempts per cycle, >=1
	BaseDelay   time.Duration // initial backoff delay, doubled and jittered
	MaxDelay    time.Duration // backoff cap
}

// DefaultRetryPolicy .
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// FlushResult typed outcome of flushing one lesson queue
type FlushResult struct {
	UserID   string
	LessonID string
	Attempts int
	Synced   bool
	Skipped  bool // another flush for this lesson was already in flight
	Err      error
}

// Flusher asynchronously drains the durable queue into the progress
// repository. One flush in progress per lesson at a time, so concurrent
// cycles never race on the same document. Exhausted retries keep the entry
// queued and mark it as error, they never drop it
type Flusher struct {
	queue  *DurableQueue
	repo   domain.ProgressRepository
	policy RetryPolicy
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[Ref]bool
	status   map[Ref]domain.SyncStatus
	kick     chan struct{}
}

func NewFlusher(queue *DurableQueue, repo domain.ProgressRepository, policy RetryPolicy, logger *zap.Logger) *Flusher {
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy()
	}
	return &Flusher{
		queue:    queue,
		repo:     repo,
		policy:   policy,
		logger:   logger,
		inflight: make(map[Ref]bool),
		status:   make(map[Ref]domain.SyncStatus),
		kick:     make(chan struct{}, 1),
	}
}

// Kick schedules a flush cycle without blocking the caller
func (f *Flusher) Kick() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled. The loop lifetime is tied to
// the process, not to any playback component, so navigating away from a
// lesson does not lose a pending save
func (f *Flusher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.kick:
		case <-ticker.C:
		}
		f.FlushAll(ctx)
	}
}

// FlushAll flushes every lesson queue that has pending entries
func (f *Flusher) FlushAll(ctx context.Context) []FlushResult {
	refs, err := f.queue.PendingRefs()
	if err != nil {
		f.logger.Error("Failed to list pending updates", zap.Error(err))
		return nil
	}
	var results []FlushResult
	for _, ref := range refs {
		results = append(results, f.FlushLesson(ctx, ref))
	}
	return results
}

// FlushLesson delivers the newest buffered update for one lesson, retrying
// with exponential backoff. Superseded entries are acknowledged along with
// it rather than replayed: the repository merge is monotonic and idempotent,
// so only the highest watermark matters
func (f *Flusher) FlushLesson(ctx context.Context, ref Ref) FlushResult {
	result := FlushResult{UserID: ref.UserID, LessonID: ref.LessonID}

	f.mu.Lock()
	if f.inflight[ref] {
		f.mu.Unlock()
		result.Skipped = true
		return result
	}
	f.inflight[ref] = true
	f.status[ref] = domain.SyncSyncing
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.inflight, ref)
		f.mu.Unlock()
	}()

	latest, err := f.queue.Latest(ref.UserID, ref.LessonID)
	if err != nil {
		result.Err = err
		f.setStatus(ref, domain.SyncError)
		return result
	}
	if latest == nil {
		result.Synced = true
		f.setStatus(ref, domain.SyncSynced)
		return result
	}

	op := func() error {
		result.Attempts++
		return f.repo.SaveLessonProgress(ctx, &latest.Snapshot)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.policy.BaseDelay
	bo.MaxInterval = f.policy.MaxDelay
	bo.MaxElapsedTime = 0
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, f.policy.MaxAttempts-1), ctx))
	if err != nil {
		// entry stays queued for the next cycle
		if qerr := f.queue.IncrementRetry(latest); qerr != nil {
			f.logger.Error("Failed to record retry count", zap.Error(qerr))
		}
		f.logger.Warn("Progress flush failed, update kept in queue",
			zap.String("user.id", ref.UserID),
			zap.String("lesson.id", ref.LessonID),
			zap.Int("attempts", result.Attempts),
			zap.Error(err),
		)
		result.Err = err
		f.setStatus(ref, domain.SyncError)
		return result
	}

	if err := f.queue.AckThrough(ref.UserID, ref.LessonID, latest.Seq); err != nil {
		// the write landed, a failed ack only means a redundant redelivery
		f.logger.Warn("Failed to acknowledge flushed updates", zap.Error(err))
	}
	result.Synced = true
	f.setStatus(ref, domain.SyncSynced)
	return result
}

// SyncState reports the per-lesson durability status for a user. Lessons
// with buffered entries and no flush attempt yet show as pending
func (f *Flusher) SyncState(userID string) map[string]domain.SyncStatus {
	state := make(map[string]domain.SyncStatus)
	if pending, err := f.queue.Pending(userID); err == nil {
		for _, u := range pending {
			state[u.LessonID] = domain.SyncPending
		}
	}
	f.mu.Lock()
	for ref, status := range f.status {
		if ref.UserID != userID {
			continue
		}
		if status != domain.SyncSynced || state[ref.LessonID] == "" {
			state[ref.LessonID] = status
		}
	}
	f.mu.Unlock()
	return state
}

func (f *Flusher) setStatus(ref Ref, status domain.SyncStatus) {
	f.mu.Lock()
	f.status[ref] = status
	f.mu.Unlock()
}
