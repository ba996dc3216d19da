package enrollment

import (
	"context"
	"sort"
	"time"

	"github.com/pot-code/lingua-lms/internal/domain"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// OrchestratorImpl enrollment lifecycle plus completion bookkeeping.
//
// Every write path is idempotent: enroll twice, replay a payment webhook or
// redeliver a completion event and the stored state is the same. Cross
// document consistency is best-effort, each document write is individually
// retryable and a failure never rolls the others back
type OrchestratorImpl struct {
	EnrollmentRepository domain.EnrollmentRepository
	ProgressRepository   domain.ProgressRepository
	CourseRepository     domain.CourseRepository

	logger *zap.Logger
	now    func() time.Time
}

var _ domain.EnrollmentUseCase = &OrchestratorImpl{}

func NewOrchestrator(
	EnrollmentRepository domain.EnrollmentRepository,
	ProgressRepository domain.ProgressRepository,
	CourseRepository domain.CourseRepository,
	logger *zap.Logger,
) *OrchestratorImpl {
	return &OrchestratorImpl{
		EnrollmentRepository: EnrollmentRepository,
		ProgressRepository:   ProgressRepository,
		CourseRepository:     CourseRepository,
		logger:               logger,
		now:                  time.Now,
	}
}

// WithClock substitute the time source, for tests
func (eo *OrchestratorImpl) WithClock(now func() time.Time) *OrchestratorImpl {
	eo.now = now
	return eo
}

// Enroll creates an active enrollment and an empty progress aggregate.
// A duplicate call is treated as success and never resets progress
func (eo *OrchestratorImpl) Enroll(ctx context.Context, userID, courseID string) (*domain.EnrollmentModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "OrchestratorImpl.Enroll", "service")
	defer apmSpan.End()

	return eo.enroll(ctx, userID, courseID, "")
}

// OnPaymentVerified same effect as Enroll stamped with the payment
// reference. Payment webhooks deliver at least once, so re-invocation for
// an existing enrollment is a no-op beyond a timestamp refresh
func (eo *OrchestratorImpl) OnPaymentVerified(ctx context.Context, userID, courseID, paymentID string) (*domain.EnrollmentModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "OrchestratorImpl.OnPaymentVerified", "service")
	defer apmSpan.End()

	return eo.enroll(ctx, userID, courseID, paymentID)
}

func (eo *OrchestratorImpl) enroll(ctx context.Context, userID, courseID, paymentID string) (*domain.EnrollmentModel, error) {
	if course, err := eo.CourseRepository.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	} else if course == nil {
		return nil, domain.ErrNoSuchCourse
	}

	now := eo.now()
	candidate := &domain.EnrollmentModel{
		UserID:     userID,
		CourseID:   courseID,
		PaymentID:  paymentID,
		Status:     domain.EnrollmentActive,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	created, err := eo.EnrollmentRepository.CreateEnrollment(ctx, candidate)
	if err != nil {
		return nil, err
	}

	enrollment := candidate
	if !created {
		existing, err := eo.EnrollmentRepository.GetEnrollment(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		existing.UpdatedAt = now
		if existing.PaymentID == "" {
			existing.PaymentID = paymentID
		}
		if err := eo.EnrollmentRepository.UpdateEnrollment(ctx, existing); err != nil {
			return nil, err
		}
		enrollment = existing
	}

	if err := eo.ProgressRepository.EnsureUserProgress(ctx, userID, courseID); err != nil {
		// enrollment stands on its own, the aggregate is created lazily on
		// the first progress write as well
		eo.logger.Warn("Failed to seed user progress", zap.String("user.id", userID),
			zap.String("course.id", courseID), zap.Error(err))
	}
	return enrollment, nil
}

// OnLessonCompleted persists the completion latch and recomputes the course
// aggregate. Unlocking is not stored anywhere, the access engine derives it
// from this progress at read time
func (eo *OrchestratorImpl) OnLessonCompleted(ctx context.Context, progress *domain.LessonProgressModel) error {
	apmSpan, ctx := apm.StartSpan(ctx, "OrchestratorImpl.OnLessonCompleted", "service")
	defer apmSpan.End()

	if err := eo.ProgressRepository.SaveLessonProgress(ctx, progress); err != nil {
		return err
	}

	lessons, err := eo.CourseRepository.GetLessonsByCourse(ctx, progress.CourseID)
	if err != nil {
		return err
	}
	records, err := eo.ProgressRepository.GetLessonProgressByCourse(ctx, progress.UserID, progress.CourseID)
	if err != nil {
		return err
	}

	var completed []string
	var totalWatch float64
	completedSet := make(map[string]bool)
	for _, record := range records {
		totalWatch += record.WatchedSeconds
		if record.IsCompleted {
			completed = append(completed, record.LessonID)
			completedSet[record.LessonID] = true
		}
	}
	sort.Strings(completed)

	overall := 0.0
	if len(lessons) > 0 {
		overall = float64(len(completed)) / float64(len(lessons)) * 100
	}

	now := eo.now()
	aggregate := &domain.UserProgressModel{
		UserID:           progress.UserID,
		CourseID:         progress.CourseID,
		OverallProgress:  overall,
		CurrentLessonID:  nextLessonID(lessons, completedSet),
		LessonsCompleted: completed,
		TotalWatchTime:   totalWatch,
		UpdatedAt:        &now,
	}
	if err := eo.ProgressRepository.SaveUserProgress(ctx, aggregate); err != nil {
		return err
	}

	if overall >= 100 {
		if err := eo.completeEnrollment(ctx, progress.UserID, progress.CourseID); err != nil {
			// best-effort, the aggregate already records full completion
			eo.logger.Warn("Failed to mark enrollment completed", zap.Error(err))
		}
	}
	return nil
}

// nextLessonID first lesson in course order that is not completed yet
func nextLessonID(lessons []*domain.LessonModel, completed map[string]bool) string {
	sorted := make([]*domain.LessonModel, len(lessons))
	copy(sorted, lessons)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	for _, lesson := range sorted {
		if !completed[lesson.ID] {
			return lesson.ID
		}
	}
	if len(sorted) > 0 {
		return sorted[len(sorted)-1].ID
	}
	return ""
}

func (eo *OrchestratorImpl) completeEnrollment(ctx context.Context, userID, courseID string) error {
	enrollment, err := eo.EnrollmentRepository.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if enrollment == nil || enrollment.Status != domain.EnrollmentActive {
		return nil
	}
	enrollment.Status = domain.EnrollmentCompleted
	enrollment.UpdatedAt = eo.now()
	return eo.EnrollmentRepository.UpdateEnrollment(ctx, enrollment)
}
