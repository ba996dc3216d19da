package access

import (
	"context"
	"fmt"
	"sort"

	"github.com/pot-code/lingua-lms/internal/domain"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// AccessEngine decides lesson and course visibility from enrollment and
// persisted progress. Unlock state is derived at read time, never stored:
// a cached unlock flag could drift if a completion write failed after the
// cache was set.
//
// The engine fails closed: any error while reading enrollment or progress
// yields a verification_error denial, not a grant
type AccessEngine struct {
	Config               domain.AccessConfig
	CourseRepository     domain.CourseRepository
	EnrollmentRepository domain.EnrollmentRepository
	ProgressRepository   domain.ProgressRepository

	logger *zap.Logger
}

var _ domain.AccessUseCase = &AccessEngine{}

func NewAccessEngine(
	Config domain.AccessConfig,
	CourseRepository domain.CourseRepository,
	EnrollmentRepository domain.EnrollmentRepository,
	ProgressRepository domain.ProgressRepository,
	logger *zap.Logger,
) *AccessEngine {
	return &AccessEngine{
		Config:               Config,
		CourseRepository:     CourseRepository,
		EnrollmentRepository: EnrollmentRepository,
		ProgressRepository:   ProgressRepository,
		logger:               logger,
	}
}

// CheckCourseAccess authentication and enrollment checks only. The
// unauthenticated denial happens before any persistence read
func (ae *AccessEngine) CheckCourseAccess(ctx context.Context, userID, courseID string) (*domain.AccessDecision, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "AccessEngine.CheckCourseAccess", "service")
	defer apmSpan.End()

	if ae.Config.RequireAuthentication && userID == "" {
		return domain.Deny(domain.ReasonNotAuthenticated, "Sign in to access this course"), nil
	}
	return ae.checkEnrollment(ctx, userID, courseID)
}

// CheckLessonAccess full decision chain: authentication, preview bypass,
// enrollment, sequential unlock. Short-circuits at the first failing check
func (ae *AccessEngine) CheckLessonAccess(ctx context.Context, userID, courseID, lessonID string) (*domain.AccessDecision, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "AccessEngine.CheckLessonAccess", "service")
	defer apmSpan.End()

	lesson, err := ae.CourseRepository.GetLessonByID(ctx, lessonID)
	if err != nil {
		return ae.verificationFailure("lesson lookup", err), nil
	}
	if lesson == nil {
		return domain.Deny(domain.ReasonVerificationError, "Unknown lesson"), nil
	}

	// preview lessons are open to everyone, authenticated or not
	if lesson.IsPreview && ae.Config.AllowPreviewLessons {
		return domain.Grant(), nil
	}

	if ae.Config.RequireAuthentication && userID == "" {
		return domain.Deny(domain.ReasonNotAuthenticated, "Sign in to access this lesson"), nil
	}

	if decision, err := ae.checkEnrollment(ctx, userID, courseID); err != nil || !decision.HasAccess {
		return decision, err
	}

	if ae.Config.CheckSequentialUnlock {
		return ae.checkSequentialUnlock(ctx, userID, courseID, lesson)
	}
	return domain.Grant(), nil
}

func (ae *AccessEngine) checkEnrollment(ctx context.Context, userID, courseID string) (*domain.AccessDecision, error) {
	if !ae.Config.RequireEnrollment {
		return domain.Grant(), nil
	}
	enrollment, err := ae.EnrollmentRepository.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return ae.verificationFailure("enrollment lookup", err), nil
	}
	if !enrollment.Active() {
		return domain.Deny(domain.ReasonNotEnrolled, "Enroll in the course to access its lessons"), nil
	}
	return domain.Grant(), nil
}

// checkSequentialUnlock a lesson is accessible once every non-preview lesson
// before it is completed. The first lesson is always accessible
func (ae *AccessEngine) checkSequentialUnlock(ctx context.Context, userID, courseID string, target *domain.LessonModel) (*domain.AccessDecision, error) {
	course, err := ae.CourseRepository.GetCourseByID(ctx, courseID)
	if err != nil {
		return ae.verificationFailure("course lookup", err), nil
	}
	if course == nil || !course.UnlockSequential {
		return domain.Grant(), nil
	}

	lessons, err := ae.CourseRepository.GetLessonsByCourse(ctx, courseID)
	if err != nil {
		return ae.verificationFailure("lesson list lookup", err), nil
	}
	completed, err := ae.completedLessons(ctx, userID, courseID)
	if err != nil {
		return ae.verificationFailure("progress lookup", err), nil
	}

	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	for _, lesson := range lessons {
		if lesson.Order >= target.Order {
			break
		}
		if lesson.IsPreview {
			continue
		}
		if !completed[lesson.ID] {
			return &domain.AccessDecision{
				Reason:       domain.ReasonLessonLocked,
				Message:      fmt.Sprintf("Complete %q first", lesson.Title),
				Prerequisite: lesson.ID,
			}, nil
		}
	}
	return domain.Grant(), nil
}

// GetAccessibleLessons walks the ordered lesson chain once instead of
// re-deriving it per lesson
func (ae *AccessEngine) GetAccessibleLessons(ctx context.Context, userID, courseID string) ([]*domain.LessonModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "AccessEngine.GetAccessibleLessons", "service")
	defer apmSpan.End()

	lessons, err := ae.CourseRepository.GetLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })

	course, err := ae.CourseRepository.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrolled := false
	if userID != "" {
		enrollment, err := ae.EnrollmentRepository.GetEnrollment(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		enrolled = enrollment.Active()
	}

	var accessible []*domain.LessonModel
	if !enrolled && ae.Config.RequireEnrollment {
		if ae.Config.AllowPreviewLessons {
			for _, lesson := range lessons {
				if lesson.IsPreview {
					accessible = append(accessible, lesson)
				}
			}
		}
		return accessible, nil
	}

	sequential := ae.Config.CheckSequentialUnlock && course != nil && course.UnlockSequential
	if !sequential {
		return lessons, nil
	}

	completed, err := ae.completedLessons(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	chainIntact := true
	for _, lesson := range lessons {
		if chainIntact || (lesson.IsPreview && ae.Config.AllowPreviewLessons) {
			accessible = append(accessible, lesson)
		}
		if !lesson.IsPreview && !completed[lesson.ID] {
			chainIntact = false
		}
	}
	return accessible, nil
}

func (ae *AccessEngine) completedLessons(ctx context.Context, userID, courseID string) (map[string]bool, error) {
	records, err := ae.ProgressRepository.GetLessonProgressByCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(records))
	for _, record := range records {
		if record.IsCompleted {
			completed[record.LessonID] = true
		}
	}
	return completed, nil
}

func (ae *AccessEngine) verificationFailure(step string, err error) *domain.AccessDecision {
	ae.logger.Error("Access verification failed, denying",
		zap.String("step", step), zap.Error(err))
	return domain.Deny(domain.ReasonVerificationError, "Could not verify access, please retry")
}
