package access

import (
	"context"
	"errors"
	"testing"

	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCourseRepo struct {
	course  *domain.CourseModel
	lessons []*domain.LessonModel
	err     error
}

func (r *stubCourseRepo) GetCourseByID(ctx context.Context, courseID string) (*domain.CourseModel, error) {
	return r.course, r.err
}

func (r *stubCourseRepo) GetLessonByID(ctx context.Context, lessonID string) (*domain.LessonModel, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, lesson := range r.lessons {
		if lesson.ID == lessonID {
			return lesson, nil
		}
	}
	return nil, nil
}

func (r *stubCourseRepo) GetLessonsByCourse(ctx context.Context, courseID string) ([]*domain.LessonModel, error) {
	return r.lessons, r.err
}

type stubEnrollmentRepo struct {
	enrollment *domain.EnrollmentModel
	err        error
	calls      int
}

func (r *stubEnrollmentRepo) GetEnrollment(ctx context.Context, userID, courseID string) (*domain.EnrollmentModel, error) {
	r.calls++
	return r.enrollment, r.err
}

func (r *stubEnrollmentRepo) CreateEnrollment(ctx context.Context, enrollment *domain.EnrollmentModel) (bool, error) {
	return false, errors.New("not implemented")
}

func (r *stubEnrollmentRepo) UpdateEnrollment(ctx context.Context, enrollment *domain.EnrollmentModel) error {
	return errors.New("not implemented")
}

type stubProgressRepo struct {
	records []*domain.LessonProgressModel
	err     error
	calls   int
}

func (r *stubProgressRepo) GetLessonProgress(ctx context.Context, userID, courseID, lessonID string) (*domain.LessonProgressModel, error) {
	r.calls++
	return nil, r.err
}

func (r *stubProgressRepo) SaveLessonProgress(ctx context.Context, progress *domain.LessonProgressModel) error {
	return errors.New("not implemented")
}

func (r *stubProgressRepo) GetLessonProgressByCourse(ctx context.Context, userID, courseID string) ([]*domain.LessonProgressModel, error) {
	r.calls++
	return r.records, r.err
}

func (r *stubProgressRepo) GetUserProgress(ctx context.Context, userID, courseID string) (*domain.UserProgressModel, error) {
	r.calls++
	return nil, r.err
}

func (r *stubProgressRepo) SaveUserProgress(ctx context.Context, progress *domain.UserProgressModel) error {
	return errors.New("not implemented")
}

func (r *stubProgressRepo) EnsureUserProgress(ctx context.Context, userID, courseID string) error {
	return errors.New("not implemented")
}

func strictConfig() domain.AccessConfig {
	return domain.AccessConfig{
		RequireAuthentication: true,
		RequireEnrollment:     true,
		CheckSequentialUnlock: true,
		AllowPreviewLessons:   true,
	}
}

func sequentialCourse() *stubCourseRepo {
	return &stubCourseRepo{
		course: &domain.CourseModel{ID: "c1", Title: "Spanish A1", UnlockSequential: true},
		lessons: []*domain.LessonModel{
			{ID: "l0", CourseID: "c1", Title: "Greetings", Order: 0, IsPreview: true},
			{ID: "l1", CourseID: "c1", Title: "Numbers", Order: 1},
			{ID: "l2", CourseID: "c1", Title: "Colors", Order: 2},
			{ID: "l3", CourseID: "c1", Title: "Family", Order: 3},
		},
	}
}

func activeEnrollment() *stubEnrollmentRepo {
	return &stubEnrollmentRepo{enrollment: &domain.EnrollmentModel{
		UserID: "u1", CourseID: "c1", Status: domain.EnrollmentActive,
	}}
}

func completedProgress(lessonIDs ...string) *stubProgressRepo {
	repo := &stubProgressRepo{}
	for _, id := range lessonIDs {
		repo.records = append(repo.records, &domain.LessonProgressModel{
			UserID: "u1", CourseID: "c1", LessonID: id, IsCompleted: true,
		})
	}
	return repo
}

func newEngine(course *stubCourseRepo, enroll *stubEnrollmentRepo, progress *stubProgressRepo) *AccessEngine {
	return NewAccessEngine(strictConfig(), course, enroll, progress, zap.NewNop())
}

func TestCheckCourseAccess_UnauthenticatedReadsNothing(t *testing.T) {
	enroll := activeEnrollment()
	progress := completedProgress()
	engine := newEngine(sequentialCourse(), enroll, progress)

	decision, err := engine.CheckCourseAccess(context.Background(), "", "c1")
	require.NoError(t, err)

	assert.False(t, decision.HasAccess)
	assert.Equal(t, domain.ReasonNotAuthenticated, decision.Reason)
	assert.Zero(t, enroll.calls, "the denial must happen before any persistence read")
	assert.Zero(t, progress.calls)
}

func TestCheckCourseAccess_Enrolled(t *testing.T) {
	engine := newEngine(sequentialCourse(), activeEnrollment(), completedProgress())

	decision, err := engine.CheckCourseAccess(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)
}

func TestCheckCourseAccess_NotEnrolled(t *testing.T) {
	engine := newEngine(sequentialCourse(), &stubEnrollmentRepo{}, completedProgress())

	decision, err := engine.CheckCourseAccess(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.False(t, decision.HasAccess)
	assert.Equal(t, domain.ReasonNotEnrolled, decision.Reason)
}

func TestCheckLessonAccess_PreviewOpenToAnonymous(t *testing.T) {
	engine := newEngine(sequentialCourse(), &stubEnrollmentRepo{}, completedProgress())

	decision, err := engine.CheckLessonAccess(context.Background(), "", "c1", "l0")
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)
}

func TestCheckLessonAccess_SequentialChain(t *testing.T) {
	ctx := context.Background()

	t.Run("first non-preview lesson is open", func(t *testing.T) {
		engine := newEngine(sequentialCourse(), activeEnrollment(), completedProgress())
		decision, err := engine.CheckLessonAccess(ctx, "u1", "c1", "l1")
		require.NoError(t, err)
		assert.True(t, decision.HasAccess)
	})

	t.Run("later lesson locked until prerequisites complete", func(t *testing.T) {
		engine := newEngine(sequentialCourse(), activeEnrollment(), completedProgress("l1"))
		decision, err := engine.CheckLessonAccess(ctx, "u1", "c1", "l3")
		require.NoError(t, err)
		assert.False(t, decision.HasAccess)
		assert.Equal(t, domain.ReasonLessonLocked, decision.Reason)
		assert.Equal(t, "l2", decision.Prerequisite)
	})

	t.Run("chain completed unlocks the lesson", func(t *testing.T) {
		engine := newEngine(sequentialCourse(), activeEnrollment(), completedProgress("l1", "l2"))
		decision, err := engine.CheckLessonAccess(ctx, "u1", "c1", "l3")
		require.NoError(t, err)
		assert.True(t, decision.HasAccess)
	})

	t.Run("preview lessons do not gate the chain", func(t *testing.T) {
		// l0 is a preview and never completed, l2 must still unlock once l1 is done
		engine := newEngine(sequentialCourse(), activeEnrollment(), completedProgress("l1"))
		decision, err := engine.CheckLessonAccess(ctx, "u1", "c1", "l2")
		require.NoError(t, err)
		assert.True(t, decision.HasAccess)
	})
}

func TestCheckLessonAccess_FailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("enrollment store down", func(t *testing.T) {
		enroll := &stubEnrollmentRepo{err: errors.New("timeout")}
		engine := newEngine(sequentialCourse(), enroll, completedProgress())
		decision, err := engine.CheckLessonAccess(ctx, "u1", "c1", "l1")
		require.NoError(t, err)
		assert.False(t, decision.HasAccess)
		assert.Equal(t, domain.ReasonVerificationError, decision.Reason)
	})

	t.Run("progress store down", func(t *testing.T) {
		progress := &stubProgressRepo{err: errors.New("timeout")}
		engine := newEngine(sequentialCourse(), activeEnrollment(), progress)
		decision, err := engine.CheckLessonAccess(ctx, "u1", "c1", "l2")
		require.NoError(t, err)
		assert.False(t, decision.HasAccess)
		assert.Equal(t, domain.ReasonVerificationError, decision.Reason)
	})
}

func TestGetAccessibleLessons(t *testing.T) {
	ctx := context.Background()

	t.Run("unenrolled sees previews only", func(t *testing.T) {
		engine := newEngine(sequentialCourse(), &stubEnrollmentRepo{}, completedProgress())
		lessons, err := engine.GetAccessibleLessons(ctx, "u1", "c1")
		require.NoError(t, err)
		require.Len(t, lessons, 1)
		assert.Equal(t, "l0", lessons[0].ID)
	})

	t.Run("enrolled walks the unlock chain", func(t *testing.T) {
		engine := newEngine(sequentialCourse(), activeEnrollment(), completedProgress("l1"))
		lessons, err := engine.GetAccessibleLessons(ctx, "u1", "c1")
		require.NoError(t, err)

		var ids []string
		for _, lesson := range lessons {
			ids = append(ids, lesson.ID)
		}
		// l1 done unlocks l2, l2 incomplete keeps l3 locked
		assert.Equal(t, []string{"l0", "l1", "l2"}, ids)
	})

	t.Run("non sequential course exposes everything", func(t *testing.T) {
		course := sequentialCourse()
		course.course.UnlockSequential = false
		engine := newEngine(course, activeEnrollment(), completedProgress())
		lessons, err := engine.GetAccessibleLessons(ctx, "u1", "c1")
		require.NoError(t, err)
		assert.Len(t, lessons, 4)
	})
}
