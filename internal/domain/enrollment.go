package domain

import (
	"context"
	"time"
)

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentSuspended EnrollmentStatus = "suspended"
)

type EnrollmentModel struct {
	UserID     string           `json:"user_id"`
	CourseID   string           `json:"course_id"`
	PaymentID  string           `json:"payment_id,omitempty"`
	Status     EnrollmentStatus `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Active reports whether the enrollment currently grants course access
func (e *EnrollmentModel) Active() bool {
	if e == nil {
		return false
	}
	return e.Status == EnrollmentActive || e.Status == EnrollmentCompleted
}

// EnrollmentKey deterministic document key, makes enroll idempotent
func EnrollmentKey(userID, courseID string) string {
	return userID + "_" + courseID
}

type EnrollmentRepository interface {
	// GetEnrollment returns nil without error when no record exists
	GetEnrollment(ctx context.Context, userID, courseID string) (*EnrollmentModel, error)
	// CreateEnrollment is a set-if-absent write, created reports whether
	// this call inserted the record
	CreateEnrollment(ctx context.Context, enrollment *EnrollmentModel) (created bool, err error)
	UpdateEnrollment(ctx context.Context, enrollment *EnrollmentModel) error
}

type EnrollmentUseCase interface {
	Enroll(ctx context.Context, userID, courseID string) (*EnrollmentModel, error)
	OnPaymentVerified(ctx context.Context, userID, courseID, paymentID string) (*EnrollmentModel, error)
	// OnLessonCompleted reacts to a lesson crossing its completion threshold:
	// persists the latch and recomputes the per-course aggregate
	OnLessonCompleted(ctx context.Context, progress *LessonProgressModel) error
}
