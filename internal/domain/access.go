package domain

import "context"

// AccessReason machine-readable denial reason
type AccessReason string

const (
	ReasonNotAuthenticated  AccessReason = "not_authenticated"
	ReasonNotEnrolled       AccessReason = "not_enrolled"
	ReasonLessonLocked      AccessReason = "lesson_locked"
	ReasonVerificationError AccessReason = "verification_error"
)

// AccessDecision outcome of an access check. Denials carry a reason and,
// for locked lessons, the unmet prerequisite lesson id
type AccessDecision struct {
	HasAccess    bool         `json:"has_access"`
	Reason       AccessReason `json:"reason,omitempty"`
	Message      string       `json:"message,omitempty"`
	Prerequisite string       `json:"prerequisite,omitempty"`
}

// Grant allowed decision
func Grant() *AccessDecision {
	return &AccessDecision{HasAccess: true}
}

// Deny denied decision with reason
func Deny(reason AccessReason, message string) *AccessDecision {
	return &AccessDecision{Reason: reason, Message: message}
}

// AccessConfig toggles for the decision engine. All checks default to on
type AccessConfig struct {
	RequireAuthentication bool
	RequireEnrollment     bool
	CheckSequentialUnlock bool
	AllowPreviewLessons   bool
}

type AccessUseCase interface {
	// CheckCourseAccess runs authentication and enrollment checks only.
	// userID is empty for unauthenticated callers
	CheckCourseAccess(ctx context.Context, userID, courseID string) (*AccessDecision, error)
	CheckLessonAccess(ctx context.Context, userID, courseID, lessonID string) (*AccessDecision, error)
	// GetAccessibleLessons returns the ordered subset of course lessons the
	// user may currently view, for rendering lock state in one pass
	GetAccessibleLessons(ctx context.Context, userID, courseID string) ([]*LessonModel, error)
}
