package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/auth"
	"github.com/pot-code/lingua-lms/internal/infrastructure/validate"
)

// EnrollmentHandler enrollment endpoints
type EnrollmentHandler struct {
	EnrollmentUseCase domain.EnrollmentUseCase
	JWTUtil           *auth.JWTUtil
	Validator         validate.Validator
}

// NewEnrollmentHandler create an enrollment controller instance
func NewEnrollmentHandler(
	EnrollmentUseCase domain.EnrollmentUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *EnrollmentHandler {
	return &EnrollmentHandler{
		EnrollmentUseCase: EnrollmentUseCase,
		JWTUtil:           JWTUtil,
		Validator:         Validator,
	}
}

type enrollRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// HandleEnroll enroll the caller into a course. Retrying is safe, the
// operation is keyed on user and course
func (eh *EnrollmentHandler) HandleEnroll(c echo.Context) error {
	claims := eh.JWTUtil.GetContextToken(c)

	post := new(enrollRequest)
	if err := c.Bind(post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind enrollment").SetDetail(internal.Error()))
	}
	if err := eh.Validator.Struct(post); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", err))
	}

	enrollment, err := eh.EnrollmentUseCase.Enroll(c.Request().Context(), claims.UID, post.CourseID)
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchCourse) {
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, enrollment)
}
