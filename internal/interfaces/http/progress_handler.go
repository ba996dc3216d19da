package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/auth"
	"github.com/pot-code/lingua-lms/internal/infrastructure/validate"
)

// ProgressHandler video progress endpoints
type ProgressHandler struct {
	ProgressUseCase domain.ProgressUseCase
	JWTUtil         *auth.JWTUtil
	Validator       validate.Validator
}

// NewProgressHandler create a progress controller instance
func NewProgressHandler(
	ProgressUseCase domain.ProgressUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{
		ProgressUseCase: ProgressUseCase,
		JWTUtil:         JWTUtil,
		Validator:       Validator,
	}
}

// HandleSaveProgress accept one playback sample and return the updated
// progress snapshot
func (ph *ProgressHandler) HandleSaveProgress(c echo.Context) error {
	claims := ph.JWTUtil.GetContextToken(c)
	courseID := c.Param("course_id")
	lessonID := c.Param("lesson_id")

	sample := new(domain.VideoSample)
	if err := c.Bind(sample); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind playback sample").SetDetail(internal.Error()))
	}
	if err := ph.Validator.Struct(sample); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate sample", err))
	}

	progress, err := ph.ProgressUseCase.SaveVideoProgress(c.Request().Context(), claims.UID, courseID, lessonID, *sample)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSample) {
			return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, err.Error()))
		}
		if errors.Is(err, domain.ErrNoSuchLesson) {
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, progress)
}

// HandleGetUserProgress ...
func (ph *ProgressHandler) HandleGetUserProgress(c echo.Context) error {
	claims := ph.JWTUtil.GetContextToken(c)
	courseID := c.Param("course_id")

	progress, err := ph.ProgressUseCase.GetUserProgress(c.Request().Context(), claims.UID, courseID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, progress)
}

// HandleMarkCompleted manual completion, eg. a teacher marking a written
// exercise done
func (ph *ProgressHandler) HandleMarkCompleted(c echo.Context) error {
	claims := ph.JWTUtil.GetContextToken(c)
	courseID := c.Param("course_id")
	lessonID := c.Param("lesson_id")

	if err := ph.ProgressUseCase.MarkLessonCompleted(c.Request().Context(), claims.UID, courseID, lessonID); err != nil {
		if errors.Is(err, domain.ErrNoSuchLesson) {
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetSyncState report per-lesson durability status of buffered updates
func (ph *ProgressHandler) HandleGetSyncState(c echo.Context) error {
	claims := ph.JWTUtil.GetContextToken(c)
	return c.JSON(http.StatusOK, ph.ProgressUseCase.SyncState(claims.UID))
}
