package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/auth"
)

// AccessHandler course/lesson access decisions.
//
// Routes using it are mounted behind OptionalToken, anonymous callers get a
// decision too (previews stay reachable without signing in)
type AccessHandler struct {
	AccessUseCase domain.AccessUseCase
	JWTUtil       *auth.JWTUtil
}

// NewAccessHandler create an access controller instance
func NewAccessHandler(AccessUseCase domain.AccessUseCase, JWTUtil *auth.JWTUtil) *AccessHandler {
	return &AccessHandler{
		AccessUseCase: AccessUseCase,
		JWTUtil:       JWTUtil,
	}
}

func (ah *AccessHandler) userID(c echo.Context) string {
	if claims := ah.JWTUtil.GetContextToken(c); claims != nil {
		return claims.UID
	}
	return ""
}

// HandleCheckCourseAccess ...
func (ah *AccessHandler) HandleCheckCourseAccess(c echo.Context) error {
	decision, err := ah.AccessUseCase.CheckCourseAccess(c.Request().Context(), ah.userID(c), c.Param("course_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchCourse) {
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, decision)
}

// HandleCheckLessonAccess ...
func (ah *AccessHandler) HandleCheckLessonAccess(c echo.Context) error {
	decision, err := ah.AccessUseCase.CheckLessonAccess(c.Request().Context(),
		ah.userID(c), c.Param("course_id"), c.Param("lesson_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchLesson) || errors.Is(err, domain.ErrNoSuchCourse) {
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, decision)
}

// HandleGetAccessibleLessons ordered lessons the caller may view right now
func (ah *AccessHandler) HandleGetAccessibleLessons(c echo.Context) error {
	lessons, err := ah.AccessUseCase.GetAccessibleLessons(c.Request().Context(), ah.userID(c), c.Param("course_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchCourse) {
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, lessons)
}
