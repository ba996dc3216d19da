package http

import (
	"github.com/labstack/echo/v4"
)

func v1Endpoint(
	UserHandler *UserHandler,
	ProgressHandler *ProgressHandler,
	AccessHandler *AccessHandler,
	EnrollmentHandler *EnrollmentHandler,
	WebhookHandler *WebhookHandler,
	WSHandler *WSProgressHandler,
	jwtMiddleware echo.MiddlewareFunc,
	optionalJwtMiddleware echo.MiddlewareFunc,
	refreshMiddleware echo.MiddlewareFunc,
	requestIDMiddleware echo.MiddlewareFunc,
	traceLoggerMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{requestIDMiddleware, traceLoggerMiddleware},
		groups: []*apiGroup{
			{
				prefix: "/user",
				routes: []*route{
					{"POST", "/login", UserHandler.HandleSignIn, nil},
					{"PUT", "/sign-out", UserHandler.HandleSignOut, nil},
					{"POST", "/sign-up", UserHandler.HandleSignUp, nil},
					{"GET", "/exists", UserHandler.HandleUserExists, nil},
				},
			},
			{
				prefix:      "/progress",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
				routes: []*route{
					{"POST", "/:course_id/lesson/:lesson_id", ProgressHandler.HandleSaveProgress, nil},
					{"GET", "/:course_id", ProgressHandler.HandleGetUserProgress, nil},
					{"PUT", "/:course_id/lesson/:lesson_id/complete", ProgressHandler.HandleMarkCompleted, nil},
					{"GET", "/sync/state", ProgressHandler.HandleGetSyncState, nil},
				},
			},
			{
				// preview lessons stay reachable without a session, so the
				// token here is optional and access decisions carry the denial
				prefix:      "/course",
				middlewares: []echo.MiddlewareFunc{optionalJwtMiddleware},
				routes: []*route{
					{"GET", "/:course_id/access", AccessHandler.HandleCheckCourseAccess, nil},
					{"GET", "/:course_id/lessons", AccessHandler.HandleGetAccessibleLessons, nil},
					{"GET", "/:course_id/lesson/:lesson_id/access", AccessHandler.HandleCheckLessonAccess, nil},
				},
			},
			{
				prefix:      "/enrollment",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
				routes: []*route{
					{"POST", "/", EnrollmentHandler.HandleEnroll, nil},
				},
			},
			{
				prefix: "/webhook",
				routes: []*route{
					{"POST", "/payment", WebhookHandler.HandlePaymentEvent, nil},
				},
			},
			{
				prefix:      "/ws",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware},
				routes: []*route{
					{"GET", "/progress/:course_id/lesson/:lesson_id", WSHandler.HandleProgressStream, nil},
				},
			},
		},
	}
}
