package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/lingua-lms/internal/domain"
	"github.com/pot-code/lingua-lms/internal/infrastructure/validate"
)

// WebhookSecretHeader shared secret header set by the payment provider
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookHandler payment provider callbacks.
//
// The provider delivers at least once, so handlers must tolerate replays.
// Enrollment is keyed on user and course which makes the verified event
// idempotent by construction
type WebhookHandler struct {
	EnrollmentUseCase domain.EnrollmentUseCase
	Validator         validate.Validator
	Secret            string
}

// NewWebhookHandler create a webhook controller instance
func NewWebhookHandler(EnrollmentUseCase domain.EnrollmentUseCase, Validator validate.Validator, Secret string) *WebhookHandler {
	return &WebhookHandler{
		EnrollmentUseCase: EnrollmentUseCase,
		Validator:         Validator,
		Secret:            Secret,
	}
}

type paymentEvent struct {
	EventID   string `json:"event_id" validate:"required,uuid4"`
	UserID    string `json:"user_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=succeeded failed refunded"`
}

// HandlePaymentEvent ...
func (wh *WebhookHandler) HandlePaymentEvent(c echo.Context) error {
	secret := c.Request().Header.Get(WebhookSecretHeader)
	if wh.Secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(wh.Secret)) != 1 {
		return c.NoContent(http.StatusUnauthorized)
	}

	event := new(paymentEvent)
	if err := c.Bind(event); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind payment event").SetDetail(internal.Error()))
	}
	if err := wh.Validator.Struct(event); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate payment event", err))
	}
	if _, err := uuid.Parse(event.EventID); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTStandardError(http.StatusBadRequest, "Malformed event id").SetDetail(err.Error()))
	}

	// only successful payments mutate enrollment, the rest are acknowledged
	// so the provider stops redelivering
	if event.Status != "succeeded" {
		return c.NoContent(http.StatusOK)
	}

	_, err := wh.EnrollmentUseCase.OnPaymentVerified(c.Request().Context(), event.UserID, event.CourseID, event.PaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchCourse) {
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.NoContent(http.StatusOK)
}
