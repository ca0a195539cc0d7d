package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
	"github.com/tripnest/booking-backend/pkg/inventory"
	"github.com/tripnest/booking-backend/pkg/payment"
)

// ErrorBody is the error half of the response envelope
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// respondOK writes {success: true, data}
func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondFailure(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondBindError reports a malformed request body or query
func respondBindError(c *gin.Context, err error) {
	respondFailure(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// respondError translates a service error into a status code and envelope.
// Order matters: booking failures wrap provider errors, and invalid orders
// wrap validation errors.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	status, body := classifyError(err)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"status": status,
		"code":   body.Code,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.Error(err)
	c.JSON(status, ErrorResponse{Success: false, Error: body})
}

func classifyError(err error) (int, ErrorBody) {
	var (
		validationErr *models.ValidationError
		bookingErr    *models.BookingFailedError
		transitionErr *models.StatusTransitionError
		declinedErr   *payment.DeclinedError
		providerErr   *inventory.ProviderError
	)

	switch {
	case errors.As(err, &bookingErr):
		return http.StatusBadGateway, ErrorBody{
			Code:    "BOOKING_FAILED",
			Message: bookingErr.Reason,
			Details: gin.H{"providerErrorCode": bookingErr.ProviderErrorCode},
		}

	case errors.Is(err, models.ErrInvalidOrder):
		body := ErrorBody{Code: "INVALID_ORDER", Message: err.Error()}
		if errors.As(err, &validationErr) {
			body.Details = gin.H{"field": validationErr.Field}
		}
		return http.StatusBadRequest, body

	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrorBody{
			Code:    "VALIDATION_ERROR",
			Message: validationErr.Error(),
			Details: gin.H{"field": validationErr.Field},
		}
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, ErrorBody{Code: "VALIDATION_ERROR", Message: err.Error()}

	case errors.As(err, &declinedErr):
		return http.StatusPaymentRequired, ErrorBody{
			Code:    "PAYMENT_DECLINED",
			Message: declinedErr.Reason,
			Details: gin.H{"declineCode": declinedErr.Code},
		}

	case errors.Is(err, payment.ErrInvalidCard):
		return http.StatusUnprocessableEntity, ErrorBody{Code: "INVALID_CARD", Message: err.Error()}

	case errors.Is(err, models.ErrInvalidRefundAmount):
		return http.StatusUnprocessableEntity, ErrorBody{Code: "INVALID_REFUND_AMOUNT", Message: models.ErrInvalidRefundAmount.Error()}

	case errors.As(err, &transitionErr):
		return http.StatusConflict, ErrorBody{
			Code:    "INVALID_STATUS_TRANSITION",
			Message: transitionErr.Error(),
			Details: gin.H{"from": transitionErr.From, "to": transitionErr.To},
		}

	case errors.Is(err, models.ErrSessionExpired):
		return http.StatusGone, ErrorBody{Code: "SESSION_EXPIRED", Message: models.ErrSessionExpired.Error()}

	case errors.Is(err, models.ErrBookingNotFound):
		return http.StatusNotFound, ErrorBody{Code: "BOOKING_NOT_FOUND", Message: models.ErrBookingNotFound.Error()}
	case errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound, ErrorBody{Code: "ORDER_NOT_FOUND", Message: models.ErrOrderNotFound.Error()}
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound, ErrorBody{Code: "SESSION_NOT_FOUND", Message: models.ErrSessionNotFound.Error()}

	case errors.Is(err, inventory.ErrProviderTimeout), errors.Is(err, payment.ErrGatewayTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorBody{Code: "UPSTREAM_TIMEOUT", Message: "Upstream provider timed out"}

	case errors.Is(err, inventory.ErrProviderRejected):
		body := ErrorBody{Code: "PROVIDER_REJECTED", Message: "Inventory provider rejected the request"}
		if errors.As(err, &providerErr) {
			body.Message = providerErr.Message()
			body.Details = gin.H{"providerErrorCode": providerErr.Code, "providerStatus": providerErr.StatusCode}
		}
		return http.StatusBadGateway, body

	case errors.Is(err, inventory.ErrProviderUnavailable), errors.Is(err, inventory.ErrCredentialsMissing),
		errors.Is(err, inventory.ErrAuthRejected):
		return http.StatusBadGateway, ErrorBody{Code: "PROVIDER_UNAVAILABLE", Message: "Inventory provider is unavailable"}

	case errors.Is(err, payment.ErrGatewayRejected):
		return http.StatusBadGateway, ErrorBody{Code: "GATEWAY_REJECTED", Message: err.Error()}
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return http.StatusBadGateway, ErrorBody{Code: "GATEWAY_UNAVAILABLE", Message: "Payment gateway is unavailable"}

	case errors.Is(err, context.Canceled):
		return 499, ErrorBody{Code: "REQUEST_CANCELLED", Message: "Request was cancelled"}
	}

	return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}
}
