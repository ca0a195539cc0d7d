package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrBookingFailed           = errors.New("booking failed")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidOrder            = errors.New("invalid payment order")
	ErrInvalidRefundAmount     = errors.New("refund amount must be greater than zero and within the charged amount")
	ErrOrderNotFound           = errors.New("payment order not found")
	ErrSessionNotFound         = errors.New("payment session not found")
	ErrSessionExpired          = errors.New("payment session expired")
)

// ValidationError reports a single invalid input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BookingFailedError is returned when the provider refuses to create an order
type BookingFailedError struct {
	Reason            string
	ProviderErrorCode string
	Err               error
}

func (e *BookingFailedError) Error() string {
	if e.ProviderErrorCode != "" {
		return fmt.Sprintf("booking failed (%s): %s", e.ProviderErrorCode, e.Reason)
	}
	return "booking failed: " + e.Reason
}

func (e *BookingFailedError) Is(target error) bool {
	return target == ErrBookingFailed
}

func (e *BookingFailedError) Unwrap() error {
	return e.Err
}

// StatusTransitionError reports a rejected booking status change
type StatusTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *StatusTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}
