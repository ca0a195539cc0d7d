package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Error categories returned by the inventory client. Every failure coming out
// of this package matches exactly one of them via errors.Is.
var (
	ErrCredentialsMissing  = errors.New("inventory credentials are not configured")
	ErrAuthRejected        = errors.New("inventory provider rejected credentials")
	ErrProviderTimeout     = errors.New("inventory provider timed out")
	ErrProviderRejected    = errors.New("inventory provider rejected request")
	ErrProviderUnavailable = errors.New("inventory provider unavailable")
)

// ProviderError carries the structured detail of a failed provider call.
type ProviderError struct {
	Kind       error
	Operation  string
	StatusCode int
	Code       string
	Title      string
	Detail     string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	switch {
	case e.Detail != "":
		msg += ": " + e.Detail
	case e.Title != "":
		msg += ": " + e.Title
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Message returns the most specific human readable reason available.
func (e *ProviderError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Title != "" {
		return e.Title
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// errorBody is the provider's error document: {"errors":[{...}]}
type errorBody struct {
	Errors []struct {
		Status int             `json:"status"`
		Code   json.RawMessage `json:"code"`
		Title  string          `json:"title"`
		Detail string          `json:"detail"`
	} `json:"errors"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func newStatusError(kind error, operation string, status int, body []byte) *ProviderError {
	pe := &ProviderError{Kind: kind, Operation: operation, StatusCode: status}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return pe
	}
	if len(parsed.Errors) > 0 {
		first := parsed.Errors[0]
		pe.Code = rawCode(first.Code)
		pe.Title = first.Title
		pe.Detail = first.Detail
		return pe
	}
	// OAuth style error document from the token endpoint
	pe.Code = parsed.Error
	pe.Detail = parsed.ErrorDescription
	return pe
}

// rawCode accepts both numeric and string codes.
func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func newTransportError(operation string, err error) *ProviderError {
	kind := ErrProviderUnavailable
	if isTimeout(err) {
		kind = ErrProviderTimeout
	}
	return &ProviderError{Kind: kind, Operation: operation, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
