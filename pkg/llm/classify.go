package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ClassifyStatus maps an HTTP status returned by a provider to a classified error.
// It returns nil for statuses it has no opinion about.
func ClassifyStatus(status int, cause error) *Error {
	var et ErrorType
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		et = ErrorTypeAuth
	case status == http.StatusTooManyRequests:
		et = ErrorTypeRateLimit
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusRequestEntityTooLarge:
		et = ErrorTypeBadPrompt
	case status >= http.StatusInternalServerError:
		et = ErrorTypeTransient
	default:
		return nil
	}
	return &Error{Type: et, Err: cause, StatusCode: status}
}

// Classify maps an arbitrary provider error to a classified error using its text.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeUnknown, err, "request canceled")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "connection", "network", "temporary", "eof", "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, "network or connection error")
	case containsAny(msg, "rate", "quota", "429"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, "rate limiting detected")
	case containsAny(msg, "unauthorized", "api key", "401", "403"):
		return NewErrorWithCause(ErrorTypeAuth, err, "authentication error")
	case containsAny(msg, "invalid", "malformed", "too large", "not found"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, "prompt or request error")
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, "unclassified error")
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
