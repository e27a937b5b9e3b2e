package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code categorizes provider failures for callers that map them to user-facing outcomes.
type Code string

const (
	CodeMissingCredentials Code = "MISSING_CREDENTIALS"
	CodeRateLimited        Code = "RATE_LIMIT_EXCEEDED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeTimeout            Code = "REQUEST_TIMEOUT"
	CodeUnknown            Code = "UNKNOWN"
)

// Error is a categorized provider failure.
type Error struct {
	Code     Code
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// MissingCredentials reports that no API key is configured for provider.
func MissingCredentials(provider string) *Error {
	return &Error{Code: CodeMissingCredentials, Provider: provider, Err: errors.New("api key is not configured")}
}

// Classify wraps err in an Error whose code is derived from the HTTP status and the error chain.
// A zero status means the request never produced a response.
func Classify(provider string, status int, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Code: codeFor(status, err), Provider: provider, Err: err}
}

func codeFor(status int, err error) Code {
	switch status {
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeInvalidCredentials
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return CodeTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	return CodeUnknown
}

// CodeFromError returns the category of err, CodeUnknown for uncategorized errors, and "" for nil.
func CodeFromError(err error) Code {
	if err == nil {
		return ""
	}
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.Code
	}
	return codeFor(0, err)
}
