package core

import (
	"fmt"
)

// Error is the canonical error shape surfaced to clients.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrPermission     ErrorType = "permission_error"
	ErrTransport      ErrorType = "transport_error"
	ErrDecode         ErrorType = "decode_error"
	ErrQuotaOrAuth    ErrorType = "quota_or_auth_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message, Param: param}
}

// NewPermissionError creates a permission error (device or resource access denied).
func NewPermissionError(message string) *Error {
	return &Error{Type: ErrPermission, Message: message}
}

// NewTransportError creates a transport error wrapping the underlying failure.
func NewTransportError(message string, underlying error) *Error {
	if underlying != nil && message == "" {
		message = underlying.Error()
	}
	return &Error{Type: ErrTransport, Message: message, cause: underlying}
}

// NewDecodeError creates a decode error for a malformed payload.
func NewDecodeError(message string) *Error {
	return &Error{Type: ErrDecode, Message: message}
}

// NewQuotaOrAuthError creates a credential/quota error. These carry their own
// type so callers can prompt for re-authentication instead of retrying.
func NewQuotaOrAuthError(message, code string) *Error {
	return &Error{Type: ErrQuotaOrAuth, Message: message, Code: code}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *Error {
	return &Error{Type: ErrRateLimit, Message: message}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}

// IsType reports whether err is a *Error of the given type.
func IsType(err error, t ErrorType) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Type == t
}
