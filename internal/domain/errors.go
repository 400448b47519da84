package domain

import (
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a gateway error.
type ErrorKind string

const (
	// ErrorKindValidation indicates a submission with a bad shape or a
	// disallowed file type.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindMissingInput indicates a submission carrying no content for
	// its declared modality.
	ErrorKindMissingInput ErrorKind = "missing_input"

	// ErrorKindBackend indicates a non-success status from the detection
	// backend.
	ErrorKindBackend ErrorKind = "backend"

	// ErrorKindDecode indicates a malformed downstream response body.
	ErrorKindDecode ErrorKind = "decode"

	// ErrorKindRateLimited indicates the generation backend is rate
	// limiting or out of quota.
	ErrorKindRateLimited ErrorKind = "rate_limited"

	// ErrorKindUnauthorized indicates a credential failure against the
	// generation backend.
	ErrorKindUnauthorized ErrorKind = "unauthorized"

	// ErrorKindUnknownInvocation indicates an unclassified generation
	// failure.
	ErrorKindUnknownInvocation ErrorKind = "unknown_invocation"

	// ErrorKindUnavailable indicates the generation backend could not be
	// reached at all.
	ErrorKindUnavailable ErrorKind = "unavailable"

	// ErrorKindPoll indicates a transient history poll failure. It is
	// logged and flagged, never surfaced as an HTTP error.
	ErrorKindPoll ErrorKind = "poll"
)

// GatewayError is the canonical error returned by every component. It maps
// the taxonomy onto HTTP status codes for the consumer-facing surface.
type GatewayError struct {
	// Kind is the category of error.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Details carries an optional remediation hint (wait-and-retry, check
	// credentials) or the raw downstream body.
	Details string `json:"details,omitempty"`

	// StatusCode is the suggested HTTP status code.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case ErrorKindValidation, ErrorKindMissingInput:
		return http.StatusBadRequest
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case ErrorKindRateLimited:
		return http.StatusTooManyRequests
	case ErrorKindBackend, ErrorKindDecode:
		return http.StatusBadGateway
	case ErrorKindUnavailable, ErrorKindPoll:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewGatewayError creates a new gateway error.
func NewGatewayError(kind ErrorKind, message string) *GatewayError {
	return &GatewayError{
		Kind:    kind,
		Message: message,
	}
}

// WithDetails adds a remediation hint or raw body to the error.
func (e *GatewayError) WithDetails(details string) *GatewayError {
	e.Details = details
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *GatewayError) WithStatusCode(code int) *GatewayError {
	e.StatusCode = code
	return e
}

// Convenience constructors for the taxonomy

// ErrValidation creates a validation error.
func ErrValidation(message string) *GatewayError {
	return NewGatewayError(ErrorKindValidation, message)
}

// ErrMissingInput creates a missing-input error.
func ErrMissingInput(message string) *GatewayError {
	return NewGatewayError(ErrorKindMissingInput, message)
}

// ErrBackend creates a backend error carrying the downstream status code.
// Client-attributable statuses are forwarded as-is; everything else is
// surfaced as a bad gateway.
func ErrBackend(statusCode int, rawBody string) *GatewayError {
	e := NewGatewayError(ErrorKindBackend, fmt.Sprintf("detection backend returned status %d", statusCode)).
		WithDetails(rawBody)
	if statusCode >= 400 && statusCode < 500 {
		e.StatusCode = statusCode
	} else {
		e.StatusCode = http.StatusBadGateway
	}
	return e
}

// ErrDecode creates a decode error for a malformed downstream body.
func ErrDecode(message string) *GatewayError {
	return NewGatewayError(ErrorKindDecode, message)
}

// ErrRateLimited creates a rate-limited invocation error.
func ErrRateLimited(message string) *GatewayError {
	return NewGatewayError(ErrorKindRateLimited, message)
}

// ErrUnauthorized creates an unauthorized invocation error.
func ErrUnauthorized(message string) *GatewayError {
	return NewGatewayError(ErrorKindUnauthorized, message)
}

// ErrUnknownInvocation creates an unclassified invocation error.
func ErrUnknownInvocation(message string) *GatewayError {
	return NewGatewayError(ErrorKindUnknownInvocation, message)
}

// ErrUnavailable creates an unreachable-backend error.
func ErrUnavailable(message string) *GatewayError {
	return NewGatewayError(ErrorKindUnavailable, message)
}

// ErrPoll creates a transient poll error.
func ErrPoll(message string) *GatewayError {
	return NewGatewayError(ErrorKindPoll, message)
}
