package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable error identifier returned to API clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeOrderNotFound     Code = "ORDER_NOT_FOUND"
	CodeSignatureInvalid  Code = "SIGNATURE_INVALID"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInquiryNotSaved   Code = "INQUIRY_NOT_SAVED"
)

// Metadata describes how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed lets the error's details reach the response body.
	DetailsAllowed bool
	// ExposeMessage replaces PublicMessage with the error's own message.
	ExposeMessage bool
}

type metaOption func(*Metadata)

func retryable(m *Metadata)   { m.Retryable = true }
func withDetails(m *Metadata) { m.DetailsAllowed = true }
func exposed(m *Metadata)     { m.ExposeMessage = true }

func meta(status int, public string, opts ...metaOption) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", withDetails, exposed),
	CodeUnauthorized:      meta(http.StatusUnauthorized, "authentication required", exposed),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", exposed),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", exposed),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", exposed),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails, exposed),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key reused", withDetails, exposed),
	CodeRateLimit:         meta(http.StatusTooManyRequests, "rate limit exceeded", exposed),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, withDetails),
	CodeOrderNotFound:     meta(http.StatusNotFound, "payment order not found", exposed),
	CodeSignatureInvalid:  meta(http.StatusBadRequest, "payment signature could not be verified"),
	CodeInvalidTransition: meta(http.StatusUnprocessableEntity, "invalid status transition", withDetails, exposed),
	CodeInquiryNotSaved: meta(http.StatusServiceUnavailable,
		"payment was not charged, but we could not save your inquiry; please retry or contact support", retryable),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error carries a Code plus an internal message and optional client-facing
// details. The cause stays reachable through Unwrap.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap is New when err is nil.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
