// Package errors carries typed application errors. Each Code maps to an HTTP
// status and a public message through MetadataFor; the internal message and
// cause stay server side.
package errors

import (
	stdErrors "errors"
	"net/http"
	"strings"
)

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

	// ledger and order lifecycle
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeAlreadyCompleted  Code = "ALREADY_COMPLETED"
	CodeGateway           Code = "PAYMENT_GATEWAY_ERROR"
	CodeDataIntegrity     Code = "DATA_INTEGRITY"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	withDetails
)

func meta(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:      meta(http.StatusUnauthorized, "authentication required", 0),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", 0),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", 0),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", 0),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:         meta(http.StatusTooManyRequests, "rate limit exceeded", 0),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
	CodeInvalidTransition: meta(http.StatusConflict, "order status transition not allowed", withDetails),
	CodeInsufficientFunds: meta(http.StatusPaymentRequired, "insufficient wallet balance", withDetails),
	CodeAlreadyCompleted:  meta(http.StatusConflict, "already completed", withDetails),
	CodeGateway:           meta(http.StatusBadGateway, "payment gateway unavailable", retryable),
	CodeDataIntegrity:     meta(http.StatusInternalServerError, "data integrity violation", 0),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
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
	var b strings.Builder
	b.WriteString(string(e.code))
	b.WriteString(": ")
	b.WriteString(e.message)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
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
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
