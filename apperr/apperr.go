// Package apperr defines the error taxonomy shared by the roster engine and
// the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAlreadySignedUp     Code = "ALREADY_SIGNED_UP"
	CodeCapacityExceeded    Code = "CAPACITY_EXCEEDED"
	CodeSignupClosed        Code = "SIGNUP_CLOSED"
	CodeGuestsNotAllowed    Code = "GUESTS_NOT_ALLOWED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeVersionConflict     Code = "VERSION_CONFLICT"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
)

// Kind separates client-caused failures from server-caused ones.
type Kind string

const (
	KindClient Kind = "client"
	KindServer Kind = "server"
)

// Sentinels for errors.Is; matching is by code only.
var (
	ErrInvalidArgument     = New(CodeInvalidArgument, "invalid argument")
	ErrUnauthenticated     = New(CodeUnauthenticated, "unauthenticated")
	ErrNotFound            = New(CodeNotFound, "not found")
	ErrAlreadySignedUp     = New(CodeAlreadySignedUp, "already signed up")
	ErrCapacityExceeded    = New(CodeCapacityExceeded, "capacity exceeded")
	ErrSignupClosed        = New(CodeSignupClosed, "signup closed")
	ErrGuestsNotAllowed    = New(CodeGuestsNotAllowed, "guests not allowed")
	ErrForbidden           = New(CodeForbidden, "forbidden")
	ErrVersionConflict     = New(CodeVersionConflict, "version conflict")
	ErrUpstreamUnavailable = New(CodeUpstreamUnavailable, "upstream unavailable")
)

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with a code that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Upstream wraps a failed external call. Deadline expiry stays detectable
// through errors.Is(err, context.DeadlineExceeded).
func Upstream(message string, cause error) *Error {
	return Wrap(CodeUpstreamUnavailable, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain. Bare deadline
// errors count as upstream failures.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeUpstreamUnavailable
	}
	return CodeUnknown
}

// KindOf classifies err as client or server caused.
func KindOf(err error) Kind {
	switch CodeOf(err) {
	case CodeInvalidArgument, CodeUnauthenticated, CodeNotFound, CodeAlreadySignedUp,
		CodeCapacityExceeded, CodeSignupClosed, CodeGuestsNotAllowed, CodeForbidden:
		return KindClient
	default:
		return KindServer
	}
}

// Transient reports whether retrying the same request may succeed.
func Transient(err error) bool {
	switch CodeOf(err) {
	case CodeVersionConflict, CodeUpstreamUnavailable:
		return true
	}
	return false
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden, CodeGuestsNotAllowed:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadySignedUp, CodeCapacityExceeded, CodeSignupClosed:
		return http.StatusConflict
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	case CodeVersionConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
