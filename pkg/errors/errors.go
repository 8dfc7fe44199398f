package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the domain error type. Code is the machine-readable identity
// clients branch on, Status the HTTP status it maps to, Err an optional
// wrapped cause that never reaches the wire.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an Error with no wrapped cause.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds an Error carrying err as its cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Catalogue of error identities the API emits.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrAlreadyReviewed    = New("ALREADY_REVIEWED", http.StatusConflict, "record is already reviewed")
	ErrSubmission         = New("SUBMISSION_FAILED", http.StatusBadGateway, "inspection submission failed")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusInternalServerError, "cache miss")
)

// FromError normalises any error into an *Error. Unknown errors become
// INTERNAL_ERROR with the original kept as the wrapped cause.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies err, optionally overriding its message. Server-provided
// messages win over catalogue defaults this way without mutating the
// shared sentinel values.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	out := *err
	if message != "" {
		out.Message = message
	}
	return &out
}
