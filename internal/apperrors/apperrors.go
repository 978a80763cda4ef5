package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindCapacity   Kind = "capacity"
	KindOwnership  Kind = "ownership"
	KindConflict   Kind = "conflict"
	KindStore      Kind = "store"
)

type Code string

const (
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeInvalidDateRange     Code = "INVALID_DATE_RANGE"
	CodeDurationExceeded     Code = "DURATION_EXCEEDED"
	CodeSelfRating           Code = "SELF_RATING"
	CodeNotFound             Code = "NOT_FOUND"
	CodeInsufficientCapacity Code = "INSUFFICIENT_CAPACITY"
	CodeTripFull             Code = "TRIP_FULL"
	CodeOverlap              Code = "OVERLAP"
	CodeNotOwner             Code = "NOT_OWNER"
	CodeDuplicateRating      Code = "DUPLICATE_RATING"
	CodeAlreadyCancelled     Code = "ALREADY_CANCELLED"
	CodeInvalidTransition    Code = "INVALID_TRANSITION"
	CodeTripClosed           Code = "TRIP_CLOSED"
	CodeProfileExists        Code = "PROFILE_EXISTS"
	CodeStoreFailure         Code = "STORE_FAILURE"
)

var codeKinds = map[Code]Kind{
	CodeInvalidInput:         KindValidation,
	CodeInvalidDateRange:     KindValidation,
	CodeDurationExceeded:     KindValidation,
	CodeSelfRating:           KindValidation,
	CodeNotFound:             KindNotFound,
	CodeInsufficientCapacity: KindCapacity,
	CodeTripFull:             KindCapacity,
	CodeOverlap:              KindCapacity,
	CodeNotOwner:             KindOwnership,
	CodeDuplicateRating:      KindConflict,
	CodeAlreadyCancelled:     KindConflict,
	CodeInvalidTransition:    KindConflict,
	CodeTripClosed:           KindConflict,
	CodeProfileExists:        KindConflict,
	CodeStoreFailure:         KindStore,
}

// Error is the single error type returned across service boundaries.
type Error struct {
	Kind      Kind
	Code      Code
	Message   string
	Field     string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so errors.Is(err, ErrOverlap) works for any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidInput         = &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: "invalid input"}
	ErrInvalidDateRange     = &Error{Kind: KindValidation, Code: CodeInvalidDateRange, Message: "invalid date range"}
	ErrDurationExceeded     = &Error{Kind: KindValidation, Code: CodeDurationExceeded, Message: "rental duration exceeds maximum rental period"}
	ErrSelfRating           = &Error{Kind: KindValidation, Code: CodeSelfRating, Message: "users cannot rate themselves"}
	ErrNotFound             = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "not found"}
	ErrInsufficientCapacity = &Error{Kind: KindCapacity, Code: CodeInsufficientCapacity, Message: "insufficient capacity"}
	ErrTripFull             = &Error{Kind: KindCapacity, Code: CodeTripFull, Message: "trip is full"}
	ErrOverlap              = &Error{Kind: KindCapacity, Code: CodeOverlap, Message: "vehicle is already booked for the requested dates"}
	ErrNotOwner             = &Error{Kind: KindOwnership, Code: CodeNotOwner, Message: "not authorized to modify this resource"}
	ErrDuplicateRating      = &Error{Kind: KindConflict, Code: CodeDuplicateRating, Message: "user already rated"}
	ErrAlreadyCancelled     = &Error{Kind: KindConflict, Code: CodeAlreadyCancelled, Message: "booking already cancelled"}
	ErrInvalidTransition    = &Error{Kind: KindConflict, Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrTripClosed           = &Error{Kind: KindConflict, Code: CodeTripClosed, Message: "trip is no longer active"}
	ErrProfileExists        = &Error{Kind: KindConflict, Code: CodeProfileExists, Message: "profile already exists"}
	ErrStoreFailure         = &Error{Kind: KindStore, Code: CodeStoreFailure, Message: "store failure"}
)

// New builds an Error for code with a custom message.
func New(code Code, msg string) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Field: field, Message: msg}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

// Store wraps an infrastructure failure. Retryable marks failures the caller
// may safely repeat, such as serialization conflicts.
func Store(err error, retryable bool) *Error {
	return &Error{Kind: KindStore, Code: CodeStoreFailure, Message: "store failure", Retryable: retryable, Err: err}
}

// Wrap attaches cause to a copy of the sentinel base.
func Wrap(base *Error, cause error) *Error {
	e := *base
	e.Err = cause
	return &e
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindStore
}

func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeStoreFailure
}

func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}

// HTTPStatus maps an error to the response status used by the handlers.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCapacity, KindConflict:
		return http.StatusConflict
	case KindOwnership:
		return http.StatusForbidden
	case KindStore:
		if e.Retryable {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
