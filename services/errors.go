package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindUnauthorized    ErrorKind = "UNAUTHORIZED"
	KindForbidden       ErrorKind = "FORBIDDEN"
	KindConflict        ErrorKind = "CONFLICT"
	KindValidation      ErrorKind = "VALIDATION_ERROR"
	KindInvalidArgument ErrorKind = "INVALID_ARGUMENT"
)

// AppError is a failure the caller can act on. Anything else is internal.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details []string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg}
}

func NewUnauthorizedError(msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: msg}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{Kind: KindForbidden, Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

func NewValidationError(msg string, details ...string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg, Details: details}
}

func NewInvalidArgumentError(msg string, err error) *AppError {
	return &AppError{Kind: KindInvalidArgument, Message: msg, Err: err}
}

// KindOf reports the AppError kind carried by err, or "" for internal errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
