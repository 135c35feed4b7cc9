package core

import (
	"errors"
	"fmt"
)

// Kind classifies errors that callers are expected to render directly.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindInvariant  Kind = "invariant"
	KindInternal   Kind = "internal"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Error is a kinded error carrying a human readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WindowOverlapError is returned by the budget store when a window collides
// with an existing budget of the same user and category.
type WindowOverlapError struct {
	ConflictingID string
}

func (e *WindowOverlapError) Error() string {
	return fmt.Sprintf("window overlaps budget %s", e.ConflictingID)
}

// InsufficientBalanceError is returned when a withdrawal exceeds the saved amount.
type InsufficientBalanceError struct {
	Available Money
	Requested Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("cannot withdraw %s: only %s available", e.Requested, e.Available)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func Forbiddenf(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Invariantf(format string, args ...any) *Error {
	return newError(KindInvariant, format, args...)
}

// KindOf returns the kind of err, or KindInternal when err is not kinded.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}
