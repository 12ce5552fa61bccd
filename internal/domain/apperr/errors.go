package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindPermissionDenied    Kind = "permission_denied"
	KindValidationFailed    Kind = "validation_failed"
	KindInvalidTransition   Kind = "invalid_transition"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindMonthLocked         Kind = "month_locked"
	KindVersionConflict     Kind = "version_conflict"
	KindNotFound            Kind = "not_found"
)

// Error is an expected workflow failure. Details carries whatever the caller
// needs to retry correctly.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is matches on kind so that errors.Is(err, apperr.ErrNotFound) works for any
// NotFound error.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrValidationFailed    = &Error{Kind: KindValidationFailed}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrMonthLocked         = &Error{Kind: KindMonthLocked}
	ErrVersionConflict     = &Error{Kind: KindVersionConflict}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func PermissionDenied(permission string) *Error {
	return New(KindPermissionDenied, "missing permission %s", permission).With("permission", permission)
}

func Validation(field, reason string) *Error {
	return New(KindValidationFailed, "%s %s", field, reason).With("field", field)
}

func InvalidTransition(entity, from, operation string) *Error {
	return New(KindInvalidTransition, "cannot %s %s in status %s", operation, entity, from).
		With("status", from).
		With("operation", operation)
}

// InsufficientBalance reports the shortfall as decimal strings so the client
// does not lose precision.
func InsufficientBalance(available, requested, shortfall string) *Error {
	return New(KindInsufficientBalance, "requested %s exceeds available %s", requested, available).
		With("available", available).
		With("requested", requested).
		With("shortfall", shortfall)
}

func MonthLocked(monthEnd string, overrideAllowed bool) *Error {
	return New(KindMonthLocked, "month ending %s is closed", monthEnd).
		With("monthEnd", monthEnd).
		With("overrideAllowed", overrideAllowed)
}

func VersionConflict(current int) *Error {
	return New(KindVersionConflict, "stale version, current is %d", current).With("currentVersion", current)
}

func NotFound(entity, id string) *Error {
	return New(KindNotFound, "%s %s not found", entity, id).With("entity", entity)
}

// KindOf returns the kind of an expected failure, or "" for anything else.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func DetailsOf(err error) map[string]any {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
