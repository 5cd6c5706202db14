// Package errs defines the error taxonomy returned by the registration engine.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindState         Kind = "state"
	KindCapacity      Kind = "capacity"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindDuplicate     Kind = "duplicate"
	KindConflict      Kind = "conflict"
	KindInternal      Kind = "internal"
)

// Machine-readable codes.
const (
	CodeFieldRequired        = "FIELD_REQUIRED"
	CodeFieldInvalid         = "FIELD_INCORRECT"
	CodeEventNotFound        = "EVENT_NOT_FOUND"
	CodeRegistrationNotFound = "REGISTRATION_NOT_FOUND"
	CodeTicketNotFound       = "TICKET_NOT_RECOGNIZED"
	CodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	CodeFieldLocked          = "FIELD_NOT_WRITABLE"
	CodeRegistrationClosed   = "REGISTRATION_CLOSED"
	CodeNotEligible          = "NOT_ELIGIBLE"
	CodeForbidden            = "FORBIDDEN"
	CodeDuplicate            = "REGISTRATION_DUPLICATE"
	CodeHouseFull            = "HOUSE_FULL"
	CodeOutOfStock           = "OUT_OF_STOCK"
	CodePurchaseLimit        = "PURCHASE_LIMIT_REACHED"
	CodeStatusConflict       = "STATUS_CONFLICT"
	CodePaymentNotPending    = "PAYMENT_NOT_PENDING"
	CodeNotConfirmed         = "REGISTRATION_NOT_CONFIRMED"
	CodeEventCancelled       = "EVENT_CANCELLED"
)

// Error is the structured error carried across the service boundary.
type Error struct {
	Kind  Kind
	Code  string
	Msg   string
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and, when set, code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Wrap attaches a cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func newErr(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or missing input for field.
func Validation(field, format string, args ...any) *Error {
	e := newErr(KindValidation, CodeFieldInvalid, format, args...)
	e.Field = field
	return e
}

// Required reports a missing required field.
func Required(field string) *Error {
	return &Error{
		Kind:  KindValidation,
		Code:  CodeFieldRequired,
		Msg:   fmt.Sprintf("field '%s' is required", field),
		Field: field,
	}
}

func State(code, format string, args ...any) *Error {
	return newErr(KindState, code, format, args...)
}

func Capacity(code, format string, args ...any) *Error {
	return newErr(KindCapacity, code, format, args...)
}

func NotFound(code, format string, args ...any) *Error {
	return newErr(KindNotFound, code, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newErr(KindAuthorization, CodeForbidden, format, args...)
}

func Duplicate(format string, args ...any) *Error {
	return newErr(KindDuplicate, CodeDuplicate, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newErr(KindConflict, code, format, args...)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine code of err, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
