package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error so handlers can pick a status code
// and a user-facing message without parsing error prose.
type Kind int

const (
	KindUnknown Kind = iota
	// KindPermission: the storage layer or the service refused the caller.
	KindPermission
	// KindDuplicate: a uniqueness constraint fired (confirmation code).
	KindDuplicate
	// KindSlotOccupied: the requested date/time already has a live booking.
	KindSlotOccupied
	// KindForeignKey: a referenced row (patient profile) is missing.
	KindForeignKey
	// KindSchemaMissing: a referenced table does not exist; migrations
	// have not been applied.
	KindSchemaMissing
	// KindPastSlot: the requested slot instant is already in the past.
	KindPastSlot
	// KindInvalidTransition: the appointment status does not allow the
	// requested action.
	KindInvalidTransition
	// KindNotFound: the requested row does not exist.
	KindNotFound
	// KindValidation: the request payload failed validation.
	KindValidation
)

// AppError carries a classification kind, a user-facing message and an
// optional remediation hint alongside the wrapped cause.
type AppError struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError of the given kind.
func New(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// WithHint attaches a remediation hint and returns the error.
func (e *AppError) WithHint(hint string) *AppError {
	e.Hint = hint
	return e
}

// KindOf extracts the classification of err, or KindUnknown when err is
// not an AppError.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Permission(message string, err error) *AppError {
	return New(KindPermission, message, err)
}

func Duplicate(message string, err error) *AppError {
	return New(KindDuplicate, message, err)
}

func SlotOccupied(message string) *AppError {
	return New(KindSlotOccupied, message, nil)
}

func ForeignKey(message string, err error) *AppError {
	return New(KindForeignKey, message, err)
}

func SchemaMissing(message string, err error) *AppError {
	return New(KindSchemaMissing, message, err)
}

func PastSlot(message string) *AppError {
	return New(KindPastSlot, message, nil)
}

func InvalidTransition(message string) *AppError {
	return New(KindInvalidTransition, message, nil)
}

func NotFound(resource string, err error) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource), err)
}

func Validation(message string, err error) *AppError {
	return New(KindValidation, message, err)
}
