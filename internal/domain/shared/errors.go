package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every revenue component. HTTP mapping lives in the
// interfaces layer.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidState        = "INVALID_STATE"
	CodeAlreadyProcessed    = "ALREADY_PROCESSED"
	CodeInvalidEntry        = "INVALID_ENTRY"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Reason is an optional machine-readable sub-code (e.g. NO_DEFAULT_RULE).
	Reason string `json:"reason,omitempty"`
	cause  error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// A target carrying a Reason only matches errors with the same Reason.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) || t == nil {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// WithReason returns a copy of the error tagged with a sub-code
func (e *DomainError) WithReason(reason string) *DomainError {
	c := *e
	c.Reason = reason
	return &c
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(CodeInvalidState, message)
}

func NewAlreadyProcessedError(message string) *DomainError {
	return NewDomainError(CodeAlreadyProcessed, message)
}

func NewInvalidEntryError(message string) *DomainError {
	return NewDomainError(CodeInvalidEntry, message)
}

func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(CodeNotFound, resource+" not found")
}

func NewConcurrencyConflictError(resource string) *DomainError {
	return NewDomainError(CodeConcurrencyConflict, resource+" was modified by another process, retry the operation")
}

// WrapStoreError converts an I/O or driver failure into a StoreUnavailable
// domain error. Domain errors pass through unchanged.
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return &DomainError{
		Code:    CodeStoreUnavailable,
		Message: "store unavailable during " + op,
		cause:   err,
	}
}

// CodeOf extracts the domain error code from err, or "" when err is not a domain error.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrAlreadyProcessed    = NewDomainError(CodeAlreadyProcessed, "Resource has already been processed")
	ErrInvalidEntry        = NewDomainError(CodeInvalidEntry, "Ledger entry not eligible for this operation")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrStoreUnavailable    = NewDomainError(CodeStoreUnavailable, "Store unavailable")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
)
