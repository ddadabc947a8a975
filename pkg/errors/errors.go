// Package errors provides structured error types for the pipescore engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, HTTP API, and library
//   - Machine-readable error codes for programmatic handling
//   - Per-entity error reporting: layout passes collect errors next to
//     successful results instead of aborting on the first bad measure
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: input and musical-content validation failures
//   - NOT_FOUND_*: resource not found
//   - STRUCTURAL_*: contract violations that abort a layout pass
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.NewEntity(errors.ErrCodeInvalidDuration, id, "durations sum to %d, want %d", got, want)
//	if errors.Is(err, errors.ErrCodeInvalidDuration) {
//	    // Flag the measure, keep laying out the rest
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"

	// Musical content errors, reported per entity and non-fatal to a layout pass
	ErrCodeInvalidDuration Code = "INVALID_DURATION"
	ErrCodePageOverflow    Code = "PAGE_OVERFLOW"
	ErrCodeScopeThrashing  Code = "SCOPE_ESCALATION_LIMIT_EXCEEDED"

	// Structural contract violations, fatal to a layout pass
	ErrCodeStructuralIntegrity Code = "STRUCTURAL_INTEGRITY"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeDocumentNotFound Code = "DOCUMENT_NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
	ErrCodeCanceled Code = "CANCELED"
)

// Error is a structured error with a code, an optional owning entity
// id, and an optional cause.
type Error struct {
	Code     Code   // Machine-readable error code
	EntityID string // Id of the entity the error is about (optional)
	Message  string // Human-readable message
	Cause    error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewEntity creates a new Error attributed to a specific entity.
func NewEntity(code Code, entityID, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		EntityID: entityID,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Entity extracts the entity id from an error, if available.
func Entity(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.EntityID
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
