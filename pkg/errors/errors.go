// Package errors provides structured error types for labelkit.
//
// Errors carry a machine-readable [Code] so that the CLI, the HTTP API and
// callers embedding the packages can branch on the failure category without
// string matching:
//
//   - INVALID_INPUT: a required field is missing or malformed (ValidationError)
//   - CONNECTION_ERROR: the printer could not be reached (ConnectionError)
//   - WRITE_ERROR: the payload could not be transmitted (WriteError)
//   - TIMEOUT: the combined connect+send phase ran out of time (TimeoutError)
//
// Label geometry never produces errors; out-of-range values are clamped by
// package geometry instead.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "host is required")
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // reject before dialing
//	}
//
//	err := errors.Wrap(errors.ErrCodeConnection, dialErr, "connect %s", addr)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidDPI    Code = "INVALID_DPI"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"
	ErrCodePrinterNotFound  Code = "PRINTER_NOT_FOUND"

	// Transport errors
	ErrCodeConnection Code = "CONNECTION_ERROR"
	ErrCodeWrite      Code = "WRITE_ERROR"
	ErrCodeTimeout    Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
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

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Validation reports missing or malformed operational input.
func Validation(format string, args ...any) *Error {
	return New(ErrCodeInvalidInput, format, args...)
}

// Connection reports a failed TCP connect (refused, unreachable, DNS).
func Connection(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeConnection, cause, format, args...)
}

// Write reports a failure while transmitting a payload after connecting.
func Write(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeWrite, cause, format, args...)
}

// Timeout reports that an operation exceeded its deadline.
func Timeout(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeTimeout, cause, format, args...)
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

// UserMessage returns a user-friendly message for the error.
// For *Error types the code prefix is dropped and the cause, if any, is
// appended so socket-level details reach the operator verbatim.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// IsTransient reports whether a retry of the same operation could succeed.
// Connection failures and timeouts are transient; validation and write
// failures are not.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ErrCodeConnection, ErrCodeTimeout:
		return true
	}
	return false
}

// HTTPStatus maps an error to the status code the HTTP API responds with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidDPI:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeTemplateNotFound, ErrCodePrinterNotFound:
		return http.StatusNotFound
	case ErrCodeConnection, ErrCodeWrite:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
