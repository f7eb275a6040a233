// Package apperror provides a structured way to handle application errors
// with specific codes, severity levels, and additional details. It also
// includes utilities for translating errors to an HTTP response.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	CodeResourceNotFound      ErrorCode = "resource_not_found"
	CodeResourceGone          ErrorCode = "resource_gone"
	CodeProfileNotFound       ErrorCode = "profile_not_found"
	CodeInvalidParameter      ErrorCode = "invalid_parameter"
	CodeInvalidValue          ErrorCode = "invalid_value"
	CodeAggregationNotAllowed ErrorCode = "aggregation_not_allowed"
	CodeDownstreamUnavailable ErrorCode = "downstream_unavailable"
	CodeInternal              ErrorCode = "internal"
)

// Severity defines the criticality level of an error.
type Severity int

const (
	// SeverityWarning indicates a non-critical issue that can be ignored or automatically resolved.
	SeverityWarning Severity = iota
	// SeverityError indicates a standard error that requires attention.
	SeverityError
	// SeverityCritical indicates a severe error that might require immediate human intervention.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a custom error type that includes an ErrorCode, message,
// an optional field, additional details, an underlying cause, and a
// severity level.
type Error struct {
	Code     ErrorCode
	Message  string
	Field    string // offending column, where applicable
	Details  map[string]any
	Cause    error
	Severity Severity
	// Timeout marks a downstream_unavailable error caused specifically
	// by a deadline expiry, which the HTTP boundary maps to 504
	// instead of 502.
	Timeout bool
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code onto the status table of the
// gateway's error taxonomy.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeResourceNotFound, CodeProfileNotFound:
		return http.StatusNotFound
	case CodeResourceGone:
		return http.StatusGone
	case CodeInvalidParameter, CodeInvalidValue:
		return http.StatusBadRequest
	case CodeAggregationNotAllowed:
		return http.StatusForbidden
	case CodeDownstreamUnavailable:
		if e.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new application error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any), Severity: SeverityError}
}

// NewWithField creates a new application error naming the offending
// column/field.
func NewWithField(code ErrorCode, message, field string) *Error {
	return &Error{Code: code, Message: message, Field: field, Details: make(map[string]any), Severity: SeverityError}
}

// Wrap creates a new application error that wraps an existing error,
// providing additional context with a code and message.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Details: make(map[string]any), Severity: SeverityError}
}

// WithDetails adds a key-value pair to the error's details map and
// returns the modified error.
func (e *Error) WithDetails(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// WithSeverity sets the severity level of the error and returns the
// modified error.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// WithTimeout marks the error as caused by a deadline expiry.
func (e *Error) WithTimeout() *Error {
	e.Timeout = true
	return e
}

// Is checks if the given error is an application error with a
// matching ErrorCode.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from an error, defaulting to
// CodeInternal for anything not produced by this package.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCritical checks if the given error is an application error with
// SeverityCritical.
func IsCritical(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// AsError unwraps err into an *Error, wrapping it as CodeInternal if
// it isn't already one.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, err.Error())
}
