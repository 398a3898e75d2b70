// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package core

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures so callers can branch on the class of a
// problem instead of inspecting message strings. The API layer maps codes to
// HTTP statuses and never surfaces wrapped internals to clients.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION"
	CodeCapacity          ErrorCode = "CAPACITY"
	CodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	CodeSession           ErrorCode = "SESSION"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
)

// Error is the taxonomy error carried across component boundaries.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NewValidationError(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

func NewCapacityError(format string, args ...any) *Error {
	return newError(CodeCapacity, format, args...)
}

func NewDeviceUnavailableError(format string, args ...any) *Error {
	return newError(CodeDeviceUnavailable, format, args...)
}

func NewNotFoundError(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func NewConflictError(format string, args ...any) *Error {
	return newError(CodeConflict, format, args...)
}

func NewTimeoutError(format string, args ...any) *Error {
	return newError(CodeTimeout, format, args...)
}

func NewRetryExhaustedError(format string, args ...any) *Error {
	return newError(CodeRetryExhausted, format, args...)
}

// NewSessionError wraps a driver or session-manager failure.
func NewSessionError(err error, format string, args ...any) *Error {
	return &Error{Code: CodeSession, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the taxonomy code from err, unwrapping as needed. Errors
// outside the taxonomy report CodeSession as the generic internal class.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeSession
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
