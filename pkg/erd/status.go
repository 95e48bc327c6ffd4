// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import (
	"errors"
	"fmt"
)

// StatusCode is the result of a native call. Any value other than StatusSuccess
// denotes failure; the numeric values match the native enumeration.
type StatusCode int32

const (
	StatusSuccess StatusCode = iota
	StatusUnknown
	StatusInvalidStatus
	StatusInvalidArgument
	StatusInvalidUnit
	StatusSystemError
	StatusAllocError
	StatusGenericError
)

var statusNames = map[StatusCode]string{
	StatusSuccess:         "success",
	StatusUnknown:         "unknown",
	StatusInvalidStatus:   "invalid_status",
	StatusInvalidArgument: "invalid_argument",
	StatusInvalidUnit:     "invalid_unit",
	StatusSystemError:     "system_error",
	StatusAllocError:      "alloc_error",
	StatusGenericError:    "generic_error",
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// OK reports whether s is StatusSuccess
func (s StatusCode) OK() bool {
	return s == StatusSuccess
}

// ErrDestroyed is returned when an operation is attempted on a resource that
// has already been destroyed
var ErrDestroyed = errors.New("resource already destroyed")

// Error is returned by every fallible operation of this package. It carries
// the operation that failed, the native status and, for calls whose contract
// includes an error descriptor, the diagnostic text written by the native side.
type Error struct {
	Op        string
	Status    StatusCode
	Detail    string
	HasDetail bool

	// Err is set when the failure was detected before reaching the native side
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("failed to %s: %s", e.Op, e.Status)
	if e.HasDetail {
		msg = fmt.Sprintf("%s (desc: %s)", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError translates a non-success status into an *Error. The descriptor may
// be nil for calls that do not take one.
func newError(op string, status StatusCode, ed *ErrorDescriptor) *Error {
	err := &Error{Op: op, Status: status}
	if ed != nil {
		err.Detail = ed.String()
		err.HasDetail = true
	}
	return err
}

func destroyedError(op string, status StatusCode) *Error {
	return &Error{Op: op, Status: status, Err: ErrDestroyed}
}

// StatusOf returns the native status carried by err. It returns StatusSuccess
// for a nil error and StatusUnknown for errors not produced by this package.
func StatusOf(err error) StatusCode {
	if err == nil {
		return StatusSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusUnknown
}
