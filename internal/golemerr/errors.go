// Package golemerr provides structured error types for golem.
package golemerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for golem. Step and directive failures travel as
// executor results rather than errors, so the codes here cover only
// the places where an error actually crosses a package boundary.
const (
	// Actuator errors
	CodeActuatorRejected Code = "ACTUATOR_REJECTED"
	CodeActuatorClosed   Code = "ACTUATOR_CLOSED"

	// Timing errors
	CodeMaxRetries Code = "MAX_RETRIES_EXCEEDED"

	// Planning errors
	CodePlannerUnavailable Code = "PLANNER_UNAVAILABLE"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// Error is the structured error type for golem.
type Error struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, What: e.What, Why: e.Why, Cause: err}
}

// --- Error constructors ---

// ErrActuatorRejected returns an error when the actuator returns ok=false.
func ErrActuatorRejected(cmdType, reason string) *Error {
	return &Error{
		Code: CodeActuatorRejected,
		What: fmt.Sprintf("actuator rejected %s command", cmdType),
		Why:  reason,
	}
}

// ErrActuatorClosed returns an error when the command channel is gone.
func ErrActuatorClosed() *Error {
	return &Error{
		Code: CodeActuatorClosed,
		What: "actuator connection is closed",
	}
}

// ErrMaxRetries returns an error when bounded retries are exhausted.
func ErrMaxRetries(op string, attempts int) *Error {
	return &Error{
		Code: CodeMaxRetries,
		What: fmt.Sprintf("%s failed after %d attempts", op, attempts),
	}
}

// ErrPlannerUnavailable returns an error when the planning service cannot be reached.
func ErrPlannerUnavailable(err error) *Error {
	return &Error{
		Code:  CodePlannerUnavailable,
		What:  "planning service is unavailable",
		Cause: err,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *Error {
	return &Error{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
	}
}

// AsError attempts to convert an error to a golem Error.
// Returns nil if the error is not one.
func AsError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return nil
}

// CodeOf returns the code of err, or "UNKNOWN" for foreign errors.
func CodeOf(err error) Code {
	if ge := AsError(err); ge != nil {
		return ge.Code
	}
	return Code("UNKNOWN")
}
