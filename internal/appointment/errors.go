package appointment

import (
	"errors"
	"fmt"
)

// Code classifies a lifecycle failure for the caller. Each code maps to one
// HTTP status in the api package.
type Code string

const (
	CodeValidation      Code = "validation_error"
	CodeTerminalState   Code = "terminal_state"
	CodeLeadTime        Code = "lead_time"
	CodeBookingDisabled Code = "booking_disabled"
	CodeSlotTaken       Code = "slot_taken"
	CodeNotFound        Code = "not_found"
	CodeForbidden       Code = "forbidden"
	CodeConflict        Code = "conflict"
)

// Error is a caller-visible lifecycle failure. Anything else returned by the
// Service is an infrastructure error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a lifecycle Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err is a lifecycle Error with the given code.
func IsCode(err error, code Code) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}
