package protocol

import (
	"errors"
	"fmt"
)

// Error codes carried in ErrorShape.Code.
const (
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrValidationFailed   = "VALIDATION_FAILED"
	ErrFailedPrecondition = "FAILED_PRECONDITION"
	ErrResourceExhausted  = "RESOURCE_EXHAUSTED"
	ErrInternal           = "INTERNAL"
)

// Error is a request failure with a wire code. Handlers return it (or wrap
// it) and the gateway turns it into an ErrorFrame.
type Error struct {
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// Errorf builds an *Error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Shape converts err into the wire error shape. Errors that are not an
// *Error are reported with fallbackCode.
func Shape(err error, fallbackCode string) *ErrorShape {
	var pe *Error
	if errors.As(err, &pe) {
		return &ErrorShape{Code: pe.Code, Message: pe.Message, Details: pe.Details}
	}
	return &ErrorShape{Code: fallbackCode, Message: err.Error()}
}
