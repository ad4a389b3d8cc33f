package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors; every Error returned by Service wraps exactly one of them
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries a client-facing message for one of the sentinel errors
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func notFound(format string, args ...interface{}) error {
	return &Error{Err: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...interface{}) error {
	return &Error{Err: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func invalidInput(err error) error {
	return &Error{Err: ErrInvalidInput, Message: err.Error()}
}

// Message returns the client-facing message of err, or "" when err is not
// a catalog Error
func Message(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return ""
}
