package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures so callers can decide whether to retry.
type ErrorType string

const (
	ErrorTypeNavigation  ErrorType = "navigation"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeChallenge   ErrorType = "challenge"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeCredentials ErrorType = "credentials"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeProcess     ErrorType = "process"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeUnreachable ErrorType = "unreachable"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a classified failure. Op names the operation that failed,
// Err is the underlying cause if any.
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s %s error: %s", e.Op, e.Type, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error without a cause.
func New(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(t ErrorType, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Op: op, Err: err}
}

// Wrapf classifies err with an additional message.
func Wrapf(t ErrorType, op string, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// TypeOf returns the classification of the outermost *Error in err's chain.
// Context errors map to timeout, anything else unclassified to unknown.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given classification.
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeTimeout, ErrorTypeChallenge:
		return true
	case ErrorTypeAuth, ErrorTypeCredentials, ErrorTypeParsing,
		ErrorTypeProcess, ErrorTypeNotFound, ErrorTypeUnreachable:
		return false
	default:
		return false
	}
}

// IsRetryableError applies IsRetryable to err's classification. Cancellation
// of the caller's context is never retryable.
func IsRetryableError(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}
	return IsRetryable(TypeOf(err))
}
