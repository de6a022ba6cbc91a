// Package errors provides the error code taxonomy shared by the field
// client and the server.
package errors

import "fmt"

// ErrorCode identifies a class of failure. Codes decide retry behavior:
// transient codes are requeued, everything else surfaces immediately.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE_ENTRY"

	// Local storage errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrQueueFull ErrorCode = "QUEUE_FULL"

	// Remote store errors
	ErrTransientRemote ErrorCode = "TRANSIENT_REMOTE"
	ErrNotFoundRemote  ErrorCode = "NOT_FOUND_REMOTE"
	ErrConfiguration   ErrorCode = "CONFIGURATION_ERROR"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code. The check walks the wrap
// chain so a transient error stays transient through fmt.Errorf("%w").
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Retryable reports whether the error should be retried via the queue.
// Only transient remote failures qualify; validation, configuration and
// duplicate errors never do.
func Retryable(err error) bool {
	return Is(err, ErrTransientRemote)
}
