package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guileen/dbtrack/logger"
)

// Error codes carried by *Error.
const (
	CodeClosed           = "closed"
	CodeInvalidSavepoint = "invalid_savepoint"
	CodeUnsupported      = "unsupported"
	CodeNotTracked       = "not_tracked"
)

// Error is a coded failure raised by the tracking layer itself rather than by
// a wrapped driver. Two *Error values match under errors.Is when their codes
// are equal.
type Error struct {
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Log writes e to the global logger at level, with any context values.
func (e *Error) Log(ctx context.Context, level slog.Level) {
	args := []any{
		logger.String("error_code", e.Code),
		logger.Operation(e.Op),
		logger.String("message", e.Message),
	}
	if e.Err != nil {
		args = append(args, logger.String("cause", e.Err.Error()))
	}
	logger.Logger.Log(ctx, level, "tracking error", append(args, logger.ExtractContextValues(ctx)...)...)
}

// Errorf creates an *Error with a formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and operation to err.
func Wrap(err error, code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Sentinels for errors.Is matching by code.
var (
	ErrClosed           = &Error{Code: CodeClosed, Message: "resource is closed"}
	ErrInvalidSavepoint = &Error{Code: CodeInvalidSavepoint, Message: "invalid savepoint"}
	ErrUnsupported      = &Error{Code: CodeUnsupported, Message: "operation not supported by the wrapped handle"}
	ErrNotTracked       = &Error{Code: CodeNotTracked, Message: "resource is not tracked"}
)
