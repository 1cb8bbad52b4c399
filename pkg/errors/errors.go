// Package errors provides structured error handling for strata.
//
// Every error raised by the reader and writer layers carries an ErrorType so
// callers can tell a missing source from an unknown column or a bad formula
// without string matching.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeSourceUnavailable represents a file or dataset that cannot be opened
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"
	// ErrorTypeUnknownColumn represents a column name absent from every attached source
	ErrorTypeUnknownColumn ErrorType = "unknown_column"
	// ErrorTypeDuplicateColumn represents a column declared twice in one writer run
	ErrorTypeDuplicateColumn ErrorType = "duplicate_column"
	// ErrorTypeTypeMismatch represents a value or declaration incompatible with a column
	ErrorTypeTypeMismatch ErrorType = "type_mismatch"
	// ErrorTypeMalformedFormula represents formula text that cannot be compiled
	ErrorTypeMalformedFormula ErrorType = "malformed_formula"
	// ErrorTypeOutOfRange represents a row or element index outside the valid range
	ErrorTypeOutOfRange ErrorType = "out_of_range"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type. Only the outermost
// structured error in the chain is considered.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost structured error, or
// ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// UnknownColumn is shorthand for the most common reader-side failure.
func UnknownColumn(name string) *Error {
	return &Error{
		Type:    ErrorTypeUnknownColumn,
		Message: fmt.Sprintf("no column named %q", name),
		Details: map[string]interface{}{"column": name},
		Stack:   captureStack(2),
	}
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
