package core

import (
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Input errors
	ErrorCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorCodePatternInvalid    ErrorCode = "PATTERN_INVALID"
	ErrorCodeDirectoryNotFound ErrorCode = "DIRECTORY_NOT_FOUND"
	ErrorCodeFileNotFound      ErrorCode = "FILE_NOT_FOUND"

	// Engine errors
	ErrorCodeEngineNotFound     ErrorCode = "ENGINE_NOT_FOUND"
	ErrorCodeEngineExecFailed   ErrorCode = "ENGINE_EXEC_FAILED"
	ErrorCodeEngineDecodeFailed ErrorCode = "ENGINE_DECODE_FAILED"

	// Language errors
	ErrorCodeLanguageUnsupported ErrorCode = "LANGUAGE_UNSUPPORTED"

	// Stream errors
	ErrorCodeStreamNotFound ErrorCode = "STREAM_NOT_FOUND"
	ErrorCodeStreamClosed   ErrorCode = "STREAM_CLOSED"

	// Configuration errors
	ErrorCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrorCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
)

// Error represents a structured error with code and metadata
type Error struct {
	Err      error          `json:"error"`
	Code     ErrorCode      `json:"code"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewError creates a new structured error for domain boundaries
func NewError(err error, code ErrorCode, metadata map[string]any) *Error {
	return &Error{
		Err:      err,
		Code:     code,
		Metadata: metadata,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if len(e.Metadata) > 0 {
		return fmt.Sprintf("[%s] %v (metadata: %v)", e.Code, e.Err, e.Metadata)
	}
	return fmt.Sprintf("[%s] %v", e.Code, e.Err)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}
