package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Workspace errors
	ErrCodeOutOfBounds   ErrorCode = "OUT_OF_BOUNDS"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeNotADirectory ErrorCode = "NOT_A_DIRECTORY"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeNotEmpty      ErrorCode = "NOT_EMPTY"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeIO            ErrorCode = "IO_ERROR"

	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// LoreError represents a structured error with context
type LoreError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LoreError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *LoreError) WithDetail(key string, value interface{}) *LoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *LoreError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new LoreError
func New(code ErrorCode, message string) *LoreError {
	return &LoreError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a LoreError
func Wrap(err error, code ErrorCode, message string) *LoreError {
	return &LoreError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific LoreError code.
// The outermost LoreError in the chain decides.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var loreErr *LoreError
	if !stderrors.As(err, &loreErr) {
		return ""
	}
	return loreErr.Code
}
