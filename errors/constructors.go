package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"syscall"
)

// OutOfBounds creates an error for a path that escapes the workspace root
func OutOfBounds(path string) *LoreError {
	return New(ErrCodeOutOfBounds, fmt.Sprintf("path escapes workspace root: %s", path)).
		WithDetail("path", path)
}

// NotFound creates a not found error
func NotFound(path string) *LoreError {
	return New(ErrCodeNotFound, fmt.Sprintf("no such file or directory: %s", path)).
		WithDetail("path", path)
}

// NotADirectory creates an error for a path that is expected to be a directory
func NotADirectory(path string) *LoreError {
	return New(ErrCodeNotADirectory, fmt.Sprintf("not a directory: %s", path)).
		WithDetail("path", path)
}

// AlreadyExists creates an error for an occupied destination
func AlreadyExists(path string) *LoreError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("already exists: %s", path)).
		WithDetail("path", path)
}

// NotEmpty creates an error for a non-empty directory
func NotEmpty(path string) *LoreError {
	return New(ErrCodeNotEmpty, fmt.Sprintf("directory not empty: %s", path)).
		WithDetail("path", path)
}

// Conflict creates an error for a rejected conditional write
func Conflict(path, reason string) *LoreError {
	return New(ErrCodeConflict, fmt.Sprintf("write conflict on %s: %s", path, reason)).
		WithDetail("path", path)
}

// InvalidInput creates an input validation error
func InvalidInput(reason string) *LoreError {
	return New(ErrCodeInvalidInput, reason)
}

// IO wraps an underlying disk failure
func IO(err error, op, path string) *LoreError {
	return Wrap(err, ErrCodeIO, fmt.Sprintf("%s failed: %s", op, path)).
		WithDetail("op", op).
		WithDetail("path", path)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *LoreError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *LoreError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// FromOS classifies an error returned by the os package into the workspace
// taxonomy. Errors that are already LoreErrors pass through untouched.
func FromOS(err error, op, path string) error {
	if err == nil {
		return nil
	}

	var loreErr *LoreError
	if stderrors.As(err, &loreErr) {
		return err
	}

	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return NotFound(path)
	case stderrors.Is(err, syscall.ENOTEMPTY):
		return NotEmpty(path)
	case stderrors.Is(err, fs.ErrExist):
		return AlreadyExists(path)
	case stderrors.Is(err, syscall.ENOTDIR):
		return NotADirectory(path)
	}
	return IO(err, op, path)
}
