package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/logging"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	var loreErr *errors.LoreError
	_ = stderrors.As(err, &loreErr)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		h.printf("%s Configuration not found: %s\n", logging.IconError, detail(loreErr, "path"))
		h.printf("Omit --config to run with defaults, or see 'lore paths' for the config directory.\n")

	case errors.ErrCodeConfigInvalid:
		h.printf("%s Invalid configuration: %v\n", logging.IconError, err)
		h.printf("Run 'lore config schema' to see the accepted keys.\n")

	case errors.ErrCodeNotFound:
		h.printf("%s No such file or directory: %s\n", logging.IconError, detail(loreErr, "path"))

	case errors.ErrCodeOutOfBounds:
		h.printf("%s Path is outside the workspace: %s\n", logging.IconError, detail(loreErr, "path"))
		h.printf("Paths are relative to the workspace root and may not contain '..'.\n")

	case errors.ErrCodeNotEmpty:
		h.printf("%s Directory is not empty: %s\n", logging.IconError, detail(loreErr, "path"))
		h.printf("Pass -r to remove it with its contents.\n")

	case errors.ErrCodeAlreadyExists:
		h.printf("%s Already exists: %s\n", logging.IconError, detail(loreErr, "path"))

	case errors.ErrCodeConflict:
		h.printf("%s %s\n", logging.IconError, loreErr.Message)
		h.printf("The file changed since it was read. Read it again and retry.\n")

	default:
		// Generic error handling
		h.printf("%s Error: %v\n", logging.IconError, err)
	}

	// If verbose mode, show full error details
	if h.Verbose && loreErr != nil {
		h.printf("\nError details:\n%s\n", loreErr.ToJSON())
	}
	return err
}

func (h *ErrorHandler) printf(format string, args ...interface{}) {
	fmt.Fprintf(h.Out, format, args...)
}

func detail(e *errors.LoreError, key string) interface{} {
	if e == nil || e.Details[key] == nil {
		return "(unknown)"
	}
	return e.Details[key]
}
