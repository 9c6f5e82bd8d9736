package errors

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"syscall"
	"testing"
)

func TestLoreError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeNotFound, "missing")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeIO, "write failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeIO) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	if Is(fmt.Errorf("reading: %w", wrapped), ErrCodeIO) == false {
		t.Error("Is should see through fmt.Errorf wrapping")
	}

	// Test WithDetail
	detailed := err.WithDetail("path", "a/b.md").WithDetail("attempt", 2)
	if detailed.Details["path"] != "a/b.md" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *LoreError
		code ErrorCode
	}{
		{"out of bounds", OutOfBounds("../etc"), ErrCodeOutOfBounds},
		{"not found", NotFound("a"), ErrCodeNotFound},
		{"not a directory", NotADirectory("a"), ErrCodeNotADirectory},
		{"already exists", AlreadyExists("a"), ErrCodeAlreadyExists},
		{"not empty", NotEmpty("a"), ErrCodeNotEmpty},
		{"conflict", Conflict("a", "mtime changed"), ErrCodeConflict},
		{"invalid input", InvalidInput("bad"), ErrCodeInvalidInput},
		{"config not found", ConfigNotFound("lore.yml"), ErrCodeConfigNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if GetCode(tt.err) != tt.code {
				t.Errorf("GetCode() = %s, want %s", GetCode(tt.err), tt.code)
			}
		})
	}
}

func TestFromOS(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"not exist", &fs.PathError{Op: "open", Path: "x", Err: syscall.ENOENT}, ErrCodeNotFound},
		{"exist", &fs.PathError{Op: "mkdir", Path: "x", Err: syscall.EEXIST}, ErrCodeAlreadyExists},
		{"not empty", &fs.PathError{Op: "remove", Path: "x", Err: syscall.ENOTEMPTY}, ErrCodeNotEmpty},
		{"not dir", &fs.PathError{Op: "open", Path: "x", Err: syscall.ENOTDIR}, ErrCodeNotADirectory},
		{"permission", &fs.PathError{Op: "open", Path: "x", Err: os.ErrPermission}, ErrCodeIO},
		{"passthrough", OutOfBounds("x"), ErrCodeOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetCode(FromOS(tt.err, "op", "x"))
			if got != tt.want {
				t.Errorf("FromOS() code = %s, want %s", got, tt.want)
			}
		})
	}

	if FromOS(nil, "op", "x") != nil {
		t.Error("FromOS(nil) should be nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{OutOfBounds("../x"), http.StatusBadRequest},
		{InvalidInput("bad"), http.StatusBadRequest},
		{NotADirectory("a"), http.StatusBadRequest},
		{NotFound("a"), http.StatusNotFound},
		{AlreadyExists("a"), http.StatusConflict},
		{NotEmpty("a"), http.StatusConflict},
		{Conflict("a", "stale"), http.StatusConflict},
		{IO(fmt.Errorf("disk"), "write", "a"), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p := ToPayload(fmt.Errorf("op: %w", NotFound("notes/a.md")))
	if p.Code != ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", p.Code)
	}

	back := FromPayload(p)
	if !Is(back, ErrCodeNotFound) || back.Message != p.Error {
		t.Errorf("unexpected round trip: %+v", back)
	}

	if got := ToPayload(fmt.Errorf("boom")).Code; got != ErrCodeInternal {
		t.Errorf("uncoded errors should be internal, got %s", got)
	}
	if got := FromPayload(Payload{Error: "x"}).Code; got != ErrCodeInternal {
		t.Errorf("empty code should become internal, got %s", got)
	}
}
