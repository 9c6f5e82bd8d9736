package errors

import (
	stderrors "errors"
	"net/http"
)

// HTTPStatus maps an error onto the status code the HTTP adapter answers
// with. Errors without a code are internal.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeOutOfBounds, ErrCodeInvalidInput, ErrCodeNotADirectory:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists, ErrCodeNotEmpty, ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Payload is the JSON body of an error response.
type Payload struct {
	Error   string                 `json:"error"`
	Code    ErrorCode              `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToPayload converts err into its wire form. Uncoded errors become
// INTERNAL_ERROR.
func ToPayload(err error) Payload {
	var loreErr *LoreError
	if stderrors.As(err, &loreErr) {
		return Payload{Error: loreErr.Message, Code: loreErr.Code, Details: loreErr.Details}
	}
	return Payload{Error: err.Error(), Code: ErrCodeInternal}
}

// FromPayload rebuilds a LoreError from its wire form.
func FromPayload(p Payload) *LoreError {
	code := p.Code
	if code == "" {
		code = ErrCodeInternal
	}
	return &LoreError{Code: code, Message: p.Error, Details: p.Details}
}
