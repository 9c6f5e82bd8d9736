package bridge

import (
	"encoding/json"

	"github.com/grovetools/lore/errors"
)

// Frame is one JSON message on the bridge connection. Requests carry an ID,
// a Channel and a Payload; responses echo the ID and Channel with either a
// Result or an Error; pushes carry only a Channel and a Payload.
type Frame struct {
	ID      uint64          `json:"id,omitempty"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *FrameError     `json:"error,omitempty"`
}

// FrameError is the error half of a response frame.
type FrameError struct {
	Code    errors.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func newFrameError(err error) *FrameError {
	p := errors.ToPayload(err)
	return &FrameError{Code: p.Code, Message: p.Error, Details: p.Details}
}

// Err converts the frame error back into a coded error.
func (e *FrameError) Err() *errors.LoreError {
	return errors.FromPayload(errors.Payload{Error: e.Message, Code: e.Code, Details: e.Details})
}
