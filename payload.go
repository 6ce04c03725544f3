package shipdesk

import (
	"context"
	"encoding/json"
	"errors"
)

// Error kinds carried in ErrorPayload.
const (
	KindUnknownTool   = "unknown_tool"
	KindArgumentParse = "argument_parse"
	KindInvalidInput  = "invalid_input"
	KindTimeout       = "timeout"
	KindCanceled      = "canceled"
	KindInternal      = "internal"
)

// ErrorKind classifies a tool failure for the model.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrToolNotFound):
		return KindUnknownTool
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case IsClientError(err):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// ErrorBody is the decoded form of ErrorPayload.
type ErrorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// ErrorPayload is the JSON a failed call is answered with: {"error":{"kind":...,"message":...}}.
func ErrorPayload(kind, message string) json.RawMessage {
	var b ErrorBody
	b.Error.Kind = kind
	b.Error.Message = message
	data, err := json.Marshal(b)
	if err != nil {
		return json.RawMessage(`{"error":{"kind":"internal","message":"internal error"}}`)
	}
	return data
}

// ParseErrorPayload decodes an ErrorPayload. ok is false for any other JSON.
func ParseErrorPayload(data []byte) (ErrorBody, bool) {
	var b ErrorBody
	if err := json.Unmarshal(data, &b); err != nil || b.Error.Kind == "" {
		return ErrorBody{}, false
	}
	return b, true
}
