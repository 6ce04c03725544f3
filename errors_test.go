package shipdesk

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientError(t *testing.T) {
	err := &ClientError{Reason: "missing field", Err: ErrValidation}
	assert.Equal(t, "invalid tool input: missing field", err.Error())
	assert.True(t, IsClientError(err))
	assert.False(t, IsSystemError(err))
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, IsClientError(fmt.Errorf("wrapped: %w", err)))
}

func TestSystemError(t *testing.T) {
	inner := errors.New("db down")
	err := &SystemError{Err: inner}
	assert.Equal(t, "internal system error during tool execution", err.Error())
	assert.True(t, IsSystemError(err))
	assert.False(t, IsClientError(err))
	assert.ErrorIs(t, err, inner)
}

func TestUnknownToolError(t *testing.T) {
	err := &UnknownToolError{Name: "cancel_shipment"}
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Contains(t, err.Error(), "cancel_shipment")
}

func TestDuplicateToolError(t *testing.T) {
	err := &DuplicateToolError{Name: "get_shipment_by_id"}
	assert.ErrorIs(t, err, ErrDuplicateTool)
	assert.Contains(t, err.Error(), "get_shipment_by_id")
}

func TestToolExecutionError(t *testing.T) {
	cause := &ClientError{Reason: "bad"}
	err := &ToolExecutionError{Tool: "t", Cause: cause}
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "tool t failed")
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"client", &ToolExecutionError{Tool: "t", Cause: &ClientError{Reason: "seconds must be positive"}}, "invalid tool input: seconds must be positive"},
		{"unknown", &UnknownToolError{Name: "x"}, `unknown tool "x"`},
		{"timeout", &ToolExecutionError{Tool: "t", Cause: ErrTimeout}, ErrTimeout.Error()},
		{"shutdown", &ToolExecutionError{Tool: "t", Cause: ErrShutdown}, ErrShutdown.Error()},
		{"system", &ToolExecutionError{Tool: "t", Cause: &SystemError{Err: errors.New("dial tcp 10.0.0.1:5432")}}, "internal system error during tool execution"},
		{"raw", errors.New("secret"), "internal system error during tool execution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicMessage(tt.err))
		})
	}
}

func TestWrapJSONParseError(t *testing.T) {
	err := wrapJSONParseError(errors.New("unexpected EOF"))
	assert.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), "json parse error: unexpected EOF")
}
