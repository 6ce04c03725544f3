package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrMaxTurnsExceeded is matched by *MaxTurnsError.
	ErrMaxTurnsExceeded = errors.New("max turns exceeded")
	// ErrMalformedResponse is returned when the model produced neither text nor tool calls.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrArgumentParse is matched by *ArgumentParseError.
	ErrArgumentParse = errors.New("tool arguments are not valid JSON")
)

// ArgumentParseError names a tool call whose arguments could not be parsed.
// The loop answers such calls with an error result instead of aborting.
type ArgumentParseError struct {
	CallID string
	Tool   string
	Err    error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("call %s (%s): %v: %v", e.CallID, e.Tool, ErrArgumentParse, e.Err)
}

func (e *ArgumentParseError) Unwrap() []error { return []error{ErrArgumentParse, e.Err} }

// MaxTurnsError is returned when the model keeps calling tools past the configured limit.
type MaxTurnsError struct {
	Limit int
}

func (e *MaxTurnsError) Error() string {
	return fmt.Sprintf("%v: limit %d", ErrMaxTurnsExceeded, e.Limit)
}

func (e *MaxTurnsError) Unwrap() error { return ErrMaxTurnsExceeded }

// UpstreamModelError wraps a failed model call. The loop does not retry it.
type UpstreamModelError struct {
	Turn int
	Err  error
}

func (e *UpstreamModelError) Error() string {
	return fmt.Sprintf("model call failed on turn %d: %v", e.Turn, e.Err)
}

func (e *UpstreamModelError) Unwrap() error { return e.Err }
