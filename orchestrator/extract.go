package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/llm"
)

// Extraction is the normalized content of one model response, in block order.
type Extraction struct {
	Texts []string
	Calls []conversation.ToolCallRequest
}

// Empty reports whether the response carried neither text nor tool calls.
func (e Extraction) Empty() bool { return len(e.Texts) == 0 && len(e.Calls) == 0 }

// Extract splits resp into text blocks and tool calls.
//
// Calls whose arguments are not valid JSON are still returned, flagged Malformed, and an
// *ArgumentParseError for each is joined into the returned error. Calls without an id get
// the synthetic id call_<turn>_<block index>, unique within a session as long as turn is.
// Empty arguments are treated as an empty object.
func Extract(resp *llm.Response, turn int) (Extraction, error) {
	var ext Extraction
	if resp == nil {
		return ext, nil
	}
	var errs []error
	for i, b := range resp.Blocks {
		switch b.Type {
		case llm.BlockText:
			if b.Text != "" {
				ext.Texts = append(ext.Texts, b.Text)
			}
		case llm.BlockToolCall:
			call := conversation.ToolCallRequest{
				CallID:    b.CallID,
				Name:      b.Name,
				Arguments: b.Arguments,
			}
			if call.CallID == "" {
				call.CallID = fmt.Sprintf("call_%d_%d", turn, i)
			}
			if len(call.Arguments) == 0 {
				call.Arguments = json.RawMessage(`{}`)
			}
			if err := checkArguments(call.Arguments); err != nil {
				call.Malformed = true
				errs = append(errs, &ArgumentParseError{CallID: call.CallID, Tool: call.Name, Err: err})
			}
			ext.Calls = append(ext.Calls, call)
		}
	}
	return ext, errors.Join(errs...)
}

// checkArguments accepts a JSON object only.
func checkArguments(args json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(args, &obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("arguments must be a JSON object")
	}
	return nil
}
