package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

type capture struct {
	mu   sync.Mutex
	body map[string]any
}

func fakeServer(t *testing.T, reply string, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		c.mu.Lock()
		_ = json.Unmarshal(data, &c.body)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

const toolUseReply = `{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
  "content": [
    {"type": "text", "text": "Let me check."},
    {"type": "tool_use", "id": "toolu_1", "name": "get_shipment_by_id", "input": {"shipment_id": 5}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`

func descriptors() []shipdesk.Descriptor {
	return []shipdesk.Descriptor{{
		Name:        "get_shipment_by_id",
		Description: "Look up a shipment",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"shipment_id": map[string]any{"type": "integer"}},
			"required":   []any{"shipment_id"},
		},
	}}
}

func TestComplete_ToolUse(t *testing.T) {
	srv, got := fakeServer(t, toolUseReply, http.StatusOK)
	c := New("test-key", "claude-test", WithBaseURL(srv.URL), WithMaxRetries(0))

	msgs := []conversation.Message{
		conversation.System("You are a shipping assistant."),
		conversation.User("What is up with order 5?"),
	}
	resp, err := c.Complete(context.Background(), msgs, descriptors())
	require.NoError(t, err)
	require.Len(t, resp.Blocks, 2)
	assert.Equal(t, llm.TextBlock("Let me check."), resp.Blocks[0])
	assert.Equal(t, llm.BlockToolCall, resp.Blocks[1].Type)
	assert.Equal(t, "toolu_1", resp.Blocks[1].CallID)
	assert.Equal(t, "get_shipment_by_id", resp.Blocks[1].Name)
	assert.JSONEq(t, `{"shipment_id":5}`, string(resp.Blocks[1].Arguments))
	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)

	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, "claude-test", got.body["model"])
	system, _ := got.body["system"].([]any)
	require.Len(t, system, 1)
	tools, _ := got.body["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "get_shipment_by_id", tool["name"])
	schema := tool["input_schema"].(map[string]any)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"shipment_id"}, schema["required"])
}

func TestComplete_UpstreamError(t *testing.T) {
	srv, _ := fakeServer(t, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, http.StatusBadRequest)
	c := New("test-key", "claude-test", WithBaseURL(srv.URL), WithMaxRetries(0))
	_, err := c.Complete(context.Background(), []conversation.Message{conversation.User("hi")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestConvertMessages_GroupsToolResults(t *testing.T) {
	msgs := []conversation.Message{
		conversation.User("q"),
		conversation.Assistant("checking",
			conversation.ToolCallRequest{CallID: "a", Name: "t1", Arguments: json.RawMessage(`{"x":1}`)},
			conversation.ToolCallRequest{CallID: "b", Name: "t2", Arguments: json.RawMessage(`{bad`), Malformed: true},
		),
		conversation.ToolOutput("a", "t1", json.RawMessage(`{"ok":true}`), false),
		conversation.ToolOutput("b", "t2", json.RawMessage(`{"error":{"kind":"argument_parse"}}`), true),
	}
	out := convertMessages(msgs)
	require.Len(t, out, 3)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "user", decoded[0]["role"])
	assert.Equal(t, "assistant", decoded[1]["role"])
	assert.Equal(t, "user", decoded[2]["role"])
	content := decoded[2]["content"].([]any)
	require.Len(t, content, 2)
	first := content[0].(map[string]any)
	assert.Equal(t, "tool_result", first["type"])
	assert.Equal(t, "a", first["tool_use_id"])
	second := content[1].(map[string]any)
	assert.Equal(t, true, second["is_error"])

	assistant := decoded[1]["content"].([]any)
	require.Len(t, assistant, 3)
	malformed := assistant[2].(map[string]any)
	assert.Equal(t, map[string]any{}, malformed["input"])
}

func TestToolInput(t *testing.T) {
	assert.Equal(t, map[string]any{}, toolInput(nil))
	assert.Equal(t, map[string]any{}, toolInput(json.RawMessage(`[1]`)))
	assert.Equal(t, json.RawMessage(`{"a":1}`), toolInput(json.RawMessage(`{"a":1}`)))
}
