// Package shipdesk is the tool layer of a shipping customer-service assistant: it registers,
// describes and safely executes the tools an LLM may call while answering a shipper or courier.
//
// # Overview
//
// LLMs produce tool calls as JSON. This package turns that JSON into concrete Go
// function calls: unmarshal → validate (against the same JSON Schema shown to the
// LLM) → execute → marshal result or return a clear error for self-correction.
//
// Pipeline: Go function + argument struct → NewTool (reflection + schema) → Tool →
// Registry → Execute (unmarshal, validate, call, marshal) → ToolResult.
//
// # Key concepts
//
//   - Single Source of Truth: one argument struct drives both the schema sent to the
//     LLM and the validation of incoming JSON.
//   - Stable catalog: Registry.Descriptors lists tools in registration order and
//     names are unique.
//   - Self-Correction: ClientError carries human-readable messages back to the LLM;
//     SystemError hides internal failures (see PublicMessage).
//   - Channel identity: WithIdentity puts the caller authenticated by the inbound
//     channel into the context so identity-scoped tools never trust model text.
//
// The conversation loop lives in package orchestrator, the shipment tools in
// toolkits/shipments and the storage behind them in gateway.
//
// # Example
//
//	type Args struct { ShipmentID int `json:"shipment_id"` }
//	type Out  struct { Found bool `json:"found"` }
//	tool, err := shipdesk.NewTool("get_shipment_by_id", "Look up a shipment", func(_ context.Context, a Args) (Out, error) {
//	    return Out{Found: true}, nil
//	})
//	if err != nil { ... }
//	reg := shipdesk.NewRegistry()
//	if err := reg.Register(tool); err != nil { ... }
//	result := reg.Execute(ctx, shipdesk.ToolCall{ID: "1", ToolName: "get_shipment_by_id", Args: []byte(`{"shipment_id":5}`)})
package shipdesk
