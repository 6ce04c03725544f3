package shipdesk

import (
	"bytes"

	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validatable is implemented by argument structs that need custom business validation.
// Called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// schemaValidator validates a JSON-like value decoded with decodeInstance.
// Used by both Binder and dynamic tools. *validator.Schema implements it.
type schemaValidator interface {
	Validate(v any) error
}

// decodeInstance parses argsJSON the way the schema validator expects (numbers as json.Number).
// Empty input is treated as an empty object; models often omit arguments for zero-arg tools.
func decodeInstance(argsJSON []byte) (any, error) {
	if len(bytes.TrimSpace(argsJSON)) == 0 {
		return map[string]any{}, nil
	}
	return validator.UnmarshalJSON(bytes.NewReader(argsJSON))
}

// validateAgainstSchema runs Layer 1 validation on already-parsed value v.
// Parse errors are reported by the caller.
func validateAgainstSchema(validate schemaValidator, v any) error {
	if err := validate.Validate(v); err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return nil
}

// validateCustom runs Layer 2 (Validatable) if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}
