package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateArguments checks args against tool's InputSchema before the
// call is dispatched to the server, catching malformed tool calls (ours
// or the model's) without a network round trip. A tool with no schema is
// treated as unconstrained.
func validateArguments(tool *MCPTool, args map[string]any) error {
	if tool == nil || len(tool.InputSchema) == 0 {
		return nil
	}

	schema, err := jsonschema.CompileString(tool.Name+".json", string(tool.InputSchema))
	if err != nil {
		// A tool-supplied schema we can't compile shouldn't block the call;
		// the server itself is the final arbiter of its own arguments.
		return nil
	}

	normalized, err := normalizeArguments(args)
	if err != nil {
		return fmt.Errorf("mcp: normalize arguments for %s: %w", tool.Name, err)
	}

	if err := schema.Validate(normalized); err != nil {
		return fmt.Errorf("mcp: arguments for %s: %w", tool.Name, err)
	}
	return nil
}

// normalizeArguments round-trips args through JSON so Go's native int/
// float types become the float64/string/bool/nil shape the schema
// validator expects, matching how a wire-decoded call would look.
func normalizeArguments(args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}
