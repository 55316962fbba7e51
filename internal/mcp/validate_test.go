package mcp

import "testing"

func TestValidateArgumentsNilSchemaAllowsAnything(t *testing.T) {
	if err := validateArguments(nil, map[string]any{"anything": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tool := &MCPTool{Name: "no-schema"}
	if err := validateArguments(tool, map[string]any{"anything": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateArgumentsAcceptsMatchingSchema(t *testing.T) {
	tool := &MCPTool{
		Name: "search",
		InputSchema: []byte(`{
			"type": "object",
			"properties": {"query": {"type": "string"}},
			"required": ["query"],
			"additionalProperties": false
		}`),
	}
	if err := validateArguments(tool, map[string]any{"query": "hello"}); err != nil {
		t.Fatalf("expected valid arguments to pass, got: %v", err)
	}
}

func TestValidateArgumentsRejectsMissingRequiredField(t *testing.T) {
	tool := &MCPTool{
		Name: "search",
		InputSchema: []byte(`{
			"type": "object",
			"properties": {"query": {"type": "string"}},
			"required": ["query"]
		}`),
	}
	if err := validateArguments(tool, map[string]any{}); err == nil {
		t.Fatal("expected an error for missing required field")
	}
}

func TestValidateArgumentsRejectsWrongType(t *testing.T) {
	tool := &MCPTool{
		Name: "search",
		InputSchema: []byte(`{
			"type": "object",
			"properties": {"limit": {"type": "integer"}}
		}`),
	}
	if err := validateArguments(tool, map[string]any{"limit": "not-a-number"}); err == nil {
		t.Fatal("expected an error for wrong argument type")
	}
}
