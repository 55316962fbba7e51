package actor

import (
	"context"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// MCPExecuteRequest is the spec §6.5 execute_mcp_with_llm contract: the
// core does not care how tools are selected, only how to shape the call
// and what to extract from the result.
type MCPExecuteRequest struct {
	MCPServerID       string
	InputText         string
	LLMConfigID       string
	AgentSystemPrompt string
	OriginalMessage   string
	ForcedToolName    string
	ForcedToolArgs    map[string]any
	EnableToolCalling bool
	TopicID           string
}

// MCPToolResult is one entry of MCPExecuteResult.Results.
type MCPToolResult struct {
	Tool      string
	Result    any
	Error     string
	ErrorType string // e.g. "network", "business"
}

// MCPExecuteResult is what the core extracts from an MCP execution: the
// tool's rendered text, any media it produced, and enough per-tool error
// detail to classify a failure as a repairable parameter error.
type MCPExecuteResult struct {
	Summary     string
	ToolText    string
	Media       []models.MediaItem
	Results     []MCPToolResult
	Error       string
	LLMResponse string
	Debug       map[string]any
}

// MCPExecutor is the one function the Actor Base engine needs from the
// MCP subsystem: execute_mcp_with_llm. Implementations own tool
// selection, HTTP/SSE transport, and the 120s per-call timeout described
// in spec §5.
type MCPExecutor interface {
	ExecuteWithLLM(ctx context.Context, req MCPExecuteRequest) (MCPExecuteResult, error)
}
