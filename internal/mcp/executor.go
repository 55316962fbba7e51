package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actor"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// LLMConfigLookup resolves a stored LLMConfig by ID, the slice of
// actor.LLMConfigRepository this package actually needs.
type LLMConfigLookup interface {
	FindByID(ctx context.Context, id string) (models.LLMConfig, bool, error)
}

// Executor implements actor.MCPExecutor (spec §6.5's execute_mcp_with_llm)
// against a live Manager. When the caller already knows which tool to run
// (ForcedToolName set), it dispatches directly. Otherwise it asks the
// agent's own LLM, given the server's tool schemas, to pick and call one —
// the "with LLM" half of the contract.
type Executor struct {
	mgr        *Manager
	llmReg     *llm.Registry
	llmConfigs LLMConfigLookup
}

// NewExecutor builds an Executor backed by mgr for transport and llmReg/
// llmConfigs for the tool-selection completion.
func NewExecutor(mgr *Manager, llmReg *llm.Registry, llmConfigs LLMConfigLookup) *Executor {
	return &Executor{mgr: mgr, llmReg: llmReg, llmConfigs: llmConfigs}
}

var _ actor.MCPExecutor = (*Executor)(nil)

// ExecuteWithLLM implements actor.MCPExecutor.
func (x *Executor) ExecuteWithLLM(ctx context.Context, req actor.MCPExecuteRequest) (actor.MCPExecuteResult, error) {
	if _, ok := x.mgr.Client(req.MCPServerID); !ok {
		return actor.MCPExecuteResult{}, fmt.Errorf("mcp: server %q not connected", req.MCPServerID)
	}

	if req.ForcedToolName != "" {
		return x.callOne(ctx, req.MCPServerID, req.ForcedToolName, req.ForcedToolArgs)
	}

	if !req.EnableToolCalling {
		return actor.MCPExecuteResult{Error: "no tool specified and tool calling disabled"}, nil
	}

	toolName, args, err := x.selectTool(ctx, req)
	if err != nil {
		return actor.MCPExecuteResult{}, err
	}
	if toolName == "" {
		return actor.MCPExecuteResult{Summary: "模型未选择任何工具"}, nil
	}

	return x.callOne(ctx, req.MCPServerID, toolName, args)
}

// callOne invokes a single tool and shapes the result per §6.5.
func (x *Executor) callOne(ctx context.Context, serverID, toolName string, args map[string]any) (actor.MCPExecuteResult, error) {
	result, err := x.mgr.CallTool(ctx, serverID, toolName, args)
	if err != nil {
		return actor.MCPExecuteResult{
			Results: []actor.MCPToolResult{{Tool: toolName, Error: err.Error(), ErrorType: "network"}},
		}, err
	}

	text, isErr := formatToolCallResult(result)
	toolResult := actor.MCPToolResult{Tool: toolName, Result: text}
	res := actor.MCPExecuteResult{ToolText: text}
	if isErr {
		toolResult.Error = text
		toolResult.ErrorType = "business"
		res.Error = text
	}
	res.Results = []actor.MCPToolResult{toolResult}
	return res, nil
}

// selectTool asks the agent's own default LLM (per req.LLMConfigID) to
// pick a tool from the server's catalogue and returns its name and
// arguments, or an empty name if the model declined to call anything.
func (x *Executor) selectTool(ctx context.Context, req actor.MCPExecuteRequest) (string, map[string]any, error) {
	client, ok := x.mgr.Client(req.MCPServerID)
	if !ok {
		return "", nil, fmt.Errorf("mcp: server %q not connected", req.MCPServerID)
	}

	tools := client.Tools()
	if len(tools) == 0 {
		return "", nil, nil
	}

	cfg, ok, err := x.llmConfigs.FindByID(ctx, req.LLMConfigID)
	if err != nil {
		return "", nil, fmt.Errorf("mcp: resolve llm config: %w", err)
	}
	if !ok {
		return "", nil, fmt.Errorf("mcp: llm config %q not found", req.LLMConfigID)
	}

	provider, ok := x.llmReg.Get(cfg.Provider)
	if !ok {
		return "", nil, fmt.Errorf("mcp: llm provider %q not registered", cfg.Provider)
	}
	if !provider.SupportsTools() {
		return "", nil, fmt.Errorf("mcp: provider %q does not support tool calling", cfg.Provider)
	}

	used := make(map[string]struct{})
	nameByFunction := make(map[string]string, len(tools))
	specs := make([]llm.ToolSpec, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		fnName := safeToolName(req.MCPServerID, t.Name, used)
		nameByFunction[fnName] = t.Name
		specs = append(specs, llm.ToolSpec{Name: fnName, Description: t.Description, Parameters: schema})
	}

	llmReq := &llm.Request{
		Model:  cfg.Model,
		System: toolSelectionSystemPrompt(req.AgentSystemPrompt),
		Messages: []llm.Message{
			{Role: models.RoleUser, Content: req.InputText},
		},
		Tools: specs,
	}

	chunks, err := provider.Complete(ctx, llmReq)
	if err != nil {
		return "", nil, fmt.Errorf("mcp: tool selection completion: %w", err)
	}

	var call *llm.ToolCall
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, fmt.Errorf("mcp: tool selection stream: %w", chunk.Error)
		}
		if chunk.ToolCall != nil {
			call = chunk.ToolCall
		}
		if chunk.Done {
			break
		}
	}
	if call == nil {
		return "", nil, nil
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return "", nil, fmt.Errorf("mcp: unmarshal tool arguments: %w", err)
		}
	}
	toolName, ok := nameByFunction[call.Name]
	if !ok {
		return "", nil, fmt.Errorf("mcp: model selected unknown tool %q", call.Name)
	}
	return toolName, args, nil
}

func toolSelectionSystemPrompt(agentSystemPrompt string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(agentSystemPrompt))
	sb.WriteString("\n\n你可以调用下列工具之一来完成用户请求。只在确有必要时才调用工具。")
	return sb.String()
}
