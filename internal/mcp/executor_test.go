package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actor"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

type fakeTransport struct {
	result  json.RawMessage
	callErr error
	calls   []string
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }
func (f *fakeTransport) Close() error                      { return nil }
func (f *fakeTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	return f.result, f.callErr
}
func (f *fakeTransport) Notify(ctx context.Context, method string, params any) error { return nil }
func (f *fakeTransport) Events() <-chan *JSONRPCNotification                         { return nil }
func (f *fakeTransport) Requests() <-chan *JSONRPCRequest                            { return nil }
func (f *fakeTransport) Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error {
	return nil
}
func (f *fakeTransport) Connected() bool { return true }

func newFakeClient(serverID string, transport *fakeTransport, tools []*MCPTool) *Client {
	return &Client{
		config:    &ServerConfig{ID: serverID},
		transport: transport,
		tools:     tools,
	}
}

func newFakeManager(serverID string, client *Client) *Manager {
	return &Manager{
		config:  &Config{Servers: []*ServerConfig{{ID: serverID}}},
		clients: map[string]*Client{serverID: client},
	}
}

type fakeLLMConfigLookup struct {
	cfg models.LLMConfig
	ok  bool
	err error
}

func (f fakeLLMConfigLookup) FindByID(ctx context.Context, id string) (models.LLMConfig, bool, error) {
	return f.cfg, f.ok, f.err
}

type fakeToolProvider struct {
	name      string
	toolCall  *llm.ToolCall
	supports  bool
	completed *llm.Request
}

func (f *fakeToolProvider) Complete(_ context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
	f.completed = req
	ch := make(chan *llm.Chunk, 1)
	ch <- &llm.Chunk{ToolCall: f.toolCall, Done: true}
	close(ch)
	return ch, nil
}
func (f *fakeToolProvider) Name() string        { return f.name }
func (f *fakeToolProvider) SupportsTools() bool { return f.supports }

func TestExecuteWithLLMForcedToolCallsDirectly(t *testing.T) {
	transport := &fakeTransport{result: mustJSON(t, ToolCallResult{Content: []ToolResultContent{{Type: "text", Text: "done"}}})}
	client := newFakeClient("srv1", transport, nil)
	mgr := newFakeManager("srv1", client)
	exec := NewExecutor(mgr, llm.NewRegistry(), fakeLLMConfigLookup{})

	result, err := exec.ExecuteWithLLM(context.Background(), actor.MCPExecuteRequest{
		MCPServerID:    "srv1",
		ForcedToolName: "search",
		ForcedToolArgs: map[string]any{"q": "hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolText != "done" {
		t.Fatalf("expected tool text %q, got %q", "done", result.ToolText)
	}
	if len(transport.calls) != 1 || transport.calls[0] != "tools/call" {
		t.Fatalf("expected one tools/call, got %v", transport.calls)
	}
}

func TestExecuteWithLLMUnknownServerFails(t *testing.T) {
	mgr := newFakeManager("srv1", newFakeClient("srv1", &fakeTransport{}, nil))
	exec := NewExecutor(mgr, llm.NewRegistry(), fakeLLMConfigLookup{})

	_, err := exec.ExecuteWithLLM(context.Background(), actor.MCPExecuteRequest{MCPServerID: "missing", ForcedToolName: "x"})
	if err == nil {
		t.Fatal("expected error for unconnected server")
	}
}

func TestExecuteWithLLMErrorResultClassifiedAsBusiness(t *testing.T) {
	transport := &fakeTransport{result: mustJSON(t, ToolCallResult{
		Content: []ToolResultContent{{Type: "text", Text: "missing required field: q"}},
		IsError: true,
	})}
	client := newFakeClient("srv1", transport, nil)
	mgr := newFakeManager("srv1", client)
	exec := NewExecutor(mgr, llm.NewRegistry(), fakeLLMConfigLookup{})

	result, err := exec.ExecuteWithLLM(context.Background(), actor.MCPExecuteRequest{
		MCPServerID:    "srv1",
		ForcedToolName: "search",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Fatal("expected a non-empty Error on the result")
	}
	if len(result.Results) != 1 || result.Results[0].ErrorType != "business" {
		t.Fatalf("expected a business-classified tool result, got %+v", result.Results)
	}
}

func TestExecuteWithLLMSelectsToolViaProvider(t *testing.T) {
	tools := []*MCPTool{{Name: "search", Description: "search the web", InputSchema: json.RawMessage(`{"type":"object"}`)}}
	transport := &fakeTransport{result: mustJSON(t, ToolCallResult{Content: []ToolResultContent{{Type: "text", Text: "result text"}}})}
	client := newFakeClient("srv1", transport, tools)
	mgr := newFakeManager("srv1", client)

	provider := &fakeToolProvider{
		name:     "fake",
		supports: true,
		toolCall: &llm.ToolCall{ID: "1", Name: "mcp_srv1_search", Arguments: json.RawMessage(`{"q":"hi"}`)},
	}
	registry := llm.NewRegistry(provider)
	configs := fakeLLMConfigLookup{ok: true, cfg: models.LLMConfig{ID: "cfg-1", Provider: "fake", Model: "fake-model", Enabled: true}}
	exec := NewExecutor(mgr, registry, configs)

	result, err := exec.ExecuteWithLLM(context.Background(), actor.MCPExecuteRequest{
		MCPServerID:       "srv1",
		InputText:         "please search for something",
		LLMConfigID:       "cfg-1",
		EnableToolCalling: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolText != "result text" {
		t.Fatalf("expected tool text %q, got %q", "result text", result.ToolText)
	}
	if len(provider.completed.Tools) != 1 || provider.completed.Tools[0].Name != "mcp_srv1_search" {
		t.Fatalf("expected provider to receive the safe-named tool spec, got %+v", provider.completed.Tools)
	}
}

func TestExecuteWithLLMNoToolCallReturnsSummaryOnly(t *testing.T) {
	tools := []*MCPTool{{Name: "search"}}
	client := newFakeClient("srv1", &fakeTransport{}, tools)
	mgr := newFakeManager("srv1", client)

	provider := &fakeToolProvider{name: "fake", supports: true, toolCall: nil}
	registry := llm.NewRegistry(provider)
	configs := fakeLLMConfigLookup{ok: true, cfg: models.LLMConfig{ID: "cfg-1", Provider: "fake", Model: "fake-model", Enabled: true}}
	exec := NewExecutor(mgr, registry, configs)

	result, err := exec.ExecuteWithLLM(context.Background(), actor.MCPExecuteRequest{
		MCPServerID:       "srv1",
		LLMConfigID:       "cfg-1",
		EnableToolCalling: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ToolText != "" {
		t.Fatalf("expected no tool text when the model declines, got %q", result.ToolText)
	}
}

func TestExecuteWithLLMToolCallingDisabledWithoutForcedTool(t *testing.T) {
	client := newFakeClient("srv1", &fakeTransport{}, nil)
	mgr := newFakeManager("srv1", client)
	exec := NewExecutor(mgr, llm.NewRegistry(), fakeLLMConfigLookup{})

	result, err := exec.ExecuteWithLLM(context.Background(), actor.MCPExecuteRequest{MCPServerID: "srv1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Fatal("expected an explanatory error when tool calling is disabled and no tool was forced")
	}
}

func TestExecuteWithLLMRejectsUnknownSelectedFunctionName(t *testing.T) {
	tools := []*MCPTool{{Name: "search"}}
	client := newFakeClient("srv1", &fakeTransport{}, tools)
	mgr := newFakeManager("srv1", client)

	provider := &fakeToolProvider{
		name:     "fake",
		supports: true,
		toolCall: &llm.ToolCall{ID: "1", Name: "not_a_real_function"},
	}
	registry := llm.NewRegistry(provider)
	configs := fakeLLMConfigLookup{ok: true, cfg: models.LLMConfig{ID: "cfg-1", Provider: "fake", Model: "fake-model", Enabled: true}}
	exec := NewExecutor(mgr, registry, configs)

	_, err := exec.ExecuteWithLLM(context.Background(), actor.MCPExecuteRequest{
		MCPServerID:       "srv1",
		LLMConfigID:       "cfg-1",
		EnableToolCalling: true,
	})
	if err == nil {
		t.Fatal("expected an error for a model-selected function name outside the offered catalogue")
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
