// Package llm defines the provider-agnostic completion contract the Actor
// engine drives: one streaming Complete call per provider, working in
// terms of pkg/models so thoughtSignature and media pass through
// untouched between a provider response and a follow-up turn.
package llm

import (
	"context"
	"encoding/json"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// Provider is the interface every LLM backend (Anthropic, OpenAI, Gemini,
// Bedrock) implements. Implementations must be safe for concurrent use:
// multiple actors may call Complete simultaneously against the same
// Provider instance.
type Provider interface {
	// Complete sends a request and returns a channel of streamed chunks.
	// The channel is closed after a chunk with Done true or Error set.
	Complete(ctx context.Context, req *Request) (<-chan *Chunk, error)

	// Name identifies the provider for logging and LLMConfig.Provider
	// matching ("anthropic", "openai", "gemini", "bedrock").
	Name() string

	// SupportsTools reports whether this provider can be given a Tools
	// list and return ToolCall chunks.
	SupportsTools() bool
}

// Request is one completion request.
type Request struct {
	Model                string
	System               string
	Messages             []Message
	Tools                []ToolSpec
	MaxTokens            int
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// Message is one turn in the prompt, in provider-agnostic shape.
type Message struct {
	Role    models.Role
	Content string
	Media   []models.MediaItem
	// ToolCallID links a tool-result message back to the ToolCall that
	// produced it.
	ToolCallID string
}

// ToolSpec is one callable tool surfaced to the model, matching the
// OpenAI-function-calling shape the Capability Registry produces.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a complete tool invocation request from the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Chunk is one streamed piece of a completion.
type Chunk struct {
	Text     string
	Thinking string

	ThinkingStart bool
	ThinkingEnd   bool

	ToolCall *ToolCall

	// Media carries any images/audio/video the model returned, including
	// an opaque ThoughtSignature some providers require echoed back
	// verbatim on a follow-up turn referencing this content.
	Media []models.MediaItem

	Done         bool
	Error        error
	InputTokens  int
	OutputTokens int
}

// Registry resolves a Provider by name, used to implement the §4.5.5 LLM
// config priority chain without every caller needing a type switch.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from the given providers, keyed by
// Provider.Name().
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name, or ok=false.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
