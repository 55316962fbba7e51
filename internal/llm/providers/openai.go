// Package providers implements llm.Provider for the concrete LLM backends
// the runtime supports: OpenAI, Anthropic, Gemini, and Bedrock. Each
// adapter converts between llm.Request/Chunk and the provider's own SDK
// types, matching the retry and streaming conventions the original
// provider implementations use.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// OpenAIProvider implements llm.Provider against the OpenAI chat
// completions API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// NewOpenAIProvider builds a provider from cfg, applying the same
// retry/backoff defaults as the rest of the runtime's LLM clients.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("providers: openai api key not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Name implements llm.Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// SupportsTools implements llm.Provider.
func (p *OpenAIProvider) SupportsTools() bool { return true }

// Complete implements llm.Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages, req.System),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}
		stream, lastErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if lastErr == nil {
			break
		}
		if !isRetryableOpenAIError(lastErr) {
			return nil, fmt.Errorf("providers: openai non-retryable error: %w", lastErr)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("providers: openai max retries exceeded: %w", lastErr)
	}

	chunks := make(chan *llm.Chunk)
	go streamOpenAI(stream, chunks)
	return chunks, nil
}

func streamOpenAI(stream *openai.ChatCompletionStream, chunks chan<- *llm.Chunk) {
	defer close(chunks)
	defer stream.Close()

	var toolName string
	var toolID string
	var toolArgs strings.Builder

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			if toolName != "" {
				chunks <- &llm.Chunk{ToolCall: &llm.ToolCall{
					ID:        toolID,
					Name:      toolName,
					Arguments: json.RawMessage(toolArgs.String()),
				}}
			}
			chunks <- &llm.Chunk{Done: true}
			return
		}
		if err != nil {
			chunks <- &llm.Chunk{Error: fmt.Errorf("providers: openai stream: %w", err)}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			chunks <- &llm.Chunk{Text: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			if tc.Function.Name != "" {
				toolName = tc.Function.Name
			}
			if tc.ID != "" {
				toolID = tc.ID
			}
			toolArgs.WriteString(tc.Function.Arguments)
		}
	}
}

func toOpenAIMessages(messages []llm.Message, system string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case models.RoleTool:
			role = openai.ChatMessageRoleTool
		case models.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		msg := openai.ChatCompletionMessage{Role: role, Content: m.Content}
		if m.ToolCallID != "" {
			msg.ToolCallID = m.ToolCallID
		}
		if len(m.Media) > 0 && role == openai.ChatMessageRoleUser {
			parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}
			for _, media := range m.Media {
				if media.URL == "" {
					continue
				}
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: media.URL, Detail: openai.ImageURLDetailAuto},
				})
			}
			msg.MultiContent = parts
			msg.Content = ""
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []llm.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var params map[string]any
		_ = json.Unmarshal(t.Parameters, &params)
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func isRetryableOpenAIError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "502")
}
