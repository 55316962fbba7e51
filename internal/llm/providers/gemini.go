package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// GeminiProvider implements llm.Provider against Gemini, the only provider
// in this runtime that emits a ThoughtSignature on generated media; that
// signature is carried through Chunk.Media verbatim.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

// NewGeminiProvider builds a provider from cfg.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("providers: gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("providers: gemini client: %w", err)
	}
	return &GeminiProvider{client: client, defaultModel: cfg.DefaultModel}, nil
}

// Name implements llm.Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// SupportsTools implements llm.Provider.
func (p *GeminiProvider) SupportsTools() bool { return true }

// Complete implements llm.Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("providers: gemini convert messages: %w", err)
	}
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
	}

	chunks := make(chan *llm.Chunk)
	go func() {
		defer close(chunks)
		streamIter := p.client.Models.GenerateContentStream(ctx, model, contents, config)
		for resp, err := range streamIter {
			if err != nil {
				chunks <- &llm.Chunk{Error: fmt.Errorf("providers: gemini stream: %w", err)}
				return
			}
			if resp == nil {
				continue
			}
			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					emitGeminiPart(part, chunks)
				}
			}
		}
		chunks <- &llm.Chunk{Done: true}
	}()
	return chunks, nil
}

func emitGeminiPart(part *genai.Part, chunks chan<- *llm.Chunk) {
	if part == nil {
		return
	}
	if part.Text != "" {
		if part.Thought {
			chunks <- &llm.Chunk{Thinking: part.Text}
		} else {
			chunks <- &llm.Chunk{Text: part.Text}
		}
	}
	if part.FunctionCall != nil {
		argsJSON, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			argsJSON = []byte("{}")
		}
		chunks <- &llm.Chunk{ToolCall: &llm.ToolCall{
			Name:      part.FunctionCall.Name,
			Arguments: argsJSON,
		}}
	}
	if part.InlineData != nil {
		item := models.MediaItem{
			MimeType: part.InlineData.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
		}
		if mediaTypeFromMime(part.InlineData.MIMEType) != "" {
			item.Type = mediaTypeFromMime(part.InlineData.MIMEType)
		}
		if len(part.ThoughtSignature) > 0 {
			item.ThoughtSignature = base64.StdEncoding.EncodeToString(part.ThoughtSignature)
		}
		chunks <- &llm.Chunk{Media: []models.MediaItem{item}}
	}
}

func mediaTypeFromMime(mime string) models.MediaType {
	switch {
	case len(mime) >= 5 && mime[:5] == "image":
		return models.MediaImage
	case len(mime) >= 5 && mime[:5] == "video":
		return models.MediaVideo
	case len(mime) >= 5 && mime[:5] == "audio":
		return models.MediaAudio
	}
	return ""
}

func toGeminiContents(messages []llm.Message) ([]*genai.Content, error) {
	var result []*genai.Content
	for _, m := range messages {
		content := &genai.Content{}
		switch m.Role {
		case models.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}
		if m.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
		}
		for _, media := range m.Media {
			if media.Data == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(media.Data)
			if err != nil {
				continue
			}
			part := &genai.Part{InlineData: &genai.Blob{MIMEType: media.MimeType, Data: raw}}
			if media.ThoughtSignature != "" {
				if sig, err := base64.StdEncoding.DecodeString(media.ThoughtSignature); err == nil {
					part.ThoughtSignature = sig
				}
			}
			content.Parts = append(content.Parts, part)
		}
		result = append(result, content)
	}
	return result, nil
}

func toGeminiTools(tools []llm.ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		var schema genai.Schema
		_ = json.Unmarshal(t.Parameters, &schema)
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  &schema,
		})
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
