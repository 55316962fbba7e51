package actor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actorstate"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/capability"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/iteration"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/topic"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// generateFinalResponse implements spec §4.5.6: resolve the LLM config,
// assemble the system prompt and message list, stream the completion,
// and persist the assistant reply with the ext envelope attached.
func (e *Engine) generateFinalResponse(ctx context.Context, topicMeta models.Topic, msg models.Message, ic *iteration.Context) {
	llmCfg, err := ResolveLLMConfig(ctx, e.llmConfigs, topicMeta.SessionType, e.agent.LLMConfigID, ic.UserSelectedLLMConfigID, ic.UserSelectedModel)
	if err != nil {
		e.recordError(ctx, msg, err)
		return
	}
	provider, ok := e.llmRegistry.Get(llmCfg.Provider)
	if !ok {
		e.recordError(ctx, msg, ErrNoLLMConfig)
		return
	}

	req := &llm.Request{
		Model:   llmCfg.Model,
		System:  e.buildSystemPrompt(topicMeta, ic),
		Messages: e.buildPromptMessages(msg, ic),
	}
	if e.registry.HasAnyCapability() {
		req.Tools = toLLMToolSpecs(e.registry.GetToolsForLLM())
	}

	chunks, err := provider.Complete(ctx, req)
	if err != nil {
		e.recordError(ctx, msg, err)
		return
	}

	var full strings.Builder
	media := append([]models.MediaItem(nil), ic.MCPMedia...)
	for chunk := range chunks {
		if chunk.Error != nil {
			e.recordError(ctx, msg, chunk.Error)
			return
		}
		if chunk.Thinking != "" {
			ic.ExecutionLogs = append(ic.ExecutionLogs, iteration.LogEntry{
				ID: e.idGen(), Timestamp: time.Now(), Type: iteration.LogThinking,
				Message: chunk.Thinking, AgentID: e.agent.AgentID, AgentName: e.agent.Name,
			})
		}
		if chunk.Text != "" {
			full.WriteString(chunk.Text)
			e.publishEvent(ctx, msg.TopicID, topic.EventAgentStreamChunk, map[string]any{
				"agent_id": e.agent.AgentID, "message_id": ic.ReplyMessageID,
				"chunk": chunk.Text, "accumulated": full.String(),
			})
		}
		if len(chunk.Media) > 0 {
			media = append(media, chunk.Media...)
		}
		if chunk.Done {
			break
		}
	}

	ext := e.buildExtEnvelope(ic, media)
	reply := models.Message{
		MessageID:  ic.ReplyMessageID,
		TopicID:    msg.TopicID,
		SenderID:   e.agent.AgentID,
		SenderType: models.SenderAgent,
		Role:       models.RoleAssistant,
		Content:    full.String(),
		Ext:        ext,
	}
	stored, err := e.topicSvc.SendMessage(ctx, reply)
	if err != nil {
		e.logger.Error("actor: failed to persist final reply", "error", err)
		return
	}
	e.state.AppendHistory(stored)

	e.publishEvent(ctx, msg.TopicID, topic.EventAgentStreamDone, map[string]any{
		"agent_id": e.agent.AgentID, "message_id": ic.ReplyMessageID,
		"content": stored.Content, "media": normalizeMediaForExt(media),
	})
}

func (e *Engine) buildSystemPrompt(topicMeta models.Topic, ic *iteration.Context) string {
	var sb strings.Builder
	sb.WriteString(e.agent.SystemPrompt)
	if desc := e.registry.GetCapabilityDescription(); desc != "" {
		sb.WriteString("\n\n")
		sb.WriteString(desc)
	}
	if topicMeta.SessionType == models.SessionTopicGeneral {
		if sop := stringFromExt(topicMeta.Ext, "pinned_skill_sop"); sop != "" {
			sb.WriteString("\n\n[当前话题 SOP]\n")
			sb.WriteString(sop)
		}
	}
	if ic.ToolResultsText != "" {
		sb.WriteString("\n\n工具执行结果随后给出，请基于其内容自然回应，不要编造未出现的信息。")
	}
	return sb.String()
}

// buildPromptMessages assembles the §4.5.6 message list: summary block,
// bounded recent history, the injected tool-results assistant turn, then
// the current user message with any attached or implicitly-referenced
// media.
func (e *Engine) buildPromptMessages(msg models.Message, ic *iteration.Context) []llm.Message {
	var out []llm.Message

	if e.state.Summary != "" {
		out = append(out, llm.Message{Role: models.RoleSystem, Content: "【对话摘要（自动生成）】\n" + e.state.Summary})
	}

	recent := e.state.GetRecentHistory(actorstate.RecentHistoryOpts{
		MaxMessages:        e.cfg.RecentHistoryMaxMessages,
		MaxTotalChars:      e.cfg.RecentHistoryMaxTotalChars,
		MaxPerMessageChars: e.cfg.RecentHistoryMaxPerMsgChars,
		IncludeSummary:     false,
	})
	for _, m := range recent {
		role := models.RoleUser
		if m.Role == "assistant" {
			role = models.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}

	if ic.ToolResultsText != "" {
		heading := "【工具执行结果】"
		if strings.Contains(ic.ToolResultsText, "【工具调用失败") {
			heading = "【工具执行失败】"
		}
		out = append(out, llm.Message{
			Role:    models.RoleAssistant,
			Content: heading + "\n" + ic.ToolResultsText,
		})
	}

	userMsg := llm.Message{Role: models.RoleUser, Content: msg.Content}
	if media := extMediaItems(msg.Ext); len(media) > 0 {
		userMsg.Media = media
	} else if actorstate.ShouldAttachLastMedia(msg.Content) {
		userMsg.Media = e.state.GetLastMedia()
	}
	out = append(out, userMsg)

	return out
}

// buildExtEnvelope implements spec §4.5.7: the four reply categories
// plus the legacy processMessages/log/media fields, all derived from the
// same IterationContext.
func (e *Engine) buildExtEnvelope(ic *iteration.Context, media []models.MediaItem) models.Ext {
	nodes := make([]map[string]any, 0, len(ic.ProcessSteps))
	for _, step := range ic.ProcessSteps {
		node := map[string]any{
			"id": step.ID, "type": step.Type, "timestamp": step.Timestamp,
			"status": step.Status, "title": step.Title,
		}
		if step.Content != "" {
			node["content"] = step.Content
		}
		if step.Duration != nil {
			node["duration"] = *step.Duration
		}
		if step.MCP != nil {
			node["mcp"] = step.MCP
		}
		if step.Iteration != nil {
			node["iteration"] = step.Iteration
		}
		if step.Decision != nil {
			node["decision"] = step.Decision
		}
		if step.Error != "" {
			node["error"] = step.Error
		}
		nodes = append(nodes, node)
	}

	normalizedMedia := normalizeMediaForExt(media)

	var mcpResults []map[string]any
	for _, r := range ic.ExecutedResults {
		if r.ActionType != actionchain.ActionUseMCP {
			continue
		}
		entry := map[string]any{"toolName": string(r.ActionType), "result": r.Output, "status": "completed"}
		if !r.Success {
			entry["status"] = "error"
			entry["errorMessage"] = r.Error
		}
		mcpResults = append(mcpResults, entry)
	}

	var processMessages []map[string]any
	for _, log := range ic.ExecutionLogs {
		processMessages = append(processMessages, map[string]any{
			"type": log.Type, "contentType": "text", "timestamp": log.Timestamp,
			"title": log.Message, "content": log.Detail,
		})
	}

	return models.Ext{
		"agent_log":         ic.ExecutionLogs,
		"agent_mind":        map[string]any{"nodes": nodes},
		"agent_ext_content": map[string]any{"media": normalizedMedia, "mcpResults": mcpResults},
		"processMessages":   processMessages,
		"log":               ic.ExecutionLogs,
		"media":             normalizedMedia,
		"action_chain_id":   ic.ActionChainID,
		"chain_step_index":  ic.ChainStepIndex,
	}
}

// normalizeMediaForExt implements _normalize_media_for_ext: split a data
// URL into mime type + bare base64, strip embedded whitespace, infer
// Type from MimeType when absent, and drop items carrying neither Data
// nor URL. Applying it twice to its own output is a no-op (spec §8
// idempotence invariant).
func normalizeMediaForExt(items []models.MediaItem) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(items))
	for _, m := range items {
		item := m
		if item.Data != "" {
			if idx := strings.Index(item.Data, "base64,"); idx >= 0 {
				prefix := item.Data[:idx]
				item.Data = item.Data[idx+len("base64,"):]
				if item.MimeType == "" {
					if mstart := strings.Index(prefix, "data:"); mstart >= 0 {
						rest := prefix[mstart+len("data:"):]
						if semi := strings.Index(rest, ";"); semi >= 0 {
							item.MimeType = rest[:semi]
						}
					}
				}
			}
			item.Data = strings.Join(strings.Fields(item.Data), "")
		}
		if item.Type == "" {
			item.Type = mediaTypeFromMimePrefix(item.MimeType)
		}
		if item.Data == "" && item.URL == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func mediaTypeFromMimePrefix(mime string) models.MediaType {
	switch {
	case strings.HasPrefix(mime, "image"):
		return models.MediaImage
	case strings.HasPrefix(mime, "video"):
		return models.MediaVideo
	case strings.HasPrefix(mime, "audio"):
		return models.MediaAudio
	}
	return ""
}

func toLLMToolSpecs(specs []capability.FunctionSpec) []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(specs))
	for _, s := range specs {
		params, err := json.Marshal(s.Function.Parameters)
		if err != nil {
			continue
		}
		out = append(out, llm.ToolSpec{Name: s.Function.Name, Description: s.Function.Description, Parameters: params})
	}
	return out
}

// extMediaItems reads ext["media"] tolerating both a directly-embedded
// []models.MediaItem (locally constructed messages) and the
// JSON-round-tripped []any/map[string]any shape a bus-delivered event
// produces.
func extMediaItems(ext models.Ext) []models.MediaItem {
	raw := ext.Get("media")
	if raw == nil {
		return nil
	}
	if items, ok := raw.([]models.MediaItem); ok {
		return items
	}
	if items, ok := roundTripJSON[[]models.MediaItem](raw); ok {
		return items
	}
	return nil
}

func stringFromExt(ext models.Ext, key string) string {
	if ext == nil {
		return ""
	}
	v, _ := ext[key].(string)
	return v
}

func roundTripJSON[T any](v any) (T, bool) {
	var zero T
	b, err := json.Marshal(v)
	if err != nil {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, false
	}
	return out, true
}
