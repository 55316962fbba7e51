// Package models holds the data types shared across the actor runtime, the
// topic bus, and the action chain coordinator.
package models

import (
	"encoding/json"
	"time"
)

// SenderType identifies who authored a Message.
type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderAgent  SenderType = "agent"
	SenderSystem SenderType = "system"
)

// Role is the chat-completion role a Message plays when assembled into an
// LLM prompt.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Ext is the opaque extension envelope carried on a Message. It holds
// media, tool-call bookkeeping, action-plan cursors, action-chain linkage,
// and the agent_log/agent_mind/agent_ext_content reply envelope.
type Ext map[string]any

// Get returns ext[key] with a best-effort type assertion, or the zero value.
func (e Ext) Get(key string) any {
	if e == nil {
		return nil
	}
	return e[key]
}

// Bool returns ext[key] as a bool, defaulting to false.
func (e Ext) Bool(key string) bool {
	v, _ := e.Get(key).(bool)
	return v
}

// String returns ext[key] as a string, defaulting to "".
func (e Ext) String(key string) string {
	v, _ := e.Get(key).(string)
	return v
}

// Message is the append-only unit of conversation on a topic. It is never
// mutated after creation except by a rollback, which deletes every message
// with CreatedAt strictly after the rollback target.
type Message struct {
	MessageID  string     `json:"message_id"`
	TopicID    string     `json:"topic_id"`
	SenderID   string     `json:"sender_id"`
	SenderType SenderType `json:"sender_type"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	Mentions   []string   `json:"mentions,omitempty"`
	Ext        Ext        `json:"ext,omitempty"`
}

// MentionsAgent reports whether agentID appears in Mentions.
func (m *Message) MentionsAgent(agentID string) bool {
	for _, id := range m.Mentions {
		if id == agentID {
			return true
		}
	}
	return false
}

// MediaType is the kind of payload carried by a MediaItem.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// MediaItem is an image/video/audio payload attached to a Message or
// returned by an LLM provider. ThoughtSignature is an opaque,
// provider-specific token some reasoning models require echoed back on a
// follow-up turn that references this media; it must survive round-trips
// byte-for-byte and is never re-encoded or stripped.
type MediaItem struct {
	Type             MediaType `json:"type"`
	MimeType         string    `json:"mimeType"`
	Data             string    `json:"data,omitempty"`
	URL              string    `json:"url,omitempty"`
	ThoughtSignature string    `json:"thoughtSignature,omitempty"`
}

// LightMessage is the trimmed projection ActorState keeps in its bounded
// history buffer: everything an LLM prompt needs, nothing ext carries.
type LightMessage struct {
	MessageID  string     `json:"message_id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	SenderID   string     `json:"sender_id"`
	SenderType SenderType `json:"sender_type"`
}

// SessionType classifies the topic an actor is bound to.
type SessionType string

const (
	SessionPrivateChat  SessionType = "private_chat"
	SessionTopicGeneral SessionType = "topic_general"
	SessionAgent        SessionType = "agent"
)

// Topic is the shared conversation channel agents are activated against.
type Topic struct {
	TopicID     string         `json:"topic_id"`
	SessionType SessionType    `json:"session_type"`
	Ext         Ext            `json:"ext,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Participant is one roster entry published in topic_participants_updated.
type Participant struct {
	ParticipantID   string `json:"participant_id"`
	ParticipantType string `json:"participant_type"`
	Name            string `json:"name,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	LLMConfigID     string `json:"llm_config_id,omitempty"`
}

// LLMConfig is a stored, named LLM configuration row.
type LLMConfig struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	APIURL   string `json:"api_url"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	Enabled  bool   `json:"enabled"`
}

// Agent is the persisted configuration an Actor activates from.
type Agent struct {
	AgentID      string    `json:"agent_id"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar,omitempty"`
	SystemPrompt string    `json:"system_prompt"`
	LLMConfigID  string    `json:"llm_config_id,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	APIKey       string    `json:"api_key,omitempty"`
	APIURL       string    `json:"api_url,omitempty"`
	Model        string    `json:"model,omitempty"`
	Ext          Ext       `json:"ext,omitempty"`
}

// RawJSON marshals v, panicking only on programmer error (unsupported
// types); used by callers that build Ext payloads from known-good structs.
func RawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
