// Package actorstate holds the per-(agent,topic) mutable runtime state:
// bounded history, the running memory summary, the processed-message dedup
// set, and the last-seen media reference. Nothing here needs an internal
// lock — an actor owns exactly one goroutine, so State is only ever
// touched from that goroutine.
package actorstate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/tokencount"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

const defaultMaxProcessedIDs = 1000

var toolPrefixPattern = regexp.MustCompile(`^\[你已获得工具使用权：.*?\]\s*`)
var dataImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(data:image/[^)]+\)`)

// attachReferenceKeywords are the fixed phrases that signal a user is
// implicitly referencing a previously shared image ("上图", "this image").
var attachReferenceKeywords = []string{
	"上图", "这张图", "那张图", "图里", "图中", "看图",
	"描述一下图", "识别图片", "图片", "photo", "image", "screenshot",
	"根据图片", "根据上面的图", "根据刚才的图", "帮我看下图",
}

// State is the in-memory state of one actor bound to one topic.
type State struct {
	TopicID string

	History      []models.LightMessage
	Summary      string
	SummaryUntil string

	Participants   []models.Participant
	AgentAbilities map[string]string

	LastMedia []models.MediaItem

	processedIDs     map[string]struct{}
	processedOrder   []string
	maxProcessedIDs  int
}

// New creates an empty State for topicID.
func New(topicID string) *State {
	return &State{
		TopicID:         topicID,
		AgentAbilities:  make(map[string]string),
		processedIDs:    make(map[string]struct{}),
		maxProcessedIDs: defaultMaxProcessedIDs,
	}
}

// HistoryLoader paginates the persisted message store oldest-first using a
// before-id cursor, mirroring messagestore.Store.GetMessagesPaginated.
type HistoryLoader interface {
	GetMessagesPaginated(topicID string, limit int, beforeID string) (batch []models.Message, hasMore bool, err error)
}

// LoadHistory paginates up to limit messages oldest-first from loader,
// projecting each to a LightMessage and sampling the most recent media
// payload into LastMedia. Pagination stops once limit is reached or the
// loader reports no more pages.
func (s *State) LoadHistory(loader HistoryLoader, topicID string, limit int) []models.LightMessage {
	s.TopicID = topicID
	pageSize := limit
	if pageSize > 200 {
		pageSize = 200
	}
	var all []models.Message
	var beforeID string
	for len(all) < limit {
		batch, hasMore, err := loader.GetMessagesPaginated(topicID, pageSize, beforeID)
		if err != nil || len(batch) == 0 {
			break
		}
		all = append(batch, all...)
		if !hasMore || len(all) >= limit {
			break
		}
		beforeID = batch[0].MessageID
		if beforeID == "" {
			break
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	s.History = s.History[:0]
	for _, m := range all {
		s.sampleMedia(m.Ext)
		s.History = append(s.History, toLight(m))
	}
	return s.History
}

func toLight(m models.Message) models.LightMessage {
	return models.LightMessage{
		MessageID:  m.MessageID,
		Role:       m.Role,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		SenderID:   m.SenderID,
		SenderType: m.SenderType,
	}
}

func (s *State) sampleMedia(ext models.Ext) {
	if ext == nil {
		return
	}
	raw, ok := ext["media"]
	if !ok {
		return
	}
	items, ok := raw.([]models.MediaItem)
	if !ok || len(items) == 0 {
		return
	}
	s.LastMedia = items
}

// AppendHistory appends msg's light projection, sampling media as
// LoadHistory does.
func (s *State) AppendHistory(msg models.Message) {
	s.sampleMedia(msg.Ext)
	s.History = append(s.History, toLight(msg))
}

// EstimateTokens estimates the token cost of History plus an optional
// leading Summary system message, for the given model.
func (s *State) EstimateTokens(model string) int {
	msgs := make([]tokencount.Message, 0, len(s.History)+1)
	if s.Summary != "" {
		msgs = append(msgs, tokencount.Message{Role: "system", Content: s.Summary})
	}
	for _, m := range s.History {
		if m.Content == "" {
			continue
		}
		msgs = append(msgs, tokencount.Message{Role: string(m.Role), Content: m.Content})
	}
	return tokencount.EstimateMessagesTokens(msgs, model)
}

// CheckMemoryBudget reports whether the current memory footprint exceeds
// threshold (default 0.8) of the model's max token budget, signalling that
// summarisation must run before continuing.
func (s *State) CheckMemoryBudget(model string, threshold float64) bool {
	if threshold <= 0 {
		threshold = 0.8
	}
	maxTokens := tokencount.ModelMaxTokens(model)
	current := s.EstimateTokens(model)
	return float64(current) > float64(maxTokens)*threshold
}

// ClearAfter truncates History to end at (and include) messageID, and
// atomically drops Summary/SummaryUntil if SummaryUntil is no longer
// present in the truncated history.
func (s *State) ClearAfter(messageID string) {
	idx := -1
	for i, m := range s.History {
		if m.MessageID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	s.History = s.History[:idx+1]
	if s.SummaryUntil != "" {
		found := false
		for _, m := range s.History {
			if m.MessageID == s.SummaryUntil {
				found = true
				break
			}
		}
		if !found {
			s.Summary = ""
			s.SummaryUntil = ""
		}
	}
}

// IsProcessed performs an atomic check-and-add against the dedup set.
// Returns true if messageID was already processed. Overflow policy: once
// the set exceeds maxProcessedIDs, the oldest half (by insertion order) is
// evicted, keeping the newest half.
func (s *State) IsProcessed(messageID string) bool {
	if messageID == "" {
		return false
	}
	if _, ok := s.processedIDs[messageID]; ok {
		return true
	}
	s.processedIDs[messageID] = struct{}{}
	s.processedOrder = append(s.processedOrder, messageID)

	if len(s.processedOrder) > s.maxProcessedIDs {
		keep := s.maxProcessedIDs / 2
		evicted := s.processedOrder[:len(s.processedOrder)-keep]
		s.processedOrder = append([]string(nil), s.processedOrder[len(s.processedOrder)-keep:]...)
		for _, id := range evicted {
			delete(s.processedIDs, id)
		}
	}
	return false
}

// RecentHistoryOpts configures GetRecentHistory.
type RecentHistoryOpts struct {
	MaxMessages        int
	MaxTotalChars      int
	MaxPerMessageChars int
	IncludeSummary     bool
}

// PromptMessage is one entry in the list GetRecentHistory returns, ready to
// hand to an LLM provider.
type PromptMessage struct {
	Role    string
	Content string
}

// GetRecentHistory returns messages suitable for an LLM prompt: sorted by
// CreatedAt, tail MaxMessages, filtered to user/assistant roles, cleaned of
// tool-prefix noise and inline base64 image markdown, truncated per message,
// then trimmed from the oldest until MaxTotalChars is respected. If
// IncludeSummary and Summary is set, a leading system message is
// prepended with the fixed "【对话摘要（自动生成）】" heading.
func (s *State) GetRecentHistory(opts RecentHistoryOpts) []PromptMessage {
	var result []PromptMessage
	if opts.IncludeSummary && s.Summary != "" {
		result = append(result, PromptMessage{
			Role:    "system",
			Content: "【对话摘要（自动生成）】\n" + strings.TrimSpace(s.Summary),
		})
	}

	sorted := make([]models.LightMessage, len(s.History))
	copy(sorted, s.History)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	tail := sorted
	if opts.MaxMessages > 0 && len(tail) > opts.MaxMessages {
		tail = tail[len(tail)-opts.MaxMessages:]
	} else if opts.MaxMessages <= 0 {
		tail = nil
	}

	var msgs []PromptMessage
	for _, m := range tail {
		role := strings.TrimSpace(string(m.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		content := cleanContent(m.Content)
		if content == "" {
			continue
		}
		if opts.MaxPerMessageChars > 0 && len([]rune(content)) > opts.MaxPerMessageChars {
			runes := []rune(content)
			content = string(runes[:opts.MaxPerMessageChars]) + "…"
		}
		msgs = append(msgs, PromptMessage{Role: role, Content: content})
	}

	total := 0
	for _, m := range msgs {
		total += len([]rune(m.Content))
	}
	if opts.MaxTotalChars > 0 && total > opts.MaxTotalChars {
		var trimmed []PromptMessage
		running := 0
		for i := len(msgs) - 1; i >= 0; i-- {
			c := len([]rune(msgs[i].Content))
			if running+c > opts.MaxTotalChars && len(trimmed) > 0 {
				break
			}
			running += c
			trimmed = append(trimmed, msgs[i])
		}
		for i, j := 0, len(trimmed)-1; i < j; i, j = i+1, j-1 {
			trimmed[i], trimmed[j] = trimmed[j], trimmed[i]
		}
		msgs = trimmed
	}

	return append(result, msgs...)
}

func cleanContent(content string) string {
	t := strings.TrimSpace(content)
	t = toolPrefixPattern.ReplaceAllString(t, "")
	t = dataImagePattern.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// UpdateParticipants replaces Participants and recomputes AgentAbilities
// (first 80 characters of each agent participant's system prompt).
func (s *State) UpdateParticipants(participants []models.Participant) {
	s.Participants = participants
	s.AgentAbilities = make(map[string]string, len(participants))
	for _, p := range participants {
		if p.ParticipantType != "agent" {
			continue
		}
		ability := p.SystemPrompt
		if r := []rune(ability); len(r) > 80 {
			ability = string(r[:80])
		}
		s.AgentAbilities[p.ParticipantID] = ability
	}
}

// ShouldAttachLastMedia reports whether text contains a referential phrase
// ("上图", "this image", "screenshot", ...) implying the user means the
// most recently shared media.
func ShouldAttachLastMedia(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range attachReferenceKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// GetLastMedia returns the cached last-media slice, or nil if empty.
func (s *State) GetLastMedia() []models.MediaItem {
	if len(s.LastMedia) == 0 {
		return nil
	}
	return s.LastMedia
}
