package chatagent

import (
	"context"
	"testing"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actor"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// fakeProvider returns a single canned text chunk, simulating a
// non-streamed classifier completion.
type fakeProvider struct {
	name string
	text string
}

func (f fakeProvider) Complete(_ context.Context, _ *llm.Request) (<-chan *llm.Chunk, error) {
	ch := make(chan *llm.Chunk, 1)
	ch <- &llm.Chunk{Text: f.text, Done: true}
	close(ch)
	return ch, nil
}

func (f fakeProvider) Name() string        { return f.name }
func (f fakeProvider) SupportsTools() bool { return false }

func newTestEngine(t *testing.T, providerText string) *actor.Engine {
	t.Helper()
	agent := models.Agent{
		AgentID:      "agent-1",
		Name:         "助手",
		Provider:     "fake",
		Model:        "fake-model",
		SystemPrompt: "你是一个乐于助人的助手。",
	}
	registry := llm.NewRegistry(fakeProvider{name: "fake", text: providerText})
	return actor.New(actor.DefaultConfig(), agent, actor.BaseHooks{}, actor.Deps{LLM: registry})
}

func TestShouldRespondMention(t *testing.T) {
	e := newTestEngine(t, "")
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionTopicGeneral}
	msg := models.Message{SenderType: models.SenderUser, Content: "帮我看看", Mentions: []string{"agent-1"}}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseReply {
		t.Fatalf("expected reply, got %v", decision.Action)
	}
	if decision.Reason != "被 @ 提及" {
		t.Fatalf("unexpected reason: %q", decision.Reason)
	}
}

func TestShouldRespondPrivateChatAlwaysReplies(t *testing.T) {
	e := newTestEngine(t, "")
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionPrivateChat}
	msg := models.Message{SenderType: models.SenderUser, Content: "你好"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseReply {
		t.Fatalf("expected reply, got %v", decision.Action)
	}
	if decision.NeedsThinking {
		t.Fatal("expected needs_thinking to be false for private chat")
	}
}

func TestShouldRespondAgentSessionNormalModeAlwaysReplies(t *testing.T) {
	agent := models.Agent{
		AgentID:  "agent-1",
		Provider: "fake",
		Model:    "fake-model",
		Ext:      models.Ext{"persona": map[string]any{"responseMode": "normal"}},
	}
	registry := llm.NewRegistry(fakeProvider{name: "fake"})
	e := actor.New(actor.DefaultConfig(), agent, actor.BaseHooks{}, actor.Deps{LLM: registry})
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionAgent}
	msg := models.Message{SenderType: models.SenderUser, Content: "继续"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseReply {
		t.Fatalf("expected reply, got %v", decision.Action)
	}
}

func TestShouldRespondAgentSessionPersonaModeFallsThrough(t *testing.T) {
	agent := models.Agent{
		AgentID:  "agent-1",
		Provider: "fake",
		Model:    "fake-model",
		Ext:      models.Ext{"persona": map[string]any{"responseMode": "persona"}},
	}
	registry := llm.NewRegistry(fakeProvider{name: "fake", text: `{"action":"silent"}`})
	e := actor.New(actor.DefaultConfig(), agent, actor.BaseHooks{}, actor.Deps{LLM: registry})
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionAgent}
	msg := models.Message{SenderType: models.SenderUser, Content: "闲聊一下"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseSilent {
		t.Fatalf("expected silent (from classifier), got %v", decision.Action)
	}
}

func TestShouldRespondOtherAgentMessageIsSilent(t *testing.T) {
	e := newTestEngine(t, "")
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionTopicGeneral}
	msg := models.Message{SenderType: models.SenderAgent, SenderID: "agent-2", Content: "我处理完了"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseSilent {
		t.Fatalf("expected silent, got %v", decision.Action)
	}
}

func TestShouldRespondOtherAgentAskingHumanStillSilentWithDifferentReason(t *testing.T) {
	e := newTestEngine(t, "")
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionTopicGeneral}
	msg := models.Message{SenderType: models.SenderAgent, SenderID: "agent-2", Content: "@human 需要你确认一下"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseSilent {
		t.Fatalf("expected silent, got %v", decision.Action)
	}
	if decision.Reason != "其他 agent 正在请求人工介入" {
		t.Fatalf("expected the @human-specific reason, got %q", decision.Reason)
	}
}

func TestShouldRespondQuestionDefaultsToReplyViaClassifier(t *testing.T) {
	e := newTestEngine(t, `{"action":"reply"}`)
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionTopicGeneral}
	msg := models.Message{SenderType: models.SenderUser, Content: "这个功能怎么用？"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseReply {
		t.Fatalf("expected reply, got %v", decision.Action)
	}
}

func TestShouldRespondNonQuestionDefaultsToSilentOnUnparsableClassifierOutput(t *testing.T) {
	e := newTestEngine(t, "这不是合法的 JSON")
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionTopicGeneral}
	msg := models.Message{SenderType: models.SenderUser, Content: "今天天气不错"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Action != actionchain.ResponseSilent {
		t.Fatalf("expected silent fallback, got %v", decision.Action)
	}
}

func TestShouldRespondClassifierDelegateRequiresPresentParticipant(t *testing.T) {
	e := newTestEngine(t, `{"action":"delegate","agent_id":"agent-ghost"}`)
	h := New()
	topicMeta := models.Topic{SessionType: models.SessionTopicGeneral}
	msg := models.Message{SenderType: models.SenderUser, Content: "这个怎么处理？"}

	decision, err := h.ShouldRespond(context.Background(), e, topicMeta, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// agent-ghost is not a known participant, so it falls back to the
	// question default (reply) rather than delegating blind.
	if decision.Action != actionchain.ResponseReply {
		t.Fatalf("expected fallback to reply, got %v", decision.Action)
	}
}

func TestParseClassifierJSONLocatesFirstBraceBlock(t *testing.T) {
	result, ok := parseClassifierJSON("这是模型的前言\n{\"action\": \"like\"}\n多余文字")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if result.Action != "like" {
		t.Fatalf("unexpected action: %q", result.Action)
	}
}

func TestParseClassifierJSONNoBracesFails(t *testing.T) {
	if _, ok := parseClassifierJSON("没有大括号的纯文本"); ok {
		t.Fatal("expected parse to fail")
	}
}

func TestIsQuestion(t *testing.T) {
	cases := map[string]bool{
		"这个为什么不行？":        true,
		"how does this work?": true,
		"今天天气不错":           false,
	}
	for content, want := range cases {
		if got := isQuestion(content); got != want {
			t.Errorf("isQuestion(%q) = %v, want %v", content, got, want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	s := "一二三四五"
	if got := truncateRunes(s, 3); got != "一二三" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateRunes(s, 10); got != s {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}
