package actorstate

import (
	"testing"
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

func TestIsProcessedDedup(t *testing.T) {
	s := New("T1")
	if s.IsProcessed("m1") {
		t.Fatal("first call should report not-yet-processed")
	}
	if !s.IsProcessed("m1") {
		t.Fatal("second call should report already-processed")
	}
}

func TestIsProcessedOverflowKeepsNewestHalf(t *testing.T) {
	s := New("T1")
	s.maxProcessedIDs = 10
	for i := 0; i < 11; i++ {
		s.IsProcessed(string(rune('a' + i)))
	}
	if len(s.processedIDs) != 5 {
		t.Fatalf("expected overflow to keep newest half (5), got %d", len(s.processedIDs))
	}
	if s.IsProcessed(string(rune('a'))) {
		t.Fatal("oldest id should have been evicted")
	}
}

func TestClearAfterDropsSummaryWhenUntilIDGone(t *testing.T) {
	s := New("T1")
	s.History = []models.LightMessage{
		{MessageID: "m1"}, {MessageID: "m2"}, {MessageID: "m3"}, {MessageID: "m4"},
	}
	s.Summary = "some summary"
	s.SummaryUntil = "m4"

	s.ClearAfter("m2")

	if len(s.History) != 2 {
		t.Fatalf("expected history truncated to 2 messages, got %d", len(s.History))
	}
	if s.Summary != "" || s.SummaryUntil != "" {
		t.Fatal("expected summary cleared once summary_until fell out of history")
	}
}

func TestClearAfterKeepsSummaryWhenUntilIDStillPresent(t *testing.T) {
	s := New("T1")
	s.History = []models.LightMessage{{MessageID: "m1"}, {MessageID: "m2"}, {MessageID: "m3"}}
	s.Summary = "kept"
	s.SummaryUntil = "m1"

	s.ClearAfter("m2")

	if s.Summary != "kept" || s.SummaryUntil != "m1" {
		t.Fatal("expected summary to survive when its id is still present")
	}
}

func TestGetRecentHistoryRespectsCharBudgets(t *testing.T) {
	s := New("T1")
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.History = append(s.History, models.LightMessage{
			MessageID: string(rune('a' + i)),
			Role:      models.RoleUser,
			Content:   "hello world this is a message",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	msgs := s.GetRecentHistory(RecentHistoryOpts{
		MaxMessages:        10,
		MaxTotalChars:      40,
		MaxPerMessageChars: 100,
	})
	total := 0
	for _, m := range msgs {
		total += len([]rune(m.Content))
		if len([]rune(m.Content)) > 100 {
			t.Fatalf("message exceeds per-message cap: %q", m.Content)
		}
	}
	if total > 40 {
		t.Fatalf("total chars %d exceeds budget 40", total)
	}
}

func TestGetRecentHistoryPrependsSummary(t *testing.T) {
	s := New("T1")
	s.Summary = "prior context"
	msgs := s.GetRecentHistory(RecentHistoryOpts{MaxMessages: 5, IncludeSummary: true})
	if len(msgs) != 1 || msgs[0].Role != "system" {
		t.Fatalf("expected lone summary system message, got %+v", msgs)
	}
	want := "【对话摘要（自动生成）】\nprior context"
	if msgs[0].Content != want {
		t.Fatalf("expected %q, got %q", want, msgs[0].Content)
	}
}

func TestShouldAttachLastMedia(t *testing.T) {
	cases := map[string]bool{
		"帮我看下图里的内容":   true,
		"describe this screenshot": true,
		"what's the weather": false,
	}
	for text, want := range cases {
		if got := ShouldAttachLastMedia(text); got != want {
			t.Errorf("ShouldAttachLastMedia(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestUpdateParticipantsTruncatesAbilityTo80Chars(t *testing.T) {
	s := New("T1")
	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	s.UpdateParticipants([]models.Participant{
		{ParticipantID: "agentA", ParticipantType: "agent", SystemPrompt: long},
		{ParticipantID: "userB", ParticipantType: "user", SystemPrompt: long},
	})
	if len([]rune(s.AgentAbilities["agentA"])) != 80 {
		t.Fatalf("expected ability truncated to 80 runes, got %d", len(s.AgentAbilities["agentA"]))
	}
	if _, ok := s.AgentAbilities["userB"]; ok {
		t.Fatal("non-agent participants should not appear in AgentAbilities")
	}
}
