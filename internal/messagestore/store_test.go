package messagestore

import (
	"context"
	"testing"
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

func TestMemoryStoreSendAndPaginate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now()
	var seeded []models.Message
	for i := 0; i < 5; i++ {
		m, err := s.SendMessage(ctx, models.Message{
			TopicID:   "t1",
			Content:   "msg",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seeded = append(seeded, m)
	}
	sortMessagesByCreatedAt(seeded)

	page, hasMore, latestID, err := s.GetMessagesPaginated(ctx, "t1", 2, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(page))
	}
	if !hasMore {
		t.Fatal("expected hasMore true with 5 messages and limit 2")
	}
	if latestID != seeded[len(seeded)-1].MessageID {
		t.Fatalf("expected latest id %s, got %s", seeded[len(seeded)-1].MessageID, latestID)
	}
	if page[0].MessageID != seeded[4].MessageID {
		t.Fatalf("expected newest-first ordering, got %+v", page)
	}
}

func TestMemoryStoreDeleteAfter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now()
	var ids []string
	for i := 0; i < 4; i++ {
		m, _ := s.SendMessage(ctx, models.Message{TopicID: "t1", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		ids = append(ids, m.MessageID)
	}

	if err := s.DeleteAfter(ctx, "t1", ids[1]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, _, _, err := s.GetMessagesPaginated(ctx, "t1", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 messages remaining after delete, got %d", len(page))
	}
}

func TestMemoryStoreEmptyTopicReturnsNoMore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	msgs, hasMore, latestID, err := s.GetMessagesPaginated(ctx, "unknown", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs != nil || hasMore || latestID != "" {
		t.Fatalf("expected empty result for unknown topic, got %+v %v %q", msgs, hasMore, latestID)
	}
}
