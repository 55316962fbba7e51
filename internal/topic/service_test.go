package topic

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/bus"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/messagestore"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type stubDirectory struct {
	topics map[string]models.Topic
}

func (d stubDirectory) GetTopic(_ context.Context, topicID string) (models.Topic, bool, error) {
	tp, ok := d.topics[topicID]
	return tp, ok, nil
}

type capturedEvent struct {
	topicID string
	typ     string
	data    map[string]any
}

// captureBus is a minimal bus.Bus fake that records every publish instead
// of talking to Redis.
type captureBus struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (c *captureBus) Publish(_ context.Context, topicID string, ev bus.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, capturedEvent{topicID: topicID, typ: ev.Type, data: ev.Data})
	return nil
}

func (c *captureBus) Subscribe(string, string, func(bus.Event)) (func(), error) {
	return func() {}, nil
}

func (c *captureBus) Close() error { return nil }

func TestServiceSendMessagePublishesNewMessage(t *testing.T) {
	store := messagestore.NewMemoryStore()
	b := &captureBus{}
	rc := newTestRedis(t)
	svc := New(b, store, stubDirectory{topics: map[string]models.Topic{}}, rc)

	ctx := context.Background()
	msg, err := svc.SendMessage(ctx, models.Message{TopicID: "t1", Content: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MessageID == "" {
		t.Fatal("expected message id to be populated")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) != 1 || b.events[0].typ != EventNewMessage {
		t.Fatalf("expected one new_message event, got %+v", b.events)
	}
}

func TestServiceInterruptLifecycle(t *testing.T) {
	store := messagestore.NewMemoryStore()
	b := &captureBus{}
	rc := newTestRedis(t)
	svc := New(b, store, stubDirectory{}, rc)
	ctx := context.Background()

	if interrupted, _ := svc.CheckInterrupt(ctx, "t1", "a1"); interrupted {
		t.Fatal("expected no interrupt before it's requested")
	}
	if err := svc.RequestInterrupt(ctx, "t1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interrupted, _ := svc.CheckInterrupt(ctx, "t1", "a1"); !interrupted {
		t.Fatal("expected interrupt to be set")
	}
	if err := svc.ClearInterrupt(ctx, "t1", "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interrupted, _ := svc.CheckInterrupt(ctx, "t1", "a1"); interrupted {
		t.Fatal("expected interrupt to be cleared")
	}
}

func TestServiceDeleteAfterPublishesRollback(t *testing.T) {
	store := messagestore.NewMemoryStore()
	b := &captureBus{}
	rc := newTestRedis(t)
	svc := New(b, store, stubDirectory{}, rc)
	ctx := context.Background()

	m1, _ := svc.SendMessage(ctx, models.Message{TopicID: "t1", Content: "one"})
	_, _ = svc.SendMessage(ctx, models.Message{TopicID: "t1", Content: "two"})

	if err := svc.DeleteAfter(ctx, "t1", m1.MessageID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, _, _, err := svc.GetMessagesPaginated(ctx, "t1", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 message remaining, got %d", len(page))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var sawRollback bool
	for _, e := range b.events {
		if e.typ == EventMessagesRolledBack {
			sawRollback = true
		}
	}
	if !sawRollback {
		t.Fatal("expected messages_rolled_back event to be published")
	}
}
