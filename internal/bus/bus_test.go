package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := NewRedisBus(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	b, _ := newTestBus(t)

	received := make(chan Event, 1)
	unsubscribe, err := b.Subscribe("T1", "listener-a", func(ev Event) {
		received <- ev
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	time.Sleep(50 * time.Millisecond) // allow subscriber goroutine to pick up the channel

	if err := b.Publish(context.Background(), "T1", Event{
		Type: "new_message",
		Data: map[string]any{"data": map[string]any{"message_id": "m1"}},
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Type != "new_message" {
			t.Fatalf("expected new_message, got %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestChannelSharedAcrossListeners(t *testing.T) {
	b, _ := newTestBus(t)

	var gotA, gotB int
	unsubA, _ := b.Subscribe("T2", "a", func(Event) { gotA++ })
	unsubB, _ := b.Subscribe("T2", "b", func(Event) { gotB++ })
	defer unsubA()
	defer unsubB()

	time.Sleep(50 * time.Millisecond)
	_ = b.Publish(context.Background(), "T2", Event{Type: "agent_silent"})
	time.Sleep(200 * time.Millisecond)

	if gotA == 0 || gotB == 0 {
		t.Fatalf("expected both listeners to receive the event, got a=%d b=%d", gotA, gotB)
	}
}

func TestUnsubscribeRemovesChannelOnceEmpty(t *testing.T) {
	b, _ := newTestBus(t)
	unsubscribe, _ := b.Subscribe("T3", "only", func(Event) {})
	if len(b.currentChannels()) != 1 {
		t.Fatalf("expected one channel registered")
	}
	unsubscribe()
	if len(b.currentChannels()) != 0 {
		t.Fatalf("expected channel to be removed once its last listener unsubscribes")
	}
}
