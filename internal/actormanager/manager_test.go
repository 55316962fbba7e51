package actormanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/bus"
)

func newTestBus(t *testing.T) *bus.RedisBus {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := bus.NewRedisBus(context.Background(), bus.Config{Addr: mr.Addr(), ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newRawClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	return redis.NewClient(&redis.Options{Addr: addr})
}

func TestSubscribeForAgentDispatchesNewMessage(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := bus.NewRedisBus(context.Background(), bus.Config{Addr: mr.Addr(), ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer b.Close()

	m := New(b, nil)

	var mu sync.Mutex
	var received []bus.Event
	actor := &Actor{
		AgentID: "agentA",
		OnEvent: func(topicID string, ev bus.Event) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, ev)
		},
	}
	m.Register(actor)
	if err := m.SubscribeForAgent(actor, "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := b.Publish(context.Background(), "t1", bus.Event{Type: "new_message", Data: map[string]any{"x": 1}}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Type != "new_message" {
		t.Fatalf("expected one new_message event, got %+v", received)
	}
}

func TestUndispatchableEventTypeIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := bus.NewRedisBus(context.Background(), bus.Config{Addr: mr.Addr(), ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer b.Close()

	m := New(b, nil)
	var mu sync.Mutex
	var received []bus.Event
	actor := &Actor{
		AgentID: "agentA",
		OnEvent: func(topicID string, ev bus.Event) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, ev)
		},
	}
	m.Register(actor)
	if err := m.SubscribeForAgent(actor, "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	_ = b.Publish(context.Background(), "t1", bus.Event{Type: "agent_stream_chunk"})
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 0 {
		t.Fatalf("expected agent_stream_chunk to be filtered out, got %+v", received)
	}
}

func TestRemoveActorStopsAndDeregisters(t *testing.T) {
	b := newTestBus(t)
	m := New(b, nil)

	stopped := false
	actor := &Actor{
		AgentID: "agentA",
		Stop:    func() { stopped = true },
	}
	m.Register(actor)
	m.RemoveActor("agentA")

	if !stopped {
		t.Fatal("expected Stop to be called")
	}
	if m.GetActor("agentA") != nil {
		t.Fatal("expected actor to be deregistered")
	}
}

func TestPoolStatusFiltersToRunningWithTopic(t *testing.T) {
	b := newTestBus(t)
	m := New(b, nil)

	running := &Actor{
		AgentID:   "running",
		IsRunning: func() bool { return true },
		TopicID:   func() string { return "t1" },
		Status:    func() map[string]any { return map[string]any{"agent_id": "running"} },
	}
	idle := &Actor{
		AgentID:   "idle",
		IsRunning: func() bool { return false },
		TopicID:   func() string { return "" },
	}
	m.Register(running)
	m.Register(idle)

	status := m.PoolStatus()
	if len(status) != 1 || status[0]["agent_id"] != "running" {
		t.Fatalf("expected only the running actor in pool status, got %+v", status)
	}
}
