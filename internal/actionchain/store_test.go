package actionchain

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	chain := &ActionChain{
		Name:          "panda-drawing",
		OriginAgentID: "A",
		OriginTopicID: "T_A",
		Status:        ChainActive,
		Steps: []ActionStep{
			{StepID: "s1", ActionType: ActionCallAgent, Status: StepPending},
		},
	}
	if err := store.Save(context.Background(), chain, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if chain.ChainID == "" {
		t.Fatal("expected Save to assign a chain id")
	}

	loaded, err := store.Load(context.Background(), chain.ChainID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != chain.Name || len(loaded.Steps) != 1 {
		t.Fatalf("unexpected loaded chain: %+v", loaded)
	}
}

func TestLoadMissingReturnsChainNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "does-not-exist")
	if err != ErrChainNotFound {
		t.Fatalf("expected ErrChainNotFound, got %v", err)
	}
}

func TestChainAdvanceMonotonic(t *testing.T) {
	chain := &ActionChain{Steps: make([]ActionStep, 3), Status: ChainActive}
	chain.Advance()
	if chain.CurrentIndex != 1 {
		t.Fatalf("expected index 1, got %d", chain.CurrentIndex)
	}
	chain.Advance()
	chain.Advance()
	if chain.Status != ChainCompleted {
		t.Fatalf("expected chain completed once steps exhausted, got %s", chain.Status)
	}
	chain.Advance()
	if chain.CurrentIndex != 3 {
		t.Fatalf("expected index clamped at len(steps), got %d", chain.CurrentIndex)
	}
}
