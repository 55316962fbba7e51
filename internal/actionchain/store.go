package actionchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrChainNotFound is returned by Store.Load when a chain id is absent or
// expired. Callers must treat this as "proceed as a fresh message", never
// as a hard failure.
var ErrChainNotFound = errors.New("actionchain: chain not found")

// Store persists ActionChains so a second agent can resume one handed off
// via an @mention message.
type Store interface {
	Save(ctx context.Context, chain *ActionChain, ttl time.Duration) error
	Load(ctx context.Context, chainID string) (*ActionChain, error)
}

func keyForChain(chainID string) string {
	return "action_chain:" + chainID
}

// RedisStore is the production Store: JSON blobs under
// "action_chain:<chain_id>", optional TTL, no TTL by default.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save implements Store. ttl <= 0 means no expiry.
func (s *RedisStore) Save(ctx context.Context, chain *ActionChain, ttl time.Duration) error {
	if chain.ChainID == "" {
		chain.ChainID = uuid.NewString()
	}
	data, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("actionchain: marshal chain: %w", err)
	}
	return s.client.Set(ctx, keyForChain(chain.ChainID), data, ttl).Err()
}

// Load implements Store, returning ErrChainNotFound when the key is
// missing or expired.
func (s *RedisStore) Load(ctx context.Context, chainID string) (*ActionChain, error) {
	data, err := s.client.Get(ctx, keyForChain(chainID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrChainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("actionchain: load chain: %w", err)
	}
	var chain ActionChain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("actionchain: decode chain: %w", err)
	}
	return &chain, nil
}

// NewChainID generates a fresh chain identifier.
func NewChainID() string {
	return uuid.NewString()
}
