package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hera/backend/internal/domain/shared"
)

// pendingMarker is the value of a claimed key that has no response yet
const pendingMarker = "pending"

// RedisIdempotencyStore implements IdempotencyStore using Redis
// This is suitable for distributed deployments where multiple instances
// need to share idempotency state
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store with an existing Redis client
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "hera:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Begin claims key with SETNX, or returns the stored response of a completed key
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string, ttl time.Duration) (*shared.IdempotentResponse, error) {
	k := s.keyPrefix + key

	// A key may expire between SETNX and GET; one retry covers that window
	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := s.client.SetNX(ctx, k, pendingMarker, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if claimed {
			return nil, nil
		}

		raw, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}
		if raw == pendingMarker {
			return nil, shared.ErrIdempotencyInProgress
		}

		var resp shared.IdempotentResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return nil, fmt.Errorf("failed to decode stored response: %w", err)
		}
		return &resp, nil
	}
	return nil, shared.ErrIdempotencyInProgress
}

// Complete stores the response for key
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, resp shared.IdempotentResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release drops a claim so the caller may retry
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// Ensure RedisIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
