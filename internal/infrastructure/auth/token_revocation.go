package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevocationList invalidates bearer tokens before they expire
type TokenRevocationList interface {
	// Revoke adds a token's JTI; ttl should be the remaining token lifetime
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked checks if a token's JTI has been revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisTokenRevocationList implements TokenRevocationList using Redis
type RedisTokenRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTokenRevocationList creates a revocation list on an existing client
func NewRedisTokenRevocationList(client redis.UniversalClient) *RedisTokenRevocationList {
	return &RedisTokenRevocationList{
		client:    client,
		keyPrefix: "hera:token:revoked:",
	}
}

// Revoke adds a token's JTI to the list
func (l *RedisTokenRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks if a token's JTI is in the list
func (l *RedisTokenRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}

var _ TokenRevocationList = (*RedisTokenRevocationList)(nil)

// InMemoryTokenRevocationList keeps revoked JTIs in process memory.
// Revocations are not shared across instances.
type InMemoryTokenRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time // JTI -> expiration time
}

// NewInMemoryTokenRevocationList creates a new in-memory revocation list
func NewInMemoryTokenRevocationList() *InMemoryTokenRevocationList {
	return &InMemoryTokenRevocationList{
		revoked: make(map[string]time.Time),
	}
}

// Revoke adds a token's JTI to the list
func (l *InMemoryTokenRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked checks if a token's JTI is revoked and the entry has not expired
func (l *InMemoryTokenRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiration, exists := l.revoked[jti]
	if !exists {
		return false, nil
	}
	if time.Now().After(expiration) {
		delete(l.revoked, jti)
		return false, nil
	}
	return true, nil
}

var _ TokenRevocationList = (*InMemoryTokenRevocationList)(nil)
