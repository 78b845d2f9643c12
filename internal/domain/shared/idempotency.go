package shared

import (
	"context"
	"time"
)

// IdempotentResponse is the first accepted response recorded for an idempotency key
type IdempotentResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore records request keys so that a replayed CREATE is answered
// from the stored response instead of reaching the dispatcher again.
type IdempotencyStore interface {
	// Begin claims key. It returns (nil, nil) when the key was newly claimed,
	// the stored response when the key already completed, and
	// ErrIdempotencyInProgress when another request holds the key.
	Begin(ctx context.Context, key string, ttl time.Duration) (*IdempotentResponse, error)

	// Complete stores the response for a claimed key
	Complete(ctx context.Context, key string, resp IdempotentResponse, ttl time.Duration) error

	// Release drops a claim without storing a response so the caller may retry
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// ErrIdempotencyInProgress is returned when a key is claimed but not yet completed
var ErrIdempotencyInProgress = NewDomainError(CategoryConflict, "idempotency_in_progress",
	"A request with this idempotency key is still being processed")

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a completed response is replayed
	TTL time.Duration

	// LockTTL bounds how long an in-flight claim blocks other requests
	LockTTL time.Duration

	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		LockTTL: 30 * time.Second,
		Enabled: true,
	}
}
