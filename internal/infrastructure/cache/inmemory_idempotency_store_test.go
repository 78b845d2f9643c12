package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hera/backend/internal/domain/shared"
)

func TestInMemoryIdempotencyStore_Begin(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	ttl := time.Hour

	t.Run("claims a new key", func(t *testing.T) {
		resp, err := store.Begin(ctx, "org:key-1", ttl)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("claimed key is in progress", func(t *testing.T) {
		_, err := store.Begin(ctx, "org:key-2", ttl)
		require.NoError(t, err)

		_, err = store.Begin(ctx, "org:key-2", ttl)
		assert.ErrorIs(t, err, shared.ErrIdempotencyInProgress)
	})

	t.Run("completed key replays the stored response", func(t *testing.T) {
		_, err := store.Begin(ctx, "org:key-3", ttl)
		require.NoError(t, err)

		stored := shared.IdempotentResponse{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"id":"1"}`)}
		require.NoError(t, store.Complete(ctx, "org:key-3", stored, ttl))

		resp, err := store.Begin(ctx, "org:key-3", ttl)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, stored, *resp)
	})

	t.Run("released key can be claimed again", func(t *testing.T) {
		_, err := store.Begin(ctx, "org:key-4", ttl)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, "org:key-4"))

		resp, err := store.Begin(ctx, "org:key-4", ttl)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("release keeps a completed response", func(t *testing.T) {
		_, err := store.Begin(ctx, "org:key-5", ttl)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "org:key-5", shared.IdempotentResponse{StatusCode: 201}, ttl))
		require.NoError(t, store.Release(ctx, "org:key-5"))

		resp, err := store.Begin(ctx, "org:key-5", ttl)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 201, resp.StatusCode)
	})
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k", shared.IdempotentResponse{StatusCode: 201}, time.Minute))

	now = now.Add(2 * time.Minute)

	resp, err := store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, resp, "expired key should be claimable")

	now = now.Add(2 * time.Minute)
	store.cleanup()
	assert.Equal(t, 0, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentBegin(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	const workers = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := store.Begin(ctx, "shared-key", time.Hour)
			if err == nil && resp == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claimed, "exactly one request should claim the key")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(nil).CreateStore("memory")
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis backend without client falls back", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(nil).CreateStore("redis")
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis backend without client and no fallback", func(t *testing.T) {
		_, err := NewIdempotencyStoreFactory(nil, WithInMemoryFallback(false)).CreateStore("redis")
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewIdempotencyStoreFactory(nil).CreateStore("memcached")
		assert.Error(t, err)
	})
}
