package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestInMemoryIdempotencyStore_Claim(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(time.Hour, clock.Now)
	defer store.Close()

	ctx := context.Background()

	t.Run("first claim stores the value", func(t *testing.T) {
		held, stored, err := store.Claim(ctx, "key-1", "job-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, stored)
		assert.Equal(t, "job-1", held)
	})

	t.Run("second claim returns the first value", func(t *testing.T) {
		held, stored, err := store.Claim(ctx, "key-1", "job-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, stored)
		assert.Equal(t, "job-1", held)
	})

	t.Run("expired key can be claimed again", func(t *testing.T) {
		_, _, err := store.Claim(ctx, "key-2", "job-3", time.Minute)
		require.NoError(t, err)
		clock.Advance(2 * time.Minute)

		held, stored, err := store.Claim(ctx, "key-2", "job-4", time.Minute)
		require.NoError(t, err)
		assert.True(t, stored)
		assert.Equal(t, "job-4", held)
	})

	t.Run("released key can be claimed again", func(t *testing.T) {
		require.NoError(t, store.Release(ctx, "key-1"))
		held, stored, err := store.Claim(ctx, "key-1", "job-5", time.Hour)
		require.NoError(t, err)
		assert.True(t, stored)
		assert.Equal(t, "job-5", held)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := store.Claim(cancelled, "key-9", "job-9", time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(time.Hour, clock.Now)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := store.Claim(ctx, fmt.Sprintf("short-%d", i), "v", time.Minute)
		require.NoError(t, err)
	}
	_, _, err := store.Claim(ctx, "long", "v", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 6, store.Size())

	clock.Advance(10 * time.Minute)
	store.cleanup()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, stored, err := store.Claim(ctx, "same-key", fmt.Sprintf("job-%d", i), time.Hour)
			assert.NoError(t, err)
			if stored {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
