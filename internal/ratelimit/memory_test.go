package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source shared by the tests in this package.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// epoch is aligned to a minute boundary.
var epoch = time.Unix(1699999980, 0)

func testKey(identity string, start time.Time) CounterKey {
	return CounterKey{Identity: identity, Path: "/api/v1/listings", Period: PeriodMinute, WindowStart: start.Unix()}
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	assert.NotNil(t, store)
	assert.Len(t, store.shards, defaultShardCount)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_WithShards(t *testing.T) {
	store := NewMemoryStore(0, WithShards(4))
	defer store.Close()
	assert.Len(t, store.shards, 4)

	ignored := NewMemoryStore(0, WithShards(0))
	defer ignored.Close()
	assert.Len(t, ignored.shards, defaultShardCount)
}

func TestMemoryStore_Increment(t *testing.T) {
	clock := newFakeClock(epoch)
	store := NewMemoryStore(0, WithStoreClock(clock.Now))
	defer store.Close()

	ctx := context.Background()
	key := testKey("ip:192.168.1.1", epoch)

	for want := int64(1); want <= 5; want++ {
		n, err := store.Increment(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_DifferentKeys(t *testing.T) {
	clock := newFakeClock(epoch)
	store := NewMemoryStore(0, WithStoreClock(clock.Now))
	defer store.Close()

	ctx := context.Background()
	k1 := testKey("ip:10.0.0.1", epoch)
	k2 := testKey("ip:10.0.0.2", epoch)
	k3 := k1
	k3.Path = "/api/v1/search"

	for i := 0; i < 3; i++ {
		_, err := store.Increment(ctx, k1, time.Minute)
		require.NoError(t, err)
	}

	n, err := store.Increment(ctx, k2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "other identity has its own counter")

	n, err = store.Increment(ctx, k3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "other path has its own counter")
}

func TestMemoryStore_ExpiredEntryRestarts(t *testing.T) {
	clock := newFakeClock(epoch)
	store := NewMemoryStore(0, WithStoreClock(clock.Now))
	defer store.Close()

	ctx := context.Background()
	key := testKey("ip:10.0.0.1", epoch)

	_, err := store.Increment(ctx, key, time.Minute)
	require.NoError(t, err)
	_, err = store.Increment(ctx, key, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute)

	n, err := store.Increment(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired counter is treated as absent")
}

func TestMemoryStore_InvalidWindow(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	_, err := store.Increment(context.Background(), testKey("ip:x", epoch), 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore(time.Minute, WithShards(8))
	defer store.Close()

	const goroutines = 50
	const perGoroutine = 200

	ctx := context.Background()
	start := time.Now().Truncate(time.Hour)
	shared := CounterKey{Identity: "ip:10.0.0.1", Path: "/hot", Period: PeriodHour, WindowStart: start.Unix()}

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			own := shared
			own.Identity = fmt.Sprintf("ip:10.0.1.%d", id)
			for j := 0; j < perGoroutine; j++ {
				_, _ = store.Increment(ctx, shared, 2*time.Hour)
				_, _ = store.Increment(ctx, own, 2*time.Hour)
			}
		}(i)
	}
	wg.Wait()

	n, err := store.Increment(ctx, shared, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine+1), n, "no increments lost")
	assert.Equal(t, goroutines+1, store.Len())
}

func TestMemoryStore_EvictExpired(t *testing.T) {
	clock := newFakeClock(epoch)
	store := NewMemoryStore(0, WithStoreClock(clock.Now))
	defer store.Close()

	ctx := context.Background()
	_, err := store.Increment(ctx, testKey("ip:a", epoch), time.Minute)
	require.NoError(t, err)
	_, err = store.Increment(ctx, testKey("ip:b", epoch), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 0, store.evictExpired())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.evictExpired())
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Close()

	// A window that started long ago and has already ended.
	key := CounterKey{Identity: "ip:ephemeral", Path: "/", Period: PeriodMinute, WindowStart: time.Now().Add(-time.Hour).Unix()}
	s := store.shardFor(key)
	s.mu.Lock()
	s.entries[key] = &counterEntry{expiresAt: time.Now().Add(-time.Minute).UnixNano()}
	s.mu.Unlock()
	require.Equal(t, 1, store.Len())

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond, "expired entry should be evicted by the janitor")
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore(100 * time.Millisecond)
	require.NoError(t, store.Close())
	// Second close is a no-op
	require.NoError(t, store.Close())

	_, err := store.Increment(context.Background(), testKey("ip:x", epoch), time.Minute)
	assert.ErrorIs(t, err, ErrStoreClosed)
}
