package ratelimit

import (
	"context"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"
)

const defaultShardCount = 64

// counterEntry holds one window's count. expiresAt never changes after the
// entry is published, count is only ever incremented.
type counterEntry struct {
	count     atomic.Int64
	expiresAt int64 // unix nanoseconds
}

type shard struct {
	mu      sync.RWMutex
	entries map[CounterKey]*counterEntry
}

// MemoryStore is an in-memory CounterStore. Keys are spread over a fixed
// number of shards, each guarded by its own RWMutex, so unrelated callers do
// not contend on one lock. Increments of a live counter take only the shard's
// read lock and an atomic add. A background goroutine evicts expired entries
// every cleanup interval.
type MemoryStore struct {
	seed            maphash.Seed
	shards          []*shard
	cleanupInterval time.Duration
	now             func() time.Time

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithShards sets the number of lock shards. Values below one are ignored.
func WithShards(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.shards = make([]*shard, n)
		}
	}
}

// WithStoreClock overrides the time source used for expiry.
func WithStoreClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore creates a store and, when cleanupInterval is positive,
// starts the eviction goroutine. Call Close to stop it.
func NewMemoryStore(cleanupInterval time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		seed:            maphash.MakeSeed(),
		shards:          make([]*shard, defaultShardCount),
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[CounterKey]*counterEntry)}
	}
	if cleanupInterval > 0 {
		go m.cleanup()
	}
	return m
}

// Increment implements CounterStore.
func (m *MemoryStore) Increment(ctx context.Context, key CounterKey, window time.Duration) (int64, error) {
	if m.closed.Load() {
		return 0, ErrStoreClosed
	}
	if window <= 0 {
		return 0, ErrInvalidWindow
	}

	now := m.now().UnixNano()
	s := m.shardFor(key)

	s.mu.RLock()
	if e, ok := s.entries[key]; ok && now < e.expiresAt {
		n := e.count.Add(1)
		s.mu.RUnlock()
		return n, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have created the entry between the two locks.
	e, ok := s.entries[key]
	if !ok || now >= e.expiresAt {
		e = &counterEntry{
			expiresAt: time.Unix(key.WindowStart, 0).Add(window).UnixNano(),
		}
		s.entries[key] = e
	}
	return e.count.Add(1), nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (m *MemoryStore) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Close stops the background cleanup goroutine. Later increments fail with
// ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) shardFor(key CounterKey) *shard {
	h := maphash.Comparable(m.seed, key)
	return m.shards[h%uint64(len(m.shards))]
}

// cleanup periodically evicts expired entries.
func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

// evictExpired removes entries whose window has ended. Shards are locked one
// at a time.
func (m *MemoryStore) evictExpired() int {
	now := m.now().UnixNano()
	evicted := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if now >= e.expiresAt {
				delete(s.entries, key)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}
