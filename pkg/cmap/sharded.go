package cmap

import (
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is used by New. Sixteen shards keeps contention low
// for the registry workload without wasting mostly-empty buckets.
const DefaultShardCount = 16

// Map is a hash map split into independently locked shards.
type Map[K comparable, V any] struct {
	shards []shard[K, V]
	mask   uint64
}

type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New returns a map with DefaultShardCount shards.
func New[K comparable, V any]() *Map[K, V] {
	return NewWithShards[K, V](DefaultShardCount)
}

// NewWithShards returns a map with n shards. n must be a power of two
// so the hash can be masked instead of divided; anything else falls
// back to DefaultShardCount.
func NewWithShards[K comparable, V any](n int) *Map[K, V] {
	if n <= 0 || n&(n-1) != 0 {
		n = DefaultShardCount
	}

	m := &Map[K, V]{
		shards: make([]shard[K, V], n),
		mask:   uint64(n - 1),
	}
	for i := range m.shards {
		m.shards[i].items = make(map[K]V)
	}
	return m
}

// ShardCount returns the number of shards.
func (m *Map[K, V]) ShardCount() int {
	return len(m.shards)
}

// shardFor hashes the key with murmur3 and picks its shard. String
// keys hash directly; every other key type goes through fmt first.
func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	var h uint64
	if s, ok := any(key).(string); ok {
		h = murmur3.Sum64([]byte(s))
	} else {
		h = murmur3.Sum64(fmt.Appendf(nil, "%v", key))
	}
	return &m.shards[h&m.mask]
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	sh := m.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.items[key]
	sh.mu.RUnlock()
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (m *Map[K, V]) Set(key K, value V) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	sh.items[key] = value
	sh.mu.Unlock()
}

// Delete removes key. Removing an absent key is a no-op.
func (m *Map[K, V]) Delete(key K) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	delete(sh.items, key)
	sh.mu.Unlock()
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Count returns the number of entries across all shards. Shards are
// counted one at a time, so concurrent writers can skew the total.
func (m *Map[K, V]) Count() int {
	total := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		total += len(sh.items)
		sh.mu.RUnlock()
	}
	return total
}

// Clear drops every entry.
func (m *Map[K, V]) Clear() {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		sh.items = make(map[K]V)
		sh.mu.Unlock()
	}
}
