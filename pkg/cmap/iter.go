package cmap

// Range calls fn for every entry until fn returns false. Each shard is
// read-locked only while its entries are visited, so entries written
// mid-iteration in a shard already passed are not seen.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for k, v := range sh.items {
			if !fn(k, v) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Keys returns a snapshot of all keys in no particular order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, 0, m.Count())
	m.Range(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}

// Values returns a snapshot of all values in no particular order.
func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, m.Count())
	m.Range(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

// GetOrSet returns the value already stored under key or, when absent,
// stores and returns value. The second return is true for a hit. The
// check and insert happen under one lock, which is what makes this
// usable for lazy namespace creation.
func (m *Map[K, V]) GetOrSet(key K, value V) (V, bool) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if prev, ok := sh.items[key]; ok {
		return prev, true
	}
	sh.items[key] = value
	return value, false
}

// SetIfAbsent stores value only when key is absent and reports whether
// it stored anything.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.items[key]; ok {
		return false
	}
	sh.items[key] = value
	return true
}

// Update rewrites the entry under key while holding its shard lock.
// fn receives the current value, or the zero value when absent, and
// its return value is stored back.
func (m *Map[K, V]) Update(key K, fn func(value V, exists bool) V) V {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	prev, ok := sh.items[key]
	next := fn(prev, ok)
	sh.items[key] = next
	return next
}

// Pop removes key and returns what was stored under it.
func (m *Map[K, V]) Pop(key K) (V, bool) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.items[key]
	if ok {
		delete(sh.items, key)
	}
	return v, ok
}
