// Package cmap provides a generic sharded map safe for concurrent use.
//
// Keys are distributed over a power-of-2 number of shards by murmur3,
// each shard guarded by its own RWMutex, so readers and writers on
// different shards never contend. soketi keeps its app-id to namespace
// registry in one of these: every inbound message performs a lookup,
// while writes only happen when an app connects for the first time.
//
//	m := cmap.New[string, *Namespace]()
//	m.Set("app-1", ns)
//	val, ok := m.Get("app-1")
//
// Range and Keys snapshot one shard at a time. Callers that need a
// consistent view across the whole map must provide their own fencing.
package cmap
