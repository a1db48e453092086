// Package cache provides small bounded caches used by the overlay engine:
// an LRU cache for per-feature geometry and memoized color parses, and a
// FIFO set for tile eviction.
//
// The caches are not thread-safe. The engine serializes all access behind
// the source mutex, so the caches avoid per-operation locking.
package cache
