package cache

import "errors"

// Sentinel errors for caching operations.
var (
	// ErrCacheMiss is an internal signal that an item is not cached.
	// It is never a user-facing failure: every miss falls back to
	// recomputation.
	ErrCacheMiss = errors.New("cache miss")

	// ErrClosed is returned by operations on a closed cache backend.
	ErrClosed = errors.New("cache closed")
)
