// Package cache provides the layout caches for the pipescore engine.
//
// Two kinds of cache live here:
//
//   - [EntityCache]: the in-process, per-session cache mapping entity id
//     and layout kind to a computed layout result. This is the cache the
//     layout coordinator populates and invalidates during incremental
//     recalculation. It combines sharded storage (concurrent access on
//     independent ids without a global lock) with a single serialized
//     LRU eviction list.
//
//   - [Cache]: a byte-oriented cache for serialized whole-document
//     results, shared by the CLI and the HTTP API. Backends: file
//     (single-user CLI), Redis (multi-process deployments), and null
//     (caching disabled).
//
// Both caches are best-effort: a failed or stale read is a miss that
// triggers recomputation, never an error surfaced to the caller. Cached
// layout is a pure optimization and can be discarded at any time
// without semantic loss.
package cache

import (
	"context"
	"time"
)

// TTLs for byte-cache entries by content type.
const (
	// TTLDocument applies to serialized documents fetched from a repository.
	TTLDocument = 24 * time.Hour

	// TTLLayout applies to serialized whole-document layout results.
	TTLLayout = 7 * 24 * time.Hour
)

// Cache is the byte-oriented cache interface for serialized results.
type Cache interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// LayoutKeyOpts are the layout parameters folded into a layout cache
// key. Two layouts of the same document with different options must not
// collide.
type LayoutKeyOpts struct {
	PaperSize     string  `json:"paper_size"`
	Orientation   string  `json:"orientation"`
	SpacingFactor float64 `json:"spacing_factor"`
	FontSize      float64 `json:"font_size"`
}

// Keyer generates cache keys for the byte cache.
type Keyer interface {
	// DocumentKey generates a key for a serialized document.
	DocumentKey(documentID string) string

	// LayoutKey generates a key for a whole-document layout result.
	LayoutKey(documentHash string, opts LayoutKeyOpts) string
}

// DefaultKeyer generates hashed, namespaced keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// DocumentKey generates a key for a serialized document.
func (k *DefaultKeyer) DocumentKey(documentID string) string {
	return "doc:" + documentID
}

// LayoutKey generates a key for a whole-document layout result.
func (k *DefaultKeyer) LayoutKey(documentHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", documentHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation,
// used where several bands share one Redis instance.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// DocumentKey generates a prefixed document key.
func (k *ScopedKeyer) DocumentKey(documentID string) string {
	return k.prefix + k.inner.DocumentKey(documentID)
}

// LayoutKey generates a prefixed layout key.
func (k *ScopedKeyer) LayoutKey(documentHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(documentHash, opts)
}
