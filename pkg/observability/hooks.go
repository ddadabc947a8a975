// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Hosts register hooks
// at startup to receive events about layout passes and cache behavior.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, which keeps the
// layout engine free of observability-framework imports and avoids
// import cycles.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetLayoutHooks(&myLayoutHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Layout().OnPassStart(ctx, scope, dirtyCount)
//	// ... recalculate ...
//	observability.Layout().OnPassComplete(ctx, scope, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Layout Hooks
// =============================================================================

// LayoutHooks receives events from the layout coordinator.
type LayoutHooks interface {
	// OnPassStart records the start of a recalculation pass at the
	// given scope ("measure", "system", "page", "document").
	OnPassStart(ctx context.Context, scope string, dirtyCount int)

	// OnPassComplete records a finished pass with its duration.
	OnPassComplete(ctx context.Context, scope string, duration time.Duration, err error)

	// OnPagination records a pagination step with the resulting page
	// count and the number of pages whose composition changed.
	OnPagination(ctx context.Context, pageCount, changedCount int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit for an entry kind.
	OnCacheHit(ctx context.Context, kind string)

	// OnCacheMiss records a cache miss for an entry kind.
	OnCacheMiss(ctx context.Context, kind string)

	// OnCacheEvict records an LRU eviction.
	OnCacheEvict(ctx context.Context, kind string)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLayoutHooks is a no-op implementation of LayoutHooks.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnPassStart(context.Context, string, int)                    {}
func (NoopLayoutHooks) OnPassComplete(context.Context, string, time.Duration, error) {}
func (NoopLayoutHooks) OnPagination(context.Context, int, int)                       {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)   {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)  {}
func (NoopCacheHooks) OnCacheEvict(context.Context, string) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	layoutHooks LayoutHooks = NoopLayoutHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetLayoutHooks registers custom layout hooks.
// This should be called once at application startup before any layout passes.
func SetLayoutHooks(h LayoutHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		layoutHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Layout returns the registered layout hooks.
func Layout() LayoutHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return layoutHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	layoutHooks = NoopLayoutHooks{}
	cacheHooks = NoopCacheHooks{}
}
