// Package manifest caches the curated help-article hierarchy text
// (the knowledge_base tool's payload) behind a short TTL, with a
// stale-on-failure fallback and an external invalidation hook.
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Source fetches the current hierarchy manifest body from wherever it
// lives (HTTP or GCS, selected by the configured source URL's scheme).
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// Cache holds a single opaque hierarchy string with a TTL. On refresh
// failure it keeps serving the last good value (stale-on-failure) per
// spec §4.2, rather than propagating the error to the caller.
type Cache struct {
	mu       sync.RWMutex
	source   Source
	ttl      time.Duration
	value    string
	fetched  time.Time
	haveAny  bool
}

// New creates a Cache over source with the given TTL.
func New(source Source, ttl time.Duration) *Cache {
	return &Cache{source: source, ttl: ttl}
}

// GetHierarchy returns the cached manifest, refreshing it first if the
// TTL has elapsed. Per spec §4.2 this never surfaces a fetch error to
// the caller: a refresh failure falls back to the last good value when
// one exists, and a cold cache with no prior successful fetch returns
// the empty string.
func (c *Cache) GetHierarchy(ctx context.Context) string {
	c.mu.RLock()
	fresh := c.haveAny && time.Since(c.fetched) < c.ttl
	value := c.value
	c.mu.RUnlock()
	if fresh {
		return value
	}

	body, err := c.source.Fetch(ctx)
	if err != nil {
		c.mu.RLock()
		hadValue := c.haveAny
		stale := c.value
		c.mu.RUnlock()
		if hadValue {
			slog.Warn("manifest refresh failed, serving stale value", "error", err)
			return stale
		}
		slog.Warn("manifest refresh failed, no cached value", "error", err)
		return ""
	}

	c.mu.Lock()
	c.value = body
	c.fetched = time.Now()
	c.haveAny = true
	c.mu.Unlock()
	return body
}

// Invalidate clears the TTL so the next GetHierarchy call forces a
// refresh. Called by Invalidator on a corpus-updated notification.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fetched = time.Time{}
	c.mu.Unlock()
	slog.Info("manifest cache invalidated")
}

// httpAsSourceError wraps a transport-level error with context about
// which source URL failed, used by both transport implementations.
func httpAsSourceError(sourceURL string, err error) error {
	return fmt.Errorf("manifest source %s: %w", sourceURL, err)
}
