// Package store provides the resolved-stream cache and the persisted player
// settings.
package store

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// streamEntry is one cached resolution result.
type streamEntry struct {
	url        string
	resolvedAt time.Time
}

// StreamCache is a thread-safe, capacity-bounded cache of resolved stream
// URLs keyed by track ID. Upstream stream URLs are signed and time-limited,
// so entries expire after a TTL and are re-resolved on the next lookup.
// Writes are last-resolved-wins: a late duplicate resolution for the same
// track stores an equivalent URL, which is harmless.
type StreamCache struct {
	mutex sync.RWMutex
	lru   *lru.Cache[string, streamEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewStreamCache creates a cache holding at most maxEntries resolutions, each
// valid for ttl. A ttl of zero disables expiry.
func NewStreamCache(maxEntries int, ttl time.Duration) *StreamCache {
	cache, _ := lru.New[string, streamEntry](maxEntries)

	return &StreamCache{
		lru: cache,
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached URL for a track if present and not expired.
func (c *StreamCache) Get(trackID string) (string, bool) {
	c.mutex.RLock()
	entry, ok := c.lru.Get(trackID)
	c.mutex.RUnlock()

	if !ok {
		return "", false
	}

	if c.ttl > 0 && c.now().Sub(entry.resolvedAt) > c.ttl {
		c.mutex.Lock()
		// Re-check under the write lock; a fresh Put may have raced the
		// expiry.
		if current, still := c.lru.Peek(trackID); still && current.resolvedAt == entry.resolvedAt {
			c.lru.Remove(trackID)
		}
		c.mutex.Unlock()
		return "", false
	}

	return entry.url, true
}

// Put stores a resolved URL for a track, replacing any previous entry.
func (c *StreamCache) Put(trackID, url string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lru.Add(trackID, streamEntry{url: url, resolvedAt: c.now()})
}

// Invalidate drops a track's cached resolution, e.g. after a playback failure
// on the cached URL.
func (c *StreamCache) Invalidate(trackID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lru.Remove(trackID)
}

// Len returns the number of cached entries, including not-yet-expired ones.
func (c *StreamCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lru.Len()
}
