// Package history persists listen events and serves recent-history queries.
package history

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

const bloomFalsePositiveRate = 0.01

// SeenSet is a bounded, thread-safe set of track IDs heard this session. It
// keeps repeated plays of the same track from flooding the history table.
// Membership lives in an LRU, so once the session outgrows the capacity the
// track heard longest ago falls out and becomes recordable again. A Bloom
// filter answers the common "never heard" case up front; it cannot forget,
// so after evictions it may claim tracks the LRU no longer holds, and the
// LRU lookup settles those.
type SeenSet struct {
	mutex    sync.RWMutex
	bloom    *bloom.BloomFilter
	recent   *lru.Cache[string, struct{}]
	capacity int
}

// NewSeenSet creates a seen set bounded to the given capacity.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = 1
	}
	recent, _ := lru.New[string, struct{}](capacity)

	return &SeenSet{
		bloom:    bloom.NewWithEstimates(uint(capacity), bloomFalsePositiveRate),
		recent:   recent,
		capacity: capacity,
	}
}

// Has checks whether a track ID was already seen this session.
func (s *SeenSet) Has(trackID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.bloom.TestString(trackID) && s.recent.Contains(trackID)
}

// Add marks a track ID as seen. Re-adding a known track refreshes its
// recency, so a song on heavy rotation stays suppressed while one-off
// listens from hours ago age out first.
func (s *SeenSet) Add(trackID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.bloom.AddString(trackID)
	s.recent.Add(trackID, struct{}{})
}

// Size returns the number of track IDs currently tracked.
func (s *SeenSet) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.recent.Len()
}

// Clear forgets everything seen so far.
func (s *SeenSet) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.bloom = bloom.NewWithEstimates(uint(s.capacity), bloomFalsePositiveRate)
	s.recent.Purge()
}
