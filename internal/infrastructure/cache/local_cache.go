// Package cache provides the two-tier caching layer that backs model
// completion reuse, rendered meal images, and web planning sessions.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LocalCache is an in-memory byte cache with per-entry TTL and LRU
// eviction. All methods are safe for concurrent use.
type LocalCache struct {
	mu    sync.Mutex
	cap   int
	order *list.List // front is most recently used
	items map[string]*list.Element
}

type localEntry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

// NewLocalCache returns a cache holding at most capacity entries.
func NewLocalCache(capacity int) *LocalCache {
	if capacity <= 0 {
		capacity = defaultLocalCacheSize
	}
	return &LocalCache{
		cap:   capacity,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Get returns the value for key and refreshes its recency. Expired
// entries are removed on access.
func (lc *LocalCache) Get(key string) ([]byte, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	elem, ok := lc.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*localEntry)
	if time.Now().After(entry.expiresAt) {
		lc.remove(elem)
		return nil, false
	}
	lc.order.MoveToFront(elem)
	return entry.data, true
}

// Set stores value under key for ttl, evicting the least recently used
// entry when the cache is full.
func (lc *LocalCache) Set(key string, data []byte, ttl time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	expiresAt := time.Now().Add(ttl)

	if elem, ok := lc.items[key]; ok {
		entry := elem.Value.(*localEntry)
		entry.data = data
		entry.expiresAt = expiresAt
		lc.order.MoveToFront(elem)
		return
	}

	lc.items[key] = lc.order.PushFront(&localEntry{
		key:       key,
		data:      data,
		expiresAt: expiresAt,
	})

	for lc.order.Len() > lc.cap {
		lc.remove(lc.order.Back())
	}
}

// Delete removes key if present.
func (lc *LocalCache) Delete(key string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if elem, ok := lc.items[key]; ok {
		lc.remove(elem)
	}
}

// Exists reports whether key holds a live entry. Expired entries are
// removed on access.
func (lc *LocalCache) Exists(key string) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	elem, ok := lc.items[key]
	if !ok {
		return false
	}
	if time.Now().After(elem.Value.(*localEntry).expiresAt) {
		lc.remove(elem)
		return false
	}
	return true
}

// Size returns the number of stored entries, including any that have
// expired but not yet been swept.
func (lc *LocalCache) Size() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.items)
}

// CleanupExpired sweeps out expired entries and reports how many went.
func (lc *LocalCache) CleanupExpired() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, elem := range lc.items {
		if now.After(elem.Value.(*localEntry).expiresAt) {
			lc.remove(elem)
			removed++
		}
	}
	return removed
}

// AutoCleanup sweeps expired entries every interval until the returned
// channel is closed.
func (lc *LocalCache) AutoCleanup(interval time.Duration) chan struct{} {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				lc.CleanupExpired()
			case <-stop:
				return
			}
		}
	}()

	return stop
}

// remove drops elem from both the map and the recency list. Callers
// must hold lc.mu.
func (lc *LocalCache) remove(elem *list.Element) {
	lc.order.Remove(elem)
	delete(lc.items, elem.Value.(*localEntry).key)
}
