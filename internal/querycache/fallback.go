package querycache

import (
	"sync"
	"time"
)

type fallbackEntry struct {
	data      []byte
	expiresAt time.Time
}

// fallbackCache is a size-bounded in-process map used when the external
// cache store is unavailable. Expired entries are swept on write; when the
// map is full the entry closest to expiry is evicted.
type fallbackCache struct {
	mu         sync.Mutex
	entries    map[string]fallbackEntry
	maxEntries int
	now        func() time.Time
}

func newFallbackCache(maxEntries int) *fallbackCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &fallbackCache{
		entries:    make(map[string]fallbackEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (f *fallbackCache) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[key]
	if !ok {
		return nil, false
	}
	if f.now().After(entry.expiresAt) {
		delete(f.entries, key)
		return nil, false
	}
	return entry.data, true
}

func (f *fallbackCache) set(key string, data []byte, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	f.sweepLocked(now)
	if len(f.entries) >= f.maxEntries {
		f.evictSoonestLocked()
	}
	f.entries[key] = fallbackEntry{data: data, expiresAt: now.Add(ttl)}
}

func (f *fallbackCache) del(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.entries, key)
	}
}

func (f *fallbackCache) delPrefix(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(f.entries, key)
		}
	}
}

func (f *fallbackCache) sweepLocked(now time.Time) {
	for key, entry := range f.entries {
		if now.After(entry.expiresAt) {
			delete(f.entries, key)
		}
	}
}

func (f *fallbackCache) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for key, entry := range f.entries {
		if victim == "" || entry.expiresAt.Before(soonest) {
			victim = key
			soonest = entry.expiresAt
		}
	}
	if victim != "" {
		delete(f.entries, victim)
	}
}
