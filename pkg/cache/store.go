package cache

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrCacheMiss indicates no fresh entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

// Store is an in-memory response cache. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewStore creates an empty response cache.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves the entry for key.
// Returns ErrCacheMiss if no entry exists or the entry has expired.
// An expired entry is evicted on the way out.
func (s *Store) Get(key Key) (*Entry, error) {
	cacheKey := key.String()

	s.mu.RLock()
	entry, ok := s.entries[cacheKey]
	s.mu.RUnlock()

	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpired() {
		s.mu.Lock()
		// Re-check under the write lock: a Put may have replaced it.
		if current, ok := s.entries[cacheKey]; ok && current == entry {
			delete(s.entries, cacheKey)
			CacheSize.Set(float64(len(s.entries)))
		}
		s.mu.Unlock()
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return entry, nil
}

// Put stores data under key with the given TTL, overwriting any existing
// entry. Keys for non-GET methods and non-positive TTLs are ignored: the
// cache only ever holds successful read results.
func (s *Store) Put(key Key, data json.RawMessage, ttl time.Duration) {
	if key.Method != http.MethodGet || ttl <= 0 {
		return
	}

	now := time.Now()
	entry := &Entry{
		Data:      data,
		ExpiresAt: now.Add(ttl),
		StoredAt:  now,
	}

	s.mu.Lock()
	s.entries[key.String()] = entry
	CacheSize.Set(float64(len(s.entries)))
	s.mu.Unlock()
}

// Invalidate removes the entry for key, if any.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	if _, ok := s.entries[key.String()]; ok {
		delete(s.entries, key.String())
		CacheInvalidations.Inc()
		CacheSize.Set(float64(len(s.entries)))
	}
	s.mu.Unlock()
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
