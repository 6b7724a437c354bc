package repository

import (
	"context"
	"sync"
	"sync/atomic"
)

// InMemoryStreamURLRepository implements StreamURLRepository with a map
// that lives for the process lifetime. Entries are never evicted or expired;
// a stale CDN URL is cleared only by restarting the process.
type InMemoryStreamURLRepository struct {
	mu      sync.RWMutex
	entries map[string]string
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewInMemoryStreamURLRepository creates an empty stream URL cache.
func NewInMemoryStreamURLRepository() *InMemoryStreamURLRepository {
	return &InMemoryStreamURLRepository{
		entries: make(map[string]string),
	}
}

// Get returns the cached stream URL for key.
func (r *InMemoryStreamURLRepository) Get(ctx context.Context, key string) (string, bool) {
	r.mu.RLock()
	url, ok := r.entries[key]
	r.mu.RUnlock()

	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return url, ok
}

// Put stores the stream URL for key. Last writer wins.
func (r *InMemoryStreamURLRepository) Put(ctx context.Context, key, streamURL string) error {
	r.mu.Lock()
	r.entries[key] = streamURL
	r.mu.Unlock()
	return nil
}

// Stats returns cache statistics.
func (r *InMemoryStreamURLRepository) Stats(ctx context.Context) (*CacheStats, error) {
	r.mu.RLock()
	n := len(r.entries)
	r.mu.RUnlock()

	return &CacheStats{
		Entries: n,
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
	}, nil
}
