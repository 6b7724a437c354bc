package repository

import (
	"context"
)

// StreamURLRepository memoizes resolved stream URLs per post.
type StreamURLRepository interface {
	// Get returns the cached stream URL for key.
	Get(ctx context.Context, key string) (string, bool)

	// Put stores the stream URL for key. An existing entry is replaced.
	Put(ctx context.Context, key, streamURL string) error

	// Stats returns cache statistics.
	Stats(ctx context.Context) (*CacheStats, error)
}

// CacheStats contains stream URL cache statistics.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}
