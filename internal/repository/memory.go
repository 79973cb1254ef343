package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter is the single-instance counterpart of RedisRateLimiter.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateLimitEntry
	now     func() time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

func (r *MemoryRateLimiter) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.windows[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.windows[key] = entry
		r.evictExpired(now)
	}
	entry.count++

	return entry.count <= limit, nil
}

// evictExpired keeps the map bounded by the number of keys active in one window.
func (r *MemoryRateLimiter) evictExpired(now time.Time) {
	for k, e := range r.windows {
		if !now.Before(e.expiresAt) {
			delete(r.windows, k)
		}
	}
}
