// Package respcache provides a content-addressed, TTL-based store of
// recognition provider responses keyed by document fingerprint.
package respcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

type entry struct {
	response  *domain.ProviderResponse
	createdAt time.Time
}

// Cache is safe for concurrent use. Staleness is a read-time decision:
// expired entries count as misses but stay in the map until overwritten or
// collected by a sweep.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *Cache) Get(fingerprint string) (*domain.ProviderResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.response, true
}

// Put overwrites any existing entry and resets its age.
func (c *Cache) Put(fingerprint string, response *domain.ProviderResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = entry{response: response, createdAt: c.now()}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper collects expired entries on an interval until ctx is done.
// The cache contract does not require it; it only bounds memory.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if c.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := c.sweep()
				if removed > 0 {
					slog.Debug("response_cache_sweep", "removed", removed, "remaining", c.Len())
				}
			}
		}
	}()
}

func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for fp, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}
