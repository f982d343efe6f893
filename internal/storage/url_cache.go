package storage

import (
	"context"
	"sync"
	"time"
)

type cachedURL struct {
	url       string
	expiresAt time.Time
}

// ReadURLCache memoises ResolveReadURL results so repeated status polls do not
// re-sign the same object. Entries are kept for half of the signed TTL so a
// cached URL always has usable lifetime left. Save and Exists pass through.
type ReadURLCache struct {
	inner Storage

	mu      sync.Mutex
	entries map[string]cachedURL
}

// NewReadURLCache wraps inner with URL memoisation.
func NewReadURLCache(inner Storage) *ReadURLCache {
	return &ReadURLCache{
		inner:   inner,
		entries: make(map[string]cachedURL),
	}
}

func (c *ReadURLCache) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	return c.inner.Save(ctx, data, opts)
}

func (c *ReadURLCache) Exists(ctx context.Context, key string, expectedSize int64) (bool, error) {
	return c.inner.Exists(ctx, key, expectedSize)
}

func (c *ReadURLCache) ResolveReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.url, nil
	}
	c.mu.Unlock()

	url, err := c.inner.ResolveReadURL(ctx, key, ttl)
	if err != nil {
		return "", err
	}

	keep := ttl / 2
	if keep <= 0 {
		keep = time.Minute
	}

	// 并发解析同一个 key 时后写覆盖先写，两个 URL 都有效
	c.mu.Lock()
	c.entries[key] = cachedURL{url: url, expiresAt: now.Add(keep)}
	if len(c.entries) > 4096 {
		for k, v := range c.entries {
			if now.After(v.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.mu.Unlock()

	return url, nil
}

// Invalidate drops the cached URL for key, if any.
func (c *ReadURLCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

var _ Storage = (*ReadURLCache)(nil)
