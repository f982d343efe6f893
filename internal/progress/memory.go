package progress

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	percent   int
	expiresAt time.Time
}

// MemoryChannel is the in-process fallback used when no redis URL is
// configured. Suitable for single-instance deployments only.
type MemoryChannel struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMemoryChannel creates a channel with a background janitor that removes
// expired entries.
func NewMemoryChannel() *MemoryChannel {
	c := &MemoryChannel{
		entries: make(map[string]memoryEntry),
		ttl:     defaultTTL,
		done:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *MemoryChannel) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *MemoryChannel) Set(_ context.Context, taskID string, percent int) error {
	c.mu.Lock()
	c.entries[progressKey(taskID)] = memoryEntry{
		percent:   clampPercent(percent),
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryChannel) Get(_ context.Context, taskID string) (int, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[progressKey(taskID)]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, false, nil
	}
	return entry.percent, true, nil
}

func (c *MemoryChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

var _ Channel = (*MemoryChannel)(nil)
