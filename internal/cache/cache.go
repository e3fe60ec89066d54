// Package cache tracks which items have already been aggregated so that
// overlapping poll windows do not double-count mentions. Entries expire once
// they fall out of every window the collectors can still return.
package cache

import (
	"sync"
	"time"
)

type SeenCache struct {
	mu            sync.RWMutex
	seen          map[string]time.Time
	retention     time.Duration
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
}

func New(retention time.Duration) *SeenCache {
	c := &SeenCache{
		seen:      make(map[string]time.Time),
		retention: retention,
		stopChan:  make(chan struct{}),
	}

	c.cleanupTicker = time.NewTicker(1 * time.Hour)
	go c.cleanup()

	return c
}

// Seen reports whether the key was already processed.
func (c *SeenCache) Seen(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.seen[key]
	return exists
}

// MarkSeen records the key. Returns false if it was already present.
func (c *SeenCache) MarkSeen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.seen[key]; exists {
		return false
	}
	c.seen[key] = time.Now()
	return true
}

func (c *SeenCache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopChan:
			return
		}
	}
}

func (c *SeenCache) performCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.retention)

	for key, seenAt := range c.seen {
		if seenAt.Before(cutoff) {
			delete(c.seen, key)
		}
	}
}

func (c *SeenCache) Close() {
	c.cleanupTicker.Stop()
	close(c.stopChan)
}

func (c *SeenCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"tracked_items": len(c.seen),
		"retention":     c.retention.String(),
	}
}
