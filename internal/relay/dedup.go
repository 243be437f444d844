package relay

import (
	"sync"
	"time"
)

// seenCache remembers recently processed inbound event ids. The social
// platform redelivers webhooks; relaying a redelivered DM twice is visible
// to the agent, so duplicates inside the TTL window are dropped.
type seenCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func newSeenCache(ttl time.Duration) *seenCache {
	return &seenCache{seen: make(map[string]time.Time), ttl: ttl}
}

// Seen records the key and reports whether it was already present within the
// TTL. Expired entries are pruned on the way.
func (c *seenCache) Seen(key string, now time.Time) bool {
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
	if _, ok := c.seen[key]; ok {
		return true
	}
	c.seen[key] = now
	return false
}

func (c *seenCache) pruneLocked(now time.Time) {
	for k, at := range c.seen {
		if now.Sub(at) > c.ttl {
			delete(c.seen, k)
		}
	}
}

// Size reports the live entry count, pruning first.
func (c *seenCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(time.Now())
	return len(c.seen)
}
