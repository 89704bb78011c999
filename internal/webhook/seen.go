package webhook

import "sync"

// seenCache is a bounded set of recently seen message IDs, used to drop
// duplicate webhook deliveries. Eviction is FIFO.
type seenCache struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	cap   int
}

func newSeenCache(capacity int) *seenCache {
	return &seenCache{
		ids: make(map[string]struct{}, capacity),
		cap: capacity,
	}
}

// Add records id and reports whether it was new.
func (c *seenCache) Add(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ids[id]; ok {
		return false
	}
	if len(c.order) >= c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.ids, oldest)
	}
	c.ids[id] = struct{}{}
	c.order = append(c.order, id)
	return true
}
