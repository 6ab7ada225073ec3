package injury

import (
	"sync"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
)

const defaultStatusCacheSize = 5000

// StatusCache remembers the last status seen per player. When full, the
// oldest entry is evicted.
type StatusCache struct {
	mu      sync.Mutex
	entries map[string]models.PlayerStatus
	order   []string
	max     int
}

func NewStatusCache(max int) *StatusCache {
	if max <= 0 {
		max = defaultStatusCacheSize
	}
	return &StatusCache{entries: make(map[string]models.PlayerStatus), max: max}
}

func (c *StatusCache) Get(playerID string) (models.PlayerStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.entries[playerID]
	return status, ok
}

func (c *StatusCache) Set(playerID string, status models.PlayerStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[playerID]; !ok {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, playerID)
	}
	c.entries[playerID] = status
}

func (c *StatusCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *StatusCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.PlayerStatus)
	c.order = nil
}
