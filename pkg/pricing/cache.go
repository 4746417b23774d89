package pricing

import (
	"sync"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// PriceCache caches pricing data to reduce API calls
type PriceCache struct {
	data  map[string]*cacheEntry
	ttl   time.Duration
	mutex sync.RWMutex
}

type cacheEntry struct {
	table     *models.PriceTable
	expiresAt time.Time
}

func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
	}
}

func (c *PriceCache) Get(key string) *models.PriceTable {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.data[key]
	if !exists {
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		// Expired entries are overwritten by the next Set.
		return nil
	}

	return entry.table
}

func (c *PriceCache) Set(key string, table *models.PriceTable) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &cacheEntry{
		table:     table,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *PriceCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
}
