package cache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/velibadmin/console/internal/models"
)

// GeocodeEntry wraps a resolved address with its expiry.
type GeocodeEntry struct {
	Result    models.GeocodeResult
	ExpiresAt time.Time
}

// GeocodeCache memoizes geocoder answers so repeated searches for the
// same address skip the backend round trip. Only successful resolutions
// are cached; failures always retry.
type GeocodeCache struct {
	lru *lru.Cache[string, *GeocodeEntry]
	ttl time.Duration

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

func NewGeocodeCache(size int, ttl time.Duration) (*GeocodeCache, error) {
	cache, err := lru.New[string, *GeocodeEntry](size)
	if err != nil {
		return nil, err
	}
	return &GeocodeCache{lru: cache, ttl: ttl}, nil
}

// cacheKey normalizes an address so trivially different spellings share
// an entry.
func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (c *GeocodeCache) Get(address string) (models.GeocodeResult, bool) {
	key := cacheKey(address)
	if entry, ok := c.lru.Get(key); ok {
		if time.Now().Before(entry.ExpiresAt) {
			c.count(&c.hits)
			return entry.Result, true
		}
		// Entry expired, remove it
		c.lru.Remove(key)
	}
	c.count(&c.misses)
	return models.GeocodeResult{}, false
}

func (c *GeocodeCache) Add(address string, result models.GeocodeResult) {
	c.lru.Add(cacheKey(address), &GeocodeEntry{
		Result:    result,
		ExpiresAt: time.Now().Add(c.ttl),
	})
}

// Stats returns hit and miss counters.
func (c *GeocodeCache) Stats() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]uint64{
		"hits":   c.hits,
		"misses": c.misses,
	}
}

// Purge removes all entries.
func (c *GeocodeCache) Purge() {
	c.lru.Purge()
}

func (c *GeocodeCache) count(counter *uint64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}
