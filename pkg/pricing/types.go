package pricing

import (
	"sync"

	"github.com/younsl/costadvisor/internal/models"
)

// CacheKey identifies one resolved hourly price
type CacheKey struct {
	InstanceType    string
	Region          string
	Tier            models.CommitmentTier
	OperatingSystem string
}

// Cache stores resolved hourly prices. Writes for the same key are idempotent.
type Cache interface {
	Get(key CacheKey) (float64, bool)
	Set(key CacheKey, hourly float64)
}

// MemoryCache is an in-process Cache guarded by a RWMutex
type MemoryCache struct {
	mu     sync.RWMutex
	prices map[CacheKey]float64
}

// NewMemoryCache returns an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{prices: make(map[CacheKey]float64)}
}

func (c *MemoryCache) Get(key CacheKey) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[key]
	return price, ok
}

func (c *MemoryCache) Set(key CacheKey, hourly float64) {
	c.mu.Lock()
	c.prices[key] = hourly
	c.mu.Unlock()
}

// Len returns the number of cached prices
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

// storageCache holds S3 per GB-month prices keyed by region and storage class
type storageCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func (c *storageCache) get(key string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[key]
	return price, ok
}

func (c *storageCache) set(key string, price float64) {
	c.mu.Lock()
	c.prices[key] = price
	c.mu.Unlock()
}
