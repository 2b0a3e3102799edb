package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"NewsIntent/internal/ports"
)

// Cache is an in-process TTL cache for resolved links and extracted text.
type Cache struct {
	store *gocache.Cache
}

var _ ports.Cache = (*Cache)(nil)

// New creates a cache whose entries expire after defaultTTL unless Set says otherwise.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &Cache{store: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := value.([]byte)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Set stores a copy of value. A zero ttl uses the cache default.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
