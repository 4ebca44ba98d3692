package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
)

// MemoryCache is an in-process ConfigCache used by tests and by deployments
// that run without Redis. Entries expire lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	cfg      *model.DeviceConfig
	expireAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Ensure MemoryCache implements the ConfigCache interface
var _ repository.ConfigCache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(ctx context.Context, deviceID string) (*model.DeviceConfig, bool) {
	c.mu.RLock()
	entry, ok := c.entries[deviceID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expireAt) {
		c.Delete(ctx, deviceID)
		return nil, false
	}
	return entry.cfg.Clone(), true
}

func (c *MemoryCache) Set(ctx context.Context, cfg *model.DeviceConfig) {
	if cfg == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cfg.DeviceID] = memoryEntry{
		cfg:      cfg.Clone(),
		expireAt: time.Now().Add(c.ttl),
	}
}

func (c *MemoryCache) Delete(ctx context.Context, deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deviceID)
}

// Len reports the number of live entries. Test helper.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
