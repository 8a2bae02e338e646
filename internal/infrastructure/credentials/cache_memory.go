package credentials

import (
	"context"
	"time"

	"telecall/internal/core/domain"
	"telecall/pkg/cache"
)

// MemoryCache is the in-process consume-once credential cache used when
// no Redis is configured. Entries disappear on first Take.
type MemoryCache struct {
	cache *cache.Cache
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{cache: cache.NewCache(defaultTTL)}
}

func (m *MemoryCache) Put(ctx context.Context, key string, cred domain.SessionCredential, ttl time.Duration) error {
	m.cache.SetWithTTL(key, cred, ttl)
	return nil
}

func (m *MemoryCache) Take(ctx context.Context, key string) (domain.SessionCredential, bool, error) {
	value, ok := m.cache.Take(key)
	if !ok {
		return domain.SessionCredential{}, false, nil
	}
	cred, ok := value.(domain.SessionCredential)
	if !ok {
		return domain.SessionCredential{}, false, nil
	}
	return cred, true, nil
}

func (m *MemoryCache) Stop() {
	m.cache.Stop()
}
