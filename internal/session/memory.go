package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	user    CurrentUser
	revoked bool
	expires time.Time
}

// MemoryCache is an in-process Cache for single-instance deployments and
// the terminal console.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Load(ctx context.Context, sid string) (CurrentUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sid]
	if !ok {
		return CurrentUser{}, ErrNoSession
	}
	if (e.revoked || c.ttl > 0) && c.now().After(e.expires) {
		delete(c.entries, sid)
		return CurrentUser{}, ErrNoSession
	}
	if e.revoked {
		return CurrentUser{}, ErrRevoked
	}
	return e.user, nil
}

func (c *MemoryCache) Save(ctx context.Context, u CurrentUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[u.SessionID]; ok && e.revoked && !c.now().After(e.expires) {
		return ErrRevoked
	}
	c.entries[u.SessionID] = memoryEntry{user: u, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context, sid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sid)
	return nil
}

func (c *MemoryCache) Revoke(ctx context.Context, sid string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sid] = memoryEntry{revoked: true, expires: c.now().Add(ttl)}
	return nil
}
