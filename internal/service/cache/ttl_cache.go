package cache

import (
	"sync"
	"time"
)

type entry struct {
	exp time.Time
}

// TTLCache is an in-memory MembershipCache. Expired entries are dropped on
// read; no background janitor is needed at the key counts involved here.
type TTLCache struct {
	mu sync.RWMutex
	m  map[string]entry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry)}
}

func (c *TTLCache) Add(key string, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{exp: exp}
	c.mu.Unlock()
	return nil
}

func (c *TTLCache) Contains(key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *TTLCache) Remove(key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}

var _ MembershipCache = (*TTLCache)(nil)
