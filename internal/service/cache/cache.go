package cache

import "time"

// MembershipCache is a minimal set-with-TTL API. The filtering engine uses it
// for the recently-traded decay set.
type MembershipCache interface {
	Add(key string, ttl time.Duration) error
	Contains(key string) (bool, error)
	Remove(key string) error
}
