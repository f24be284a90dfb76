package domain

import "time"

// CacheEntry is the last successful upstream payload for a request key.
type CacheEntry struct {
	Key       RequestKey
	Value     []byte
	FetchedAt time.Time
}

// Age returns how old the entry is at now.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// FreshAt reports whether the entry is younger than ttl at now.
func (e CacheEntry) FreshAt(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}
