package domain

import (
	"testing"
	"time"
)

func TestCacheEntry_FreshAt(t *testing.T) {
	t0 := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	e := CacheEntry{Key: LondonKey(), Value: []byte("[]"), FetchedAt: t0}
	ttl := 1800 * time.Second

	if !e.FreshAt(t0.Add(900*time.Second), ttl) {
		t.Error("entry should be fresh at t0+900s")
	}
	if e.FreshAt(t0.Add(1800*time.Second), ttl) {
		t.Error("entry must not be fresh exactly at ttl")
	}
	if e.FreshAt(t0.Add(1801*time.Second), ttl) {
		t.Error("entry must not be fresh after ttl")
	}
	if got := e.Age(t0.Add(time.Minute)); got != time.Minute {
		t.Errorf("age: got %v", got)
	}
}
