package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/metalquote/internal/db"
)

// Default key lifetimes. Daily keys outlive their day so a restart shortly
// after midnight still sees yesterday's total.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for call counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrByExpireNX(ctx context.Context, key string, val int64, ttl time.Duration) error
}

// Store persists call counters on top of DB (INCRBY + EXPIRE NX).
type Store struct {
	store      store
	dailyTTL   time.Duration
	monthlyTTL time.Duration
}

// New creates a counter store.
func New(s store, dailyTTL, monthlyTTL time.Duration) *Store {
	return &Store{
		store:      s,
		dailyTTL:   dailyTTL,
		monthlyTTL: monthlyTTL,
	}
}

// IncrBy atomically increments the counter. The TTL is set only on the first
// write so repeated calls do not extend the key's life.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.store.IncrByExpireNX(ctx, key, val, s.ttlForKey(key)); err != nil {
		return fmt.Errorf("usage INCRBY %s: %w", key, err)
	}
	return nil
}

// Get returns the counter value. Missing keys read as 0.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("usage GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("usage GET %s parse: %w", key, err)
	}
	return val, nil
}

// Keys follow the pattern {prefix}usage:daily:YYYY-MM-DD or :monthly:YYYY-MM.
func (s *Store) ttlForKey(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthlyTTL
}
