// Package counter tracks billed price API calls per UTC day and month and
// projects monthly usage from the daily rate.
package counter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/domain/quota"
)

// Store is the persistence interface for call counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

const persistTimeout = 2 * time.Second

// Counter is an in-memory call counter with optional write-behind persistence.
// Reads never touch the store.
type Counter struct {
	mu           sync.Mutex
	policy       quota.Policy
	dailyCount   int
	monthlyCount int
	dayStart     time.Time
	monthStart   time.Time
	store        Store
	keyPrefix    string
	logger       *zap.Logger
}

// New creates a counter whose first period starts at now.
func New(policy quota.Policy, now time.Time, logger *zap.Logger) *Counter {
	now = now.UTC()
	return &Counter{
		policy:     policy,
		dayStart:   truncateToDay(now),
		monthStart: truncateToMonth(now),
		logger:     logger,
	}
}

// WithStore attaches a persistence store and loads the counters for the
// periods containing now.
func (c *Counter) WithStore(ctx context.Context, store Store, keyPrefix string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = store
	c.keyPrefix = keyPrefix

	if val, err := store.Get(ctx, c.dailyKey(c.dayStart)); err == nil {
		c.dailyCount = int(val)
	} else {
		c.logger.Warn("Failed to load daily call count from store", zap.Error(err))
	}

	if val, err := store.Get(ctx, c.monthlyKey(c.monthStart)); err == nil {
		c.monthlyCount = int(val)
	} else {
		c.logger.Warn("Failed to load monthly call count from store", zap.Error(err))
	}

	c.logger.Info("Call counters loaded from store",
		zap.Int("daily_count", c.dailyCount),
		zap.Int("monthly_count", c.monthlyCount),
	)
	return c
}

// Policy returns the quota policy the counter classifies against.
func (c *Counter) Policy() quota.Policy { return c.policy }

// RecordCall registers one billed call at now, rolling over the period first
// when now falls on a later day.
func (c *Counter) RecordCall(now time.Time) {
	c.mu.Lock()
	c.advance(now)
	c.dailyCount++
	c.monthlyCount++
	store := c.store
	dailyKey := c.dailyKey(c.dayStart)
	monthlyKey := c.monthlyKey(c.monthStart)
	c.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, 1); err != nil {
		c.logger.Warn("Failed to persist daily call count", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, 1); err != nil {
		c.logger.Warn("Failed to persist monthly call count", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// Advance rolls the counters over when now is past the current period.
// Must run before WarningLevel on paths that may not call RecordCall.
func (c *Counter) Advance(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(now)
}

// EstimateMonthlyUsage projects the calls for a full month at today's rate.
func (c *Counter) EstimateMonthlyUsage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimate()
}

// WarningLevel classifies the monthly estimate against the policy.
func (c *Counter) WarningLevel() quota.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.LevelFor(c.estimate())
}

// DailyCount returns calls recorded in the current day.
func (c *Counter) DailyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dailyCount
}

// MonthlyCount returns calls recorded in the current calendar month.
func (c *Counter) MonthlyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monthlyCount
}

// Usage returns a consistent snapshot of all counters.
func (c *Counter) Usage() quota.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	est := c.estimate()
	return quota.NewUsage(c.dailyCount, c.monthlyCount, est, c.dayStart, c.policy.LevelFor(est))
}

func (c *Counter) estimate() int {
	return c.dailyCount * quota.DaysPerMonth
}

// advance must be called with mu held. Earlier timestamps never roll back.
func (c *Counter) advance(now time.Time) {
	now = now.UTC()
	if today := truncateToDay(now); today.After(c.dayStart) {
		c.dailyCount = 0
		c.dayStart = today
	}
	if thisMonth := truncateToMonth(now); thisMonth.After(c.monthStart) {
		c.monthlyCount = 0
		c.monthStart = thisMonth
	}
}

func (c *Counter) dailyKey(t time.Time) string {
	return fmt.Sprintf("%susage:daily:%s", c.keyPrefix, t.Format("2006-01-02"))
}

func (c *Counter) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%susage:monthly:%s", c.keyPrefix, t.Format("2006-01"))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
