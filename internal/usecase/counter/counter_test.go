package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/domain/quota"
)

var day = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

type memStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	incErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]int64)}
}

func (m *memStore) IncrBy(_ context.Context, key string, val int64) error {
	if m.incErr != nil {
		return m.incErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] += val
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (int64, error) {
	if m.getErr != nil {
		return 0, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func TestRecordCall_CountsAndEstimate(t *testing.T) {
	c := New(quota.DefaultPolicy(), day, zap.NewNop())

	prev := c.EstimateMonthlyUsage()
	for i := 1; i <= 5; i++ {
		c.RecordCall(day.Add(time.Duration(i) * time.Minute))
		est := c.EstimateMonthlyUsage()
		if est < prev {
			t.Fatalf("estimate decreased: %d -> %d", prev, est)
		}
		prev = est
	}

	if c.DailyCount() != 5 {
		t.Errorf("expected daily count 5, got %d", c.DailyCount())
	}
	if c.EstimateMonthlyUsage() != 150 {
		t.Errorf("expected estimate 150, got %d", c.EstimateMonthlyUsage())
	}
	if c.WarningLevel() != quota.LevelSafe {
		t.Errorf("expected safe, got %s", c.WarningLevel())
	}
}

func TestWarningLevel_Thresholds(t *testing.T) {
	tests := []struct {
		calls int
		want  quota.Level
	}{
		{14, quota.LevelSafe},     // 420
		{15, quota.LevelCaution},  // 450
		{18, quota.LevelWarning},  // 540
		{20, quota.LevelWarning},  // 600, at the cap
		{21, quota.LevelCritical}, // 630
	}
	for _, tc := range tests {
		c := New(quota.DefaultPolicy(), day, zap.NewNop())
		for i := 0; i < tc.calls; i++ {
			c.RecordCall(day)
		}
		if got := c.WarningLevel(); got != tc.want {
			t.Errorf("%d calls: expected %s, got %s", tc.calls, tc.want, got)
		}
	}
}

func TestRecordCall_DayRollover(t *testing.T) {
	c := New(quota.DefaultPolicy(), day, zap.NewNop())
	c.RecordCall(day)
	c.RecordCall(day.Add(time.Hour))

	c.RecordCall(day.Add(24 * time.Hour))

	if c.DailyCount() != 1 {
		t.Errorf("expected daily count reset to 1, got %d", c.DailyCount())
	}
	if c.MonthlyCount() != 3 {
		t.Errorf("monthly count should survive day rollover, got %d", c.MonthlyCount())
	}
	if got := c.Usage().PeriodStart(); !got.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected period start %v", got)
	}
}

func TestAdvance_ClearsCriticalOnNewDay(t *testing.T) {
	c := New(quota.DefaultPolicy(), day, zap.NewNop())
	for i := 0; i < 25; i++ {
		c.RecordCall(day)
	}
	if c.WarningLevel() != quota.LevelCritical {
		t.Fatalf("expected critical, got %s", c.WarningLevel())
	}

	c.Advance(day.Add(time.Hour))
	if c.WarningLevel() != quota.LevelCritical {
		t.Fatal("same day must stay critical")
	}

	c.Advance(day.Add(24 * time.Hour))
	if c.WarningLevel() != quota.LevelSafe {
		t.Errorf("expected safe after rollover, got %s", c.WarningLevel())
	}
}

func TestAdvance_MonthRollover(t *testing.T) {
	c := New(quota.DefaultPolicy(), time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC), zap.NewNop())
	c.RecordCall(time.Date(2026, 10, 31, 23, 30, 0, 0, time.UTC))

	c.Advance(time.Date(2026, 11, 1, 0, 5, 0, 0, time.UTC))
	if c.MonthlyCount() != 0 || c.DailyCount() != 0 {
		t.Errorf("expected both counters reset, got daily=%d monthly=%d", c.DailyCount(), c.MonthlyCount())
	}
}

func TestAdvance_IgnoresEarlierTime(t *testing.T) {
	c := New(quota.DefaultPolicy(), day, zap.NewNop())
	c.RecordCall(day)
	c.Advance(day.Add(-48 * time.Hour))
	if c.DailyCount() != 1 {
		t.Errorf("clock going backwards must not reset, got %d", c.DailyCount())
	}
}

func TestWithStore_LoadsAndPersists(t *testing.T) {
	ms := newMemStore()
	ms.data["mq:usage:daily:2026-10-15"] = 7
	ms.data["mq:usage:monthly:2026-10"] = 90

	c := New(quota.DefaultPolicy(), day, zap.NewNop()).WithStore(context.Background(), ms, "mq:")
	if c.DailyCount() != 7 || c.MonthlyCount() != 90 {
		t.Fatalf("expected loaded counters 7/90, got %d/%d", c.DailyCount(), c.MonthlyCount())
	}

	c.RecordCall(day)
	if ms.data["mq:usage:daily:2026-10-15"] != 8 || ms.data["mq:usage:monthly:2026-10"] != 91 {
		t.Errorf("expected persisted counters 8/91, got %v", ms.data)
	}
}

func TestWithStore_ErrorsAreNotFatal(t *testing.T) {
	ms := newMemStore()
	ms.getErr = errors.New("down")
	ms.incErr = errors.New("down")

	c := New(quota.DefaultPolicy(), day, zap.NewNop()).WithStore(context.Background(), ms, "mq:")
	c.RecordCall(day)

	if c.DailyCount() != 1 {
		t.Errorf("in-memory count must advance despite store errors, got %d", c.DailyCount())
	}
}

func TestUsage_Snapshot(t *testing.T) {
	c := New(quota.Policy{MaxCallsPerMonth: 60, CacheTTL: time.Minute}, day, zap.NewNop())
	c.RecordCall(day)
	c.RecordCall(day)

	u := c.Usage()
	if u.DailyCount() != 2 || u.MonthlyCount() != 2 || u.MonthlyEstimate() != 60 {
		t.Errorf("unexpected usage: %+v", u)
	}
	if u.Level() != quota.LevelWarning {
		t.Errorf("60 of 60 should be warning, got %s", u.Level())
	}
}
