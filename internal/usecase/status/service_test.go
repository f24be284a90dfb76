package status

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/quota"
	"github.com/kailas-cloud/metalquote/internal/usecase/counter"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
)

var now = time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)

// --- Mock ---

type mockFailures struct {
	f  fetcher.UpstreamFailure
	ok bool
}

func (m *mockFailures) LastFailure() (fetcher.UpstreamFailure, bool) { return m.f, m.ok }

// --- Tests ---

func TestGetReport_Counts(t *testing.T) {
	c := counter.New(quota.DefaultPolicy(), now, zap.NewNop())
	for i := 0; i < 16; i++ {
		c.RecordCall(now)
	}

	r := New(c, nil).WithClock(func() time.Time { return now }).GetReport(context.Background())

	if r.DailyCount != 16 || r.MonthlyCount != 16 || r.MonthlyEstimate != 480 {
		t.Errorf("unexpected counts %+v", r)
	}
	if r.Level != quota.LevelCaution {
		t.Errorf("expected caution, got %s", r.Level)
	}
	if r.Remaining != 584 || r.MaxCallsPerMonth != 600 {
		t.Errorf("unexpected remaining %d of %d", r.Remaining, r.MaxCallsPerMonth)
	}
	if !r.DayEnd.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day end %v", r.DayEnd)
	}
	if !r.MonthEnd.Equal(time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected month end %v", r.MonthEnd)
	}
	if r.LastError != nil {
		t.Errorf("expected no last error, got %+v", r.LastError)
	}
}

func TestGetReport_RollsOverStaleDay(t *testing.T) {
	c := counter.New(quota.DefaultPolicy(), now, zap.NewNop())
	for i := 0; i < 25; i++ {
		c.RecordCall(now)
	}

	tomorrow := now.Add(24 * time.Hour)
	r := New(c, nil).WithClock(func() time.Time { return tomorrow }).GetReport(context.Background())
	if r.DailyCount != 0 || r.Level != quota.LevelSafe {
		t.Errorf("expected fresh day, got %+v", r)
	}
	if r.MonthlyCount != 25 {
		t.Errorf("monthly count should carry over, got %d", r.MonthlyCount)
	}
}

func TestGetReport_Unlimited(t *testing.T) {
	c := counter.New(quota.Policy{}, now, zap.NewNop())
	r := New(c, nil).WithClock(func() time.Time { return now }).GetReport(context.Background())
	if r.Remaining != -1 {
		t.Errorf("expected -1 for unlimited, got %d", r.Remaining)
	}
}

func TestGetReport_LastUpstreamError(t *testing.T) {
	c := counter.New(quota.DefaultPolicy(), now, zap.NewNop())
	f := &mockFailures{ok: true, f: fetcher.UpstreamFailure{
		Key: domain.LondonKey(),
		Err: fmt.Errorf("fetch: %w", domain.NewUpstreamError(domain.CodeBannedIP, "ip banned")),
		At:  now.Add(-time.Minute),
	}}

	r := New(c, f).WithClock(func() time.Time { return now }).GetReport(context.Background())
	if r.LastError == nil {
		t.Fatal("expected last error")
	}
	if r.LastError.Code != domain.CodeBannedIP || r.LastError.Message != "ip banned" || r.LastError.Description == "" {
		t.Errorf("unexpected last error %+v", r.LastError)
	}

	f.f.Err = errors.New("dial tcp: refused")
	r = New(c, f).WithClock(func() time.Time { return now }).GetReport(context.Background())
	if r.LastError.Code != 0 || r.LastError.Message != "dial tcp: refused" {
		t.Errorf("unexpected generic last error %+v", r.LastError)
	}
}
