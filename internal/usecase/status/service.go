// Package status builds the quota report shown to users.
package status

import (
	"context"
	"errors"
	"time"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/quota"
)

// LastError describes the most recent upstream failure.
type LastError struct {
	Code        int
	Message     string
	Description string
	At          time.Time
}

// Report is the quota status at a point in time.
type Report struct {
	DailyCount       int
	MonthlyCount     int
	MonthlyEstimate  int
	MaxCallsPerMonth int
	// Remaining is the calls left this calendar month, -1 when unlimited.
	Remaining int
	Level     quota.Level
	CacheTTL  time.Duration
	DayStart  time.Time
	DayEnd    time.Time
	MonthEnd  time.Time
	LastError *LastError
}

// Service handles quota reporting.
type Service struct {
	usage    UsageReader
	failures FailureReader
	now      func() time.Time
}

// New creates a Service. failures can be nil.
func New(usage UsageReader, failures FailureReader) *Service {
	return &Service{usage: usage, failures: failures, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetReport builds the quota report for the current period.
func (s *Service) GetReport(_ context.Context) Report {
	now := s.now().UTC()
	s.usage.Advance(now)

	u := s.usage.Usage()
	policy := s.usage.Policy()

	dayStart := u.PeriodStart()
	monthStart := time.Date(dayStart.Year(), dayStart.Month(), 1, 0, 0, 0, 0, time.UTC)

	remaining := -1
	if policy.MaxCallsPerMonth > 0 {
		remaining = max(policy.MaxCallsPerMonth-u.MonthlyCount(), 0)
	}

	r := Report{
		DailyCount:       u.DailyCount(),
		MonthlyCount:     u.MonthlyCount(),
		MonthlyEstimate:  u.MonthlyEstimate(),
		MaxCallsPerMonth: policy.MaxCallsPerMonth,
		Remaining:        remaining,
		Level:            u.Level(),
		CacheTTL:         policy.CacheTTL,
		DayStart:         dayStart,
		DayEnd:           dayStart.AddDate(0, 0, 1),
		MonthEnd:         monthStart.AddDate(0, 1, 0),
	}

	if s.failures != nil {
		if f, ok := s.failures.LastFailure(); ok {
			r.LastError = describe(f.Err, f.At)
		}
	}
	return r
}

func describe(err error, at time.Time) *LastError {
	le := &LastError{Message: err.Error(), At: at}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		le.Code = ue.Code
		le.Message = ue.Message
		if d, ok := ue.Description(); ok {
			le.Description = d.String()
		}
	}
	return le
}
