// Package fetcher decides per request whether to serve a cached payload or
// spend a billed call on the price API.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/quota"
	"github.com/kailas-cloud/metalquote/internal/metrics"
)

// Source says where a result came from.
type Source string

// Result sources.
const (
	SourceLive  Source = "live"
	SourceCache Source = "cache"
	SourceStale Source = "stale"
)

// Result is a payload together with its provenance.
type Result struct {
	Value     []byte
	FetchedAt time.Time
	Source    Source
	// Cause is the error that forced a stale fallback.
	Cause error
}

// Age returns how old the payload is at now.
func (r Result) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// UpstreamFailure is the last failed upstream call.
type UpstreamFailure struct {
	Key domain.RequestKey
	Err error
	At  time.Time
}

// Validator checks a payload before it is cached. A non-nil error makes the
// call a failure, so the previous entry survives as a stale fallback.
type Validator func(key domain.RequestKey, payload []byte) error

// Fetcher is the quota-aware cached fetcher. It is not safe for concurrent
// Fetch calls on the same key; callers serialize refresh cycles.
type Fetcher struct {
	upstream Upstream
	cache    Cache
	counter  Counter
	outcomes *prometheus.CounterVec
	validate Validator
	logger   *zap.Logger

	mu      sync.Mutex
	lastErr *UpstreamFailure
}

// New creates a fetcher.
// outcomes is a counter vec with label "outcome", passed explicitly (may be nil).
func New(
	upstream Upstream, cache Cache, counter Counter,
	outcomes *prometheus.CounterVec, logger *zap.Logger,
) *Fetcher {
	return &Fetcher{
		upstream: upstream,
		cache:    cache,
		counter:  counter,
		outcomes: outcomes,
		logger:   logger,
	}
}

// WithValidator sets the payload check run on every upstream response.
func (f *Fetcher) WithValidator(v Validator) *Fetcher {
	f.validate = v
	return f
}

// Fetch returns a fresh cached payload when one exists. Otherwise it performs
// the upstream call unless the quota is critical. Failures fall back to the
// stale entry when there is one.
func (f *Fetcher) Fetch(ctx context.Context, key domain.RequestKey, now time.Time) (Result, error) {
	entry, cached := f.cache.Get(ctx, key)
	if cached && entry.FreshAt(now, f.counter.Policy().CacheTTL) {
		f.observe(metrics.OutcomeHit)
		return Result{Value: entry.Value, FetchedAt: entry.FetchedAt, Source: SourceCache}, nil
	}

	f.counter.Advance(now)
	if level := f.counter.WarningLevel(); level == quota.LevelCritical {
		f.logger.Warn("Quota critical, skipping upstream call",
			zap.String("key", key.String()),
			zap.Int("monthly_estimate", f.counter.Usage().MonthlyEstimate()),
			zap.Bool("stale_available", cached),
		)
		if cached {
			return f.stale(entry, domain.ErrQuotaExceeded), nil
		}
		f.observe(metrics.OutcomeQuotaBlocked)
		return Result{}, fmt.Errorf("fetch %s: %w", key, domain.ErrQuotaExceeded)
	}

	f.observe(metrics.OutcomeMiss)
	value, err := f.upstream.Fetch(ctx, key)
	if err == nil && f.validate != nil {
		err = f.check(key, value)
	}
	if err != nil {
		return f.fail(key, entry, cached, err, now)
	}

	f.cache.Put(ctx, key, value, now)
	f.counter.RecordCall(now)
	f.publishUsage()

	f.mu.Lock()
	f.lastErr = nil
	f.mu.Unlock()

	f.logger.Debug("Fetched from upstream",
		zap.String("key", key.String()),
		zap.Int("bytes", len(value)),
	)
	return Result{Value: value, FetchedAt: now, Source: SourceLive}, nil
}

// LastFailure returns the most recent upstream failure, if any. A later
// successful call clears it.
func (f *Fetcher) LastFailure() (UpstreamFailure, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastErr == nil {
		return UpstreamFailure{}, false
	}
	return *f.lastErr, true
}

func (f *Fetcher) check(key domain.RequestKey, value []byte) error {
	err := f.validate(key, value)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrFetchFailed):
		return fmt.Errorf("validate payload: %w", err)
	default:
		return fmt.Errorf("validate payload: %v: %w", err, domain.ErrFetchFailed)
	}
}

func (f *Fetcher) fail(
	key domain.RequestKey, entry domain.CacheEntry, cached bool, err error, now time.Time,
) (Result, error) {
	// Anything past the transport reached the API and was billed.
	if !errors.Is(err, domain.ErrNetwork) {
		f.counter.RecordCall(now)
		f.publishUsage()
	}

	f.mu.Lock()
	f.lastErr = &UpstreamFailure{Key: key, Err: err, At: now}
	f.mu.Unlock()

	f.logger.Warn("Upstream fetch failed",
		zap.String("key", key.String()),
		zap.Bool("stale_available", cached),
		zap.Error(err),
	)

	if cached {
		return f.stale(entry, err), nil
	}
	f.observe(metrics.OutcomeError)
	return Result{}, fmt.Errorf("fetch %s: %w", key, err)
}

func (f *Fetcher) stale(entry domain.CacheEntry, cause error) Result {
	f.observe(metrics.OutcomeStale)
	return Result{Value: entry.Value, FetchedAt: entry.FetchedAt, Source: SourceStale, Cause: cause}
}

func (f *Fetcher) observe(outcome string) {
	if f.outcomes != nil {
		f.outcomes.WithLabelValues(outcome).Inc()
	}
}

func (f *Fetcher) publishUsage() {
	u := f.counter.Usage()
	metrics.QuotaCalls.WithLabelValues("daily").Set(float64(u.DailyCount()))
	metrics.QuotaCalls.WithLabelValues("monthly").Set(float64(u.MonthlyCount()))
	metrics.QuotaMonthlyEstimate.Set(float64(u.MonthlyEstimate()))
	metrics.QuotaLevel.Set(float64(u.Level()))
}
