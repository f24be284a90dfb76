// Package poller drives periodic refreshes of the tracked price keys.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/metrics"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 30 * time.Second

// Refresher fetches one key through the quota-aware fetcher.
type Refresher interface {
	Refresh(ctx context.Context, key domain.RequestKey) (fetcher.Result, error)
}

// MarketHours reports whether the market is trading.
type MarketHours interface {
	IsOpen(t time.Time) bool
}

// Config controls the refresh loop.
type Config struct {
	Interval time.Duration
	Keys     []domain.RequestKey
	// Hours gates cycles on trading hours. Nil refreshes around the clock.
	Hours MarketHours
}

// Cycle is the outcome of one refresh pass.
type Cycle struct {
	Skipped bool
	Live    int
	Cached  int
	Stale   int
	Failed  int
}

// Poller refreshes keys one at a time on a fixed interval.
type Poller struct {
	refresher Refresher
	config    Config
	now       func() time.Time
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a poller.
func New(r Refresher, cfg Config, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		refresher: r,
		config:    cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the time source used for the trading-hours gate.
func (p *Poller) WithClock(now func() time.Time) *Poller {
	p.now = now
	return p
}

// Start runs a cycle immediately and then on every tick until Stop or ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info("Poller started",
		zap.Duration("interval", p.config.Interval),
		zap.Int("keys", len(p.config.Keys)),
		zap.Bool("trading_hours_gate", p.config.Hours != nil),
	)
}

// Stop cancels the loop and waits for the current cycle to finish.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Poller stopped")
		return nil
	case <-ctx.Done():
		return errors.New("poller stop timed out")
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single refresh pass over all keys.
func (p *Poller) RunOnce(ctx context.Context) Cycle {
	var c Cycle
	if p.config.Hours != nil && !p.config.Hours.IsOpen(p.now()) {
		c.Skipped = true
		metrics.PollerCyclesTotal.WithLabelValues("market_closed").Inc()
		p.logger.Debug("Market closed, skipping refresh")
		return c
	}

	for _, key := range p.config.Keys {
		if ctx.Err() != nil {
			break
		}
		res, err := p.refresher.Refresh(ctx, key)
		if err != nil {
			c.Failed++
			p.logger.Warn("Refresh failed", zap.String("key", key.String()), zap.Error(err))
			continue
		}
		switch res.Source {
		case fetcher.SourceLive:
			c.Live++
		case fetcher.SourceCache:
			c.Cached++
		case fetcher.SourceStale:
			c.Stale++
		}
	}

	result := "ok"
	if c.Failed > 0 || c.Stale > 0 {
		result = "partial"
	}
	metrics.PollerCyclesTotal.WithLabelValues(result).Inc()

	p.logger.Debug("Refresh cycle done",
		zap.Int("live", c.Live),
		zap.Int("cached", c.Cached),
		zap.Int("stale", c.Stale),
		zap.Int("failed", c.Failed),
	)
	return c
}
