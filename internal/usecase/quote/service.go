// Package quote serves decoded prices on top of the quota-aware fetcher and
// serializes every caller onto it.
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/indicator"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
)

// Meta describes where a payload came from.
type Meta struct {
	Source    fetcher.Source
	FetchedAt time.Time
	Age       time.Duration
	// StaleReason is set when Source is stale.
	StaleReason error
}

// Quotes is the live London quote board.
type Quotes struct {
	Items []domain.Quote
	Meta  Meta
}

// History is an OHLC window, newest first, with optional technical analysis.
type History struct {
	Request  domain.HistoryRequest
	Klines   []domain.Kline
	Analysis *indicator.Analysis
	Meta     Meta
}

// DefaultFetchTimeout bounds one shared fetch, including the wait for the
// outbound rate limiter.
const DefaultFetchTimeout = 30 * time.Second

// Service collapses concurrent requests per key and runs at most one fetch at a time.
type Service struct {
	fetcher      Fetcher
	now          func() time.Time
	fetchTimeout time.Duration
	logger       *zap.Logger

	mu sync.Mutex
	sf singleflight.Group
}

// New creates a quote service.
func New(f Fetcher, logger *zap.Logger) *Service {
	return &Service{
		fetcher:      f,
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
		logger:       logger,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Refresh fetches key through the fetcher. Concurrent calls for the same key
// share one fetch. The shared fetch does not inherit the caller's
// cancellation; a caller whose ctx ends stops waiting and gets ctx.Err().
func (s *Service) Refresh(ctx context.Context, key domain.RequestKey) (fetcher.Result, error) {
	ch := s.sf.DoChan(key.String(), func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetcher.Fetch(fetchCtx, key, s.now())
	})

	select {
	case <-ctx.Done():
		return fetcher.Result{}, fmt.Errorf("refresh %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Fetch shared between callers", zap.String("key", key.String()))
		}
		if res.Err != nil {
			return fetcher.Result{}, res.Err //nolint:wrapcheck // fetcher errors are already wrapped with the key
		}
		return res.Val.(fetcher.Result), nil
	}
}

// Quotes returns the London spot quotes.
func (s *Service) Quotes(ctx context.Context) (Quotes, error) {
	res, err := s.Refresh(ctx, domain.LondonKey())
	if err != nil {
		return Quotes{}, err
	}
	items, err := domain.DecodeQuotes(res.Value)
	if err != nil {
		return Quotes{}, fmt.Errorf("london quotes: %w", err)
	}
	return Quotes{Items: items, Meta: s.meta(res)}, nil
}

// History validates req before spending quota, then returns the OHLC window.
// With analyze set the window is also run through the technical indicators.
func (s *Service) History(ctx context.Context, req domain.HistoryRequest, analyze bool) (History, error) {
	if err := req.Validate(); err != nil {
		return History{}, err //nolint:wrapcheck // validation errors carry their own context
	}

	res, err := s.Refresh(ctx, req.Key())
	if err != nil {
		return History{}, err
	}
	klines, err := domain.DecodeKlines(res.Value)
	if err != nil {
		return History{}, fmt.Errorf("history %s: %w", req.Product, err)
	}

	h := History{Request: req, Klines: klines, Meta: s.meta(res)}
	if analyze {
		a, err := indicator.Analyze(klines)
		if err != nil {
			return History{}, fmt.Errorf("analyze %s: %w", req.Product, err)
		}
		h.Analysis = &a
	}
	return h, nil
}

func (s *Service) meta(res fetcher.Result) Meta {
	m := Meta{
		Source:    res.Source,
		FetchedAt: res.FetchedAt,
		Age:       res.Age(s.now()),
	}
	if res.Source == fetcher.SourceStale {
		m.StaleReason = res.Cause
	}
	return m
}
